package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

func loadSubscription(ctx context.Context, tx store.Tx, addr address.Address) (*domain.Subscription, error) {
	sub, err := store.Load[domain.Subscription](ctx, tx, store.KindSubscription, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, err
}

// CreateSubscription sets up a recurring payment of amt from sender to receiver every
// interval seconds. The first payment is due one interval from now.
func (l *Ledger) CreateSubscription(ctx context.Context, caller domain.Identity, sender, receiver string, amt uint64, interval int64) (*domain.Subscription, error) {
	if amt == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if interval < domain.MinInterval {
		return nil, domain.ErrInvalidInterval
	}

	var sub *domain.Subscription
	err := l.exec(ctx, "create_subscription", func(ctx context.Context, tx store.Tx, now int64) error {
		senderAgent, err := loadAgent(ctx, tx, sender)
		if err != nil {
			return err
		}
		if err := authorize(senderAgent, caller); err != nil {
			return err
		}
		receiverAgent, err := loadAgent(ctx, tx, receiver)
		if err != nil {
			return err
		}

		nextDue, err := amount.AddInt64(now, interval)
		if err != nil {
			return err
		}

		sub = &domain.Subscription{
			Address:         address.Subscription(senderAgent.Address, receiverAgent.Address),
			Sender:          senderAgent.Address,
			Receiver:        receiverAgent.Address,
			SenderName:      senderAgent.Name,
			ReceiverName:    receiverAgent.Name,
			Amount:          amt,
			IntervalSeconds: interval,
			LastExecuted:    now,
			NextDue:         nextDue,
			Active:          true,
			Authority:       caller,
		}
		err = store.Create(ctx, tx, store.KindSubscription, sub.Address, sub)
		if errors.Is(err, store.ErrExists) {
			return domain.ErrSubscriptionExists
		}
		if err != nil {
			return err
		}

		return store.Emit(ctx, tx, domain.EventSubscriptionCreated, now, domain.SubscriptionCreatedEvent{
			Sender:          sub.SenderName,
			Receiver:        sub.ReceiverName,
			Amount:          amt,
			IntervalSeconds: interval,
			NextDue:         sub.NextDue,
			Timestamp:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("subscription created",
		zap.String("sender", sender),
		zap.String("receiver", receiver),
		zap.Uint64("amount", amt),
		zap.Int64("interval_seconds", interval),
	)
	return sub, nil
}

// ExecuteSubscription pays one due period. Anyone may call it; the due-time guard
// makes a second call for the same period fail with ErrSubscriptionNotDue.
func (l *Ledger) ExecuteSubscription(ctx context.Context, addr address.Address) (*domain.SubscriptionExecutedEvent, error) {
	var event *domain.SubscriptionExecutedEvent
	err := l.exec(ctx, "execute_subscription", func(ctx context.Context, tx store.Tx, now int64) error {
		sub, err := loadSubscription(ctx, tx, addr)
		if err != nil {
			return err
		}
		if !sub.Active {
			return domain.ErrSubscriptionNotActive
		}
		if now < sub.NextDue {
			return domain.ErrSubscriptionNotDue
		}

		agents := newAgentSet(tx)
		sender, err := agents.get(ctx, sub.SenderName)
		if err != nil {
			return err
		}
		receiver, err := agents.get(ctx, sub.ReceiverName)
		if err != nil {
			return err
		}
		if sender.Address != sub.Sender || receiver.Address != sub.Receiver {
			return domain.ErrInvalidSubscription
		}

		if err := applyCap(sender, sub.Amount, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}

		if err := signerFor(sender).pay(ctx, tx, receiver, sub.Amount); err != nil {
			return err
		}

		nextDue, err := amount.AddInt64(now, sub.IntervalSeconds)
		if err != nil {
			return err
		}
		if sub.TotalPaid, err = amount.Add(sub.TotalPaid, sub.Amount); err != nil {
			return err
		}
		sub.ExecutionCount++
		sub.LastExecuted = now
		sub.NextDue = nextDue
		if err := store.Save(ctx, tx, store.KindSubscription, sub.Address, sub); err != nil {
			return err
		}

		recordFlow(sender, receiver, sub.Amount)
		if err := agents.save(ctx); err != nil {
			return err
		}

		event = &domain.SubscriptionExecutedEvent{
			Sender:         sub.SenderName,
			Receiver:       sub.ReceiverName,
			Amount:         sub.Amount,
			Memo:           fmt.Sprintf("Subscription payment #%d", sub.ExecutionCount),
			ExecutionCount: sub.ExecutionCount,
			TotalPaid:      sub.TotalPaid,
			NextDue:        sub.NextDue,
			Timestamp:      now,
		}
		return store.Emit(ctx, tx, domain.EventSubscriptionExecuted, now, event)
	})
	if err != nil {
		return nil, err
	}

	moved("execute_subscription", event.Amount)
	l.log.Info("subscription executed",
		zap.String("sender", event.Sender),
		zap.String("receiver", event.Receiver),
		zap.Uint64("amount", event.Amount),
		zap.Uint64("execution", event.ExecutionCount),
	)
	return event, nil
}

// CancelSubscription stops future executions. The record is kept.
func (l *Ledger) CancelSubscription(ctx context.Context, caller domain.Identity, addr address.Address) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := l.exec(ctx, "cancel_subscription", func(ctx context.Context, tx store.Tx, now int64) error {
		var err error
		if sub, err = loadSubscription(ctx, tx, addr); err != nil {
			return err
		}
		if sub.Authority != caller {
			return domain.ErrUnauthorized
		}
		sub.Active = false
		if err := store.Save(ctx, tx, store.KindSubscription, sub.Address, sub); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventSubscriptionCancelled, now, domain.SubscriptionCancelledEvent{
			Sender:         sub.SenderName,
			Receiver:       sub.ReceiverName,
			TotalPaid:      sub.TotalPaid,
			ExecutionCount: sub.ExecutionCount,
			Timestamp:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("subscription cancelled",
		zap.String("sender", sub.SenderName),
		zap.String("receiver", sub.ReceiverName),
		zap.Uint64("total_paid", sub.TotalPaid),
	)
	return sub, nil
}
