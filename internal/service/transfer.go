package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// Transfer moves value from one named agent's vault to another's.
func (l *Ledger) Transfer(ctx context.Context, caller domain.Identity, req domain.TransferRequest) (*domain.TransferEvent, error) {
	if req.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := validateMemo(req.Memo); err != nil {
		return nil, err
	}

	var event *domain.TransferEvent
	err := l.exec(ctx, "transfer", func(ctx context.Context, tx store.Tx, now int64) error {
		agents := newAgentSet(tx)
		sender, err := agents.get(ctx, req.From)
		if err != nil {
			return err
		}
		if err := authorize(sender, caller); err != nil {
			return err
		}
		receiver, err := agents.get(ctx, req.To)
		if err != nil {
			return err
		}

		if err := applyCap(sender, req.Amount, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}

		if err := signerFor(sender).pay(ctx, tx, receiver, req.Amount); err != nil {
			return err
		}
		recordFlow(sender, receiver, req.Amount)
		if err := agents.save(ctx); err != nil {
			return err
		}

		event = &domain.TransferEvent{
			Sender:    sender.Name,
			Receiver:  receiver.Name,
			Amount:    req.Amount,
			Memo:      req.Memo,
			TotalSent: sender.TotalSent,
			Timestamp: now,
		}
		return store.Emit(ctx, tx, domain.EventTransfer, now, event)
	})
	if err != nil {
		return nil, err
	}

	moved("transfer", req.Amount)
	l.log.Info("transfer completed",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.Uint64("amount", req.Amount),
	)
	return event, nil
}
