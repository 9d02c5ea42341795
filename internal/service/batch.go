package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// verifyRecipient checks caller-supplied addresses against the ones derived from name,
// so a request cannot route a leg to an account it substituted for the real one.
func verifyRecipient(name string, agent, vault address.Address) error {
	if agent != address.Agent(name) {
		return domain.ErrNameMismatch
	}
	if vault != address.Vault(name) {
		return domain.ErrVaultMismatch
	}
	return nil
}

// BatchTransfer pays up to ten recipients from one sender. Either every leg is
// committed or none is.
func (l *Ledger) BatchTransfer(ctx context.Context, caller domain.Identity, req domain.BatchRequest) (*domain.BatchTransferEvent, error) {
	if len(req.Payments) < 1 || len(req.Payments) > domain.MaxBatchSize {
		return nil, domain.ErrInvalidBatchSize
	}
	legs := make([]uint64, len(req.Payments))
	for i, p := range req.Payments {
		if err := validateMemo(p.Memo); err != nil {
			return nil, err
		}
		if p.Amount == 0 {
			return nil, domain.ErrInvalidAmount
		}
		if err := verifyRecipient(p.Recipient, p.Agent, p.Vault); err != nil {
			return nil, err
		}
		legs[i] = p.Amount
	}
	total, err := amount.Sum(legs...)
	if err != nil {
		return nil, err
	}

	var event *domain.BatchTransferEvent
	err = l.exec(ctx, "batch_transfer", func(ctx context.Context, tx store.Tx, now int64) error {
		agents := newAgentSet(tx)
		sender, err := agents.get(ctx, req.From)
		if err != nil {
			return err
		}
		if err := authorize(sender, caller); err != nil {
			return err
		}

		if err := applyCap(sender, total, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}

		signer := signerFor(sender)
		event = &domain.BatchTransferEvent{
			Sender:    sender.Name,
			Total:     total,
			Timestamp: now,
		}
		for _, p := range req.Payments {
			recipient, err := agents.get(ctx, p.Recipient)
			if err != nil {
				return err
			}
			if err := signer.pay(ctx, tx, recipient, p.Amount); err != nil {
				return err
			}
			recordFlow(nil, recipient, p.Amount)

			event.Recipients = append(event.Recipients, p.Recipient)
			event.Amounts = append(event.Amounts, p.Amount)
			event.Memos = append(event.Memos, p.Memo)
		}
		recordFlow(sender, nil, total)
		if err := agents.save(ctx); err != nil {
			return err
		}

		event.TotalSent = sender.TotalSent
		return store.Emit(ctx, tx, domain.EventBatchTransfer, now, event)
	})
	if err != nil {
		return nil, err
	}

	moved("batch_transfer", total)
	l.log.Info("batch payment completed",
		zap.String("from", req.From),
		zap.Int("recipients", len(req.Payments)),
		zap.Uint64("total", total),
	)
	return event, nil
}
