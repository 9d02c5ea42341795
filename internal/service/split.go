package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// Split divides req.Total across recipients by basis-point share. The last recipient
// absorbs the rounding remainder; legs that round to zero are skipped.
func (l *Ledger) Split(ctx context.Context, caller domain.Identity, req domain.SplitRequest) (*domain.SplitTransferEvent, error) {
	if len(req.Recipients) < domain.MinSplitSize || len(req.Recipients) > domain.MaxSplitSize {
		return nil, domain.ErrInvalidSplitSize
	}
	if err := validateMemo(req.Memo); err != nil {
		return nil, err
	}
	shares := make([]uint16, len(req.Recipients))
	for i, r := range req.Recipients {
		shares[i] = r.ShareBps
	}
	legs, err := amount.Split(req.Total, shares)
	if err != nil {
		return nil, err
	}
	for i, r := range req.Recipients {
		if legs[i] == 0 {
			continue
		}
		if err := verifyRecipient(r.Name, r.Agent, r.Vault); err != nil {
			return nil, err
		}
	}

	var event *domain.SplitTransferEvent
	err = l.exec(ctx, "split_transfer", func(ctx context.Context, tx store.Tx, now int64) error {
		agents := newAgentSet(tx)
		sender, err := agents.get(ctx, req.From)
		if err != nil {
			return err
		}
		if err := authorize(sender, caller); err != nil {
			return err
		}

		if err := applyCap(sender, req.Total, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}

		signer := signerFor(sender)
		event = &domain.SplitTransferEvent{
			Sender:    sender.Name,
			Total:     req.Total,
			Memo:      req.Memo,
			Timestamp: now,
		}
		for i, r := range req.Recipients {
			if legs[i] == 0 {
				continue
			}
			recipient, err := agents.get(ctx, r.Name)
			if err != nil {
				return err
			}
			if err := signer.pay(ctx, tx, recipient, legs[i]); err != nil {
				return err
			}
			recordFlow(nil, recipient, legs[i])

			event.Recipients = append(event.Recipients, r.Name)
			event.Amounts = append(event.Amounts, legs[i])
		}
		recordFlow(sender, nil, req.Total)
		if err := agents.save(ctx); err != nil {
			return err
		}

		event.TotalSent = sender.TotalSent
		return store.Emit(ctx, tx, domain.EventSplitTransfer, now, event)
	})
	if err != nil {
		return nil, err
	}

	moved("split_transfer", req.Total)
	l.log.Info("split payment completed",
		zap.String("from", req.From),
		zap.Int("recipients", len(req.Recipients)),
		zap.Uint64("total", req.Total),
	)
	return event, nil
}
