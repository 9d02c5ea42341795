package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

func loadAllowance(ctx context.Context, tx store.Tx, owner, spender string) (*domain.Allowance, error) {
	addr := address.Allowance(address.Agent(owner), address.Agent(spender))
	a, err := store.Load[domain.Allowance](ctx, tx, store.KindAllowance, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrAllowanceNotFound
	}
	return a, err
}

// Approve lets spender pull up to amt from owner's vault. It replaces any
// previous amount for the pair and reactivates a revoked allowance.
func (l *Ledger) Approve(ctx context.Context, caller domain.Identity, owner, spender string, amt uint64) (*domain.Allowance, error) {
	var allowance *domain.Allowance
	err := l.exec(ctx, "approve", func(ctx context.Context, tx store.Tx, now int64) error {
		ownerAgent, err := loadAgent(ctx, tx, owner)
		if err != nil {
			return err
		}
		if err := authorize(ownerAgent, caller); err != nil {
			return err
		}
		spenderAgent, err := loadAgent(ctx, tx, spender)
		if err != nil {
			return err
		}
		if ownerAgent.Address == spenderAgent.Address {
			return domain.ErrCannotApproveSelf
		}

		allowance = &domain.Allowance{
			Address:     address.Allowance(ownerAgent.Address, spenderAgent.Address),
			Owner:       ownerAgent.Address,
			Spender:     spenderAgent.Address,
			OwnerName:   ownerAgent.Name,
			SpenderName: spenderAgent.Name,
			Amount:      amt,
			Active:      true,
			Authority:   caller,
		}
		err = store.Create(ctx, tx, store.KindAllowance, allowance.Address, allowance)
		if errors.Is(err, store.ErrExists) {
			err = store.Save(ctx, tx, store.KindAllowance, allowance.Address, allowance)
		}
		if err != nil {
			return err
		}

		return store.Emit(ctx, tx, domain.EventAllowanceApproved, now, domain.AllowanceApprovedEvent{
			Owner:     owner,
			Spender:   spender,
			Amount:    amt,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("allowance approved", zap.String("owner", owner), zap.String("spender", spender), zap.Uint64("amount", amt))
	return allowance, nil
}

// TransferFrom pulls value from owner to spender against an allowance. The owner's
// daily cap still applies.
func (l *Ledger) TransferFrom(ctx context.Context, caller domain.Identity, req domain.TransferFromRequest) (*domain.TransferFromEvent, error) {
	if req.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := validateMemo(req.Memo); err != nil {
		return nil, err
	}

	var event *domain.TransferFromEvent
	err := l.exec(ctx, "transfer_from", func(ctx context.Context, tx store.Tx, now int64) error {
		agents := newAgentSet(tx)
		owner, err := agents.get(ctx, req.Owner)
		if err != nil {
			return err
		}
		spender, err := agents.get(ctx, req.Spender)
		if err != nil {
			return err
		}
		if err := authorize(spender, caller); err != nil {
			return err
		}

		allowance, err := loadAllowance(ctx, tx, req.Owner, req.Spender)
		if err != nil {
			return err
		}
		if !allowance.Active {
			return domain.ErrAllowanceNotActive
		}
		if allowance.Owner != owner.Address || allowance.Spender != spender.Address {
			return domain.ErrAllowanceMismatch
		}
		if req.Amount > allowance.Amount {
			return domain.ErrAllowanceExceeded
		}

		if err := applyCap(owner, req.Amount, now); err != nil {
			return err
		}
		if err := agents.save(ctx); err != nil {
			return err
		}

		if err := signerFor(owner).pay(ctx, tx, spender, req.Amount); err != nil {
			return err
		}

		if allowance.Amount, err = amount.Sub(allowance.Amount, req.Amount); err != nil {
			return err
		}
		if allowance.TotalPulled, err = amount.Add(allowance.TotalPulled, req.Amount); err != nil {
			return err
		}
		allowance.PullCount++
		if err := store.Save(ctx, tx, store.KindAllowance, allowance.Address, allowance); err != nil {
			return err
		}

		recordFlow(owner, spender, req.Amount)
		if err := agents.save(ctx); err != nil {
			return err
		}

		event = &domain.TransferFromEvent{
			Owner:              owner.Name,
			Spender:            spender.Name,
			Amount:             req.Amount,
			Memo:               req.Memo,
			RemainingAllowance: allowance.Amount,
			PullNumber:         allowance.PullCount,
			Timestamp:          now,
		}
		return store.Emit(ctx, tx, domain.EventAllowancePulled, now, event)
	})
	if err != nil {
		return nil, err
	}

	moved("transfer_from", req.Amount)
	l.log.Info("allowance pulled",
		zap.String("owner", req.Owner),
		zap.String("spender", req.Spender),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("remaining", event.RemainingAllowance),
	)
	return event, nil
}

// Revoke deactivates an allowance and zeroes what is left of it. Pull history is kept.
func (l *Ledger) Revoke(ctx context.Context, caller domain.Identity, owner, spender string) (*domain.Allowance, error) {
	var allowance *domain.Allowance
	err := l.exec(ctx, "revoke", func(ctx context.Context, tx store.Tx, now int64) error {
		var err error
		if allowance, err = loadAllowance(ctx, tx, owner, spender); err != nil {
			return err
		}
		if allowance.Authority != caller {
			return domain.ErrUnauthorized
		}
		allowance.Active = false
		allowance.Amount = 0
		if err := store.Save(ctx, tx, store.KindAllowance, allowance.Address, allowance); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventAllowanceRevoked, now, domain.AllowanceRevokedEvent{
			Owner:       allowance.OwnerName,
			Spender:     allowance.SpenderName,
			TotalPulled: allowance.TotalPulled,
			PullCount:   allowance.PullCount,
			Timestamp:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("allowance revoked", zap.String("owner", owner), zap.String("spender", spender))
	return allowance, nil
}

// IncreaseAllowance adds delta to an active allowance.
func (l *Ledger) IncreaseAllowance(ctx context.Context, caller domain.Identity, owner, spender string, delta uint64) (*domain.Allowance, error) {
	var allowance *domain.Allowance
	err := l.exec(ctx, "increase_allowance", func(ctx context.Context, tx store.Tx, now int64) error {
		var err error
		if allowance, err = loadAllowance(ctx, tx, owner, spender); err != nil {
			return err
		}
		if allowance.Authority != caller {
			return domain.ErrUnauthorized
		}
		if !allowance.Active {
			return domain.ErrAllowanceNotActive
		}
		if allowance.Amount, err = amount.Add(allowance.Amount, delta); err != nil {
			return err
		}
		if err := store.Save(ctx, tx, store.KindAllowance, allowance.Address, allowance); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventAllowanceIncreased, now, domain.AllowanceModifiedEvent{
			Owner:     allowance.OwnerName,
			Spender:   allowance.SpenderName,
			NewAmount: allowance.Amount,
			Action:    "increase",
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("allowance increased", zap.String("owner", owner), zap.String("spender", spender), zap.Uint64("amount", allowance.Amount))
	return allowance, nil
}
