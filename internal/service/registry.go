package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/custody"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// Register creates an agent controlled by caller together with its vault.
func (l *Ledger) Register(ctx context.Context, caller domain.Identity, name string) (*domain.Agent, error) {
	if len(name) < 1 || len(name) > domain.MaxNameLen {
		return nil, domain.ErrInvalidNameLength
	}
	if caller == "" {
		return nil, domain.ErrUnauthorized
	}

	var agent *domain.Agent
	err := l.exec(ctx, "register", func(ctx context.Context, tx store.Tx, now int64) error {
		vault, err := custody.Open(ctx, tx, name)
		if errors.Is(err, store.ErrExists) {
			return domain.ErrAgentExists
		}
		if err != nil {
			return err
		}

		agent = &domain.Agent{
			Name:      name,
			Address:   address.Agent(name),
			Authority: caller,
			Vault:     vault.Address,
			CreatedAt: now,
		}
		err = store.Create(ctx, tx, store.KindAgent, agent.Address, agent)
		if errors.Is(err, store.ErrExists) {
			return domain.ErrAgentExists
		}
		if err != nil {
			return err
		}

		return store.Emit(ctx, tx, domain.EventAgentRegistered, now, domain.AgentRegisteredEvent{
			Name:      name,
			Authority: caller,
			Vault:     vault.Address.String(),
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("agent registered", zap.String("agent", name), zap.Stringer("vault", agent.Vault))
	return agent, nil
}

// Deposit funds an agent's vault from an external source. Anyone may fund any vault.
func (l *Ledger) Deposit(ctx context.Context, name string, amt uint64, source string) (*custody.Vault, error) {
	if amt == 0 {
		return nil, domain.ErrInvalidAmount
	}

	var vault *custody.Vault
	err := l.exec(ctx, "deposit", func(ctx context.Context, tx store.Tx, now int64) error {
		agent, err := loadAgent(ctx, tx, name)
		if err != nil {
			return err
		}
		if vault, err = custody.Credit(ctx, tx, agent.Vault, amt); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventDeposited, now, domain.DepositEvent{
			Agent:     name,
			Source:    source,
			Amount:    amt,
			Balance:   vault.Balance,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("deposit", zap.String("agent", name), zap.Uint64("amount", amt))
	return vault, nil
}

// Withdraw moves funds out of the ledger to destination. Only the controller may withdraw.
func (l *Ledger) Withdraw(ctx context.Context, caller domain.Identity, name string, amt uint64, destination string) (*custody.Vault, error) {
	if amt == 0 {
		return nil, domain.ErrInvalidAmount
	}

	var vault *custody.Vault
	err := l.exec(ctx, "withdraw", func(ctx context.Context, tx store.Tx, now int64) error {
		agent, err := loadAgent(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := authorize(agent, caller); err != nil {
			return err
		}
		if vault, err = signerFor(agent).withdraw(ctx, tx, amt); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventWithdrawn, now, domain.WithdrawEvent{
			Agent:       name,
			Destination: destination,
			Amount:      amt,
			Balance:     vault.Balance,
			Timestamp:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("withdrawal", zap.String("agent", name), zap.Uint64("amount", amt), zap.String("destination", destination))
	return vault, nil
}

// SetDailyLimit sets the agent's daily spending cap. A limit of 0 removes it.
func (l *Ledger) SetDailyLimit(ctx context.Context, caller domain.Identity, name string, limit uint64) (*domain.Agent, error) {
	var agent *domain.Agent
	err := l.exec(ctx, "set_daily_limit", func(ctx context.Context, tx store.Tx, now int64) error {
		var err error
		if agent, err = loadAgent(ctx, tx, name); err != nil {
			return err
		}
		if err := authorize(agent, caller); err != nil {
			return err
		}
		agent.DailyLimit = limit
		if err := store.Save(ctx, tx, store.KindAgent, agent.Address, agent); err != nil {
			return err
		}
		return store.Emit(ctx, tx, domain.EventDailyLimitSet, now, domain.DailyLimitSetEvent{
			Agent:     name,
			Limit:     limit,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("daily limit set", zap.String("agent", name), zap.Uint64("limit", limit))
	return agent, nil
}
