package service

import (
	"context"
	"errors"
	"sort"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/custody"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/reputation"
	"github.com/punchamoorthee/clawledger/internal/store"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// view runs a read-only request. It is not counted in operation metrics.
func (l *Ledger) view(ctx context.Context, fn func(ctx context.Context, tx store.Tx, now int64) error) error {
	now := l.clock.Now()
	return l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, tx, now)
	})
}

// Resolve returns the derived addresses for name and whether it is registered.
func (l *Ledger) Resolve(ctx context.Context, name string) (*domain.Resolution, error) {
	if len(name) < 1 || len(name) > domain.MaxNameLen {
		return nil, domain.ErrInvalidNameLength
	}
	res := &domain.Resolution{
		Name:           name,
		Agent:          address.Agent(name),
		Vault:          address.Vault(name),
		VaultAuthority: address.VaultAuthority(name),
	}
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		_, err := loadAgent(ctx, tx, name)
		switch {
		case err == nil:
			res.Registered = true
		case !errors.Is(err, domain.ErrAgentNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Ledger) Agent(ctx context.Context, name string) (*domain.Agent, error) {
	var agent *domain.Agent
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		var err error
		agent, err = loadAgent(ctx, tx, name)
		return err
	})
	return agent, err
}

// Balance returns the vault bound to name.
func (l *Ledger) Balance(ctx context.Context, name string) (*custody.Vault, error) {
	var vault *custody.Vault
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		agent, err := loadAgent(ctx, tx, name)
		if err != nil {
			return err
		}
		vault, err = custody.Get(ctx, tx, agent.Vault)
		return err
	})
	return vault, err
}

// Agents lists every registered agent sorted by name.
func (l *Ledger) Agents(ctx context.Context) ([]domain.Agent, error) {
	var agents []domain.Agent
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		var err error
		agents, err = store.All[domain.Agent](ctx, tx, store.KindAgent)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender string) (*domain.Allowance, error) {
	var allowance *domain.Allowance
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		var err error
		allowance, err = loadAllowance(ctx, tx, owner, spender)
		return err
	})
	return allowance, err
}

// Allowances lists allowances where name is the owner or the spender.
func (l *Ledger) Allowances(ctx context.Context, name string) ([]domain.Allowance, error) {
	var out []domain.Allowance
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		all, err := store.All[domain.Allowance](ctx, tx, store.KindAllowance)
		if err != nil {
			return err
		}
		for _, a := range all {
			if a.OwnerName == name || a.SpenderName == name {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (l *Ledger) Subscription(ctx context.Context, addr address.Address) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		var err error
		sub, err = loadSubscription(ctx, tx, addr)
		return err
	})
	return sub, err
}

// Subscriptions lists subscriptions where name is the sender or the receiver.
func (l *Ledger) Subscriptions(ctx context.Context, name string) ([]domain.Subscription, error) {
	var out []domain.Subscription
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		all, err := store.All[domain.Subscription](ctx, tx, store.KindSubscription)
		if err != nil {
			return err
		}
		for _, s := range all {
			if s.SenderName == name || s.ReceiverName == name {
				out = append(out, s)
			}
		}
		return nil
	})
	return out, err
}

// DueSubscriptions lists active subscriptions whose next payment is due, most overdue first.
func (l *Ledger) DueSubscriptions(ctx context.Context) ([]domain.DueSubscription, error) {
	var due []domain.DueSubscription
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, now int64) error {
		all, err := store.All[domain.Subscription](ctx, tx, store.KindSubscription)
		if err != nil {
			return err
		}
		for _, s := range all {
			if s.Active && s.NextDue <= now {
				due = append(due, domain.DueSubscription{Subscription: s, OverdueSeconds: now - s.NextDue})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].OverdueSeconds > due[j].OverdueSeconds })
	return due, nil
}

func (l *Ledger) Invoice(ctx context.Context, id uint64) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		var err error
		inv, err = loadInvoice(ctx, tx, id)
		return err
	})
	return inv, err
}

// Invoices lists invoices where name is the requester or the payer, in id order.
func (l *Ledger) Invoices(ctx context.Context, name string) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		all, err := store.All[domain.Invoice](ctx, tx, store.KindInvoice)
		if err != nil {
			return err
		}
		for _, inv := range all {
			if inv.RequesterName == name || inv.PayerName == name {
				out = append(out, inv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Events returns up to limit events with a sequence number greater than after.
func (l *Ledger) Events(ctx context.Context, after int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	var events []domain.Event
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, _ int64) error {
		var err error
		events, err = tx.Events(ctx, after, limit)
		return err
	})
	return events, err
}

// profiles gathers the reputation inputs of every agent in one pass.
func profiles(ctx context.Context, tx store.Tx) (map[string]*reputation.Profile, error) {
	agents, err := store.All[domain.Agent](ctx, tx, store.KindAgent)
	if err != nil {
		return nil, err
	}
	invoices, err := store.All[domain.Invoice](ctx, tx, store.KindInvoice)
	if err != nil {
		return nil, err
	}
	subs, err := store.All[domain.Subscription](ctx, tx, store.KindSubscription)
	if err != nil {
		return nil, err
	}
	allowances, err := store.All[domain.Allowance](ctx, tx, store.KindAllowance)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*reputation.Profile, len(agents))
	for _, a := range agents {
		out[a.Name] = &reputation.Profile{Agent: a}
	}
	for _, inv := range invoices {
		if p, ok := out[inv.PayerName]; ok {
			p.Invoices = append(p.Invoices, inv)
		}
		if p, ok := out[inv.RequesterName]; ok && inv.RequesterName != inv.PayerName {
			p.Invoices = append(p.Invoices, inv)
		}
	}
	for _, s := range subs {
		if p, ok := out[s.SenderName]; ok {
			p.Subscriptions = append(p.Subscriptions, s)
		}
	}
	for _, a := range allowances {
		if p, ok := out[a.OwnerName]; ok {
			p.Allowances = append(p.Allowances, a)
		}
	}
	return out, nil
}

// Reputation scores one agent.
func (l *Ledger) Reputation(ctx context.Context, name string) (*reputation.Report, error) {
	var report reputation.Report
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, now int64) error {
		if _, err := loadAgent(ctx, tx, name); err != nil {
			return err
		}
		all, err := profiles(ctx, tx)
		if err != nil {
			return err
		}
		report = reputation.Compute(*all[name], now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Leaderboard ranks every agent by order and returns the top limit.
func (l *Ledger) Leaderboard(ctx context.Context, order string, limit int) ([]reputation.Entry, error) {
	var entries []reputation.Entry
	err := l.view(ctx, func(ctx context.Context, tx store.Tx, now int64) error {
		all, err := profiles(ctx, tx)
		if err != nil {
			return err
		}
		entries = make([]reputation.Entry, 0, len(all))
		for _, p := range all {
			entries = append(entries, reputation.NewEntry(p.Agent, reputation.Compute(*p, now)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reputation.Rank(entries, reputation.NormalizeSort(order), limit), nil
}
