// Package service is the authorization and accounting engine of the ledger.
//
// Each exported Ledger method is one request: it opens a single store transaction,
// checks the caller against the controlling authority of every record it mutates,
// moves value through the custody primitive and appends one event. Any error rolls
// the whole request back.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// Clock supplies the request time in unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// Ledger executes ledger operations against a Store.
type Ledger struct {
	store store.Store
	clock Clock
	log   *zap.Logger
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: s,
		clock: SystemClock{},
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store exposes the backing store so outer layers can join a request transaction.
func (l *Ledger) Store() store.Store {
	return l.store
}

// exec runs fn as one transaction stamped with a single request time.
func (l *Ledger) exec(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx, now int64) error) error {
	now := l.clock.Now()
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, tx, now)
	})
	observe(op, err)
	if err != nil {
		l.log.Debug("operation rejected", zap.String("operation", op), zap.Error(err))
	}
	return err
}

func authorize(a *domain.Agent, caller domain.Identity) error {
	if a.Authority != caller {
		return domain.ErrUnauthorized
	}
	return nil
}

func validateMemo(memo string) error {
	if len(memo) > domain.MaxMemoLen {
		return domain.ErrMemoTooLong
	}
	return nil
}

func loadAgent(ctx context.Context, tx store.Tx, name string) (*domain.Agent, error) {
	a, err := store.Load[domain.Agent](ctx, tx, store.KindAgent, address.Agent(name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	return a, err
}

// agentSet loads each agent touched by a request once, so a name that appears in
// several roles (sender and recipient, repeated recipients) is one record.
type agentSet struct {
	tx     store.Tx
	byName map[string]*domain.Agent
	order  []string
}

func newAgentSet(tx store.Tx) *agentSet {
	return &agentSet{tx: tx, byName: make(map[string]*domain.Agent)}
}

func (s *agentSet) get(ctx context.Context, name string) (*domain.Agent, error) {
	if a, ok := s.byName[name]; ok {
		return a, nil
	}
	a, err := loadAgent(ctx, s.tx, name)
	if err != nil {
		return nil, err
	}
	s.byName[name] = a
	s.order = append(s.order, name)
	return a, nil
}

func (s *agentSet) save(ctx context.Context) error {
	for _, name := range s.order {
		a := s.byName[name]
		if err := store.Save(ctx, s.tx, store.KindAgent, a.Address, a); err != nil {
			return err
		}
	}
	return nil
}
