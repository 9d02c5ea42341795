// Package store persists ledger records and runs each request as one atomic unit.
//
// Records are JSON documents keyed by (kind, derived address). A Store hands out a Tx
// through WithTx; everything written through that Tx is committed together when the
// callback returns nil and discarded otherwise. A WithTx call made with a context that
// already carries a transaction of the same store joins it instead of opening a new one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

// Kind names a record collection.
type Kind string

const (
	KindAgent        Kind = "agent"
	KindVault        Kind = "vault"
	KindAllowance    Kind = "allowance"
	KindSubscription Kind = "subscription"
	KindInvoice      Kind = "invoice"
	KindCounter      Kind = "counter"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Store opens transactions over the ledger state.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx is the set of reads and writes available inside one request.
type Tx interface {
	Get(ctx context.Context, kind Kind, addr address.Address) ([]byte, error)
	Insert(ctx context.Context, kind Kind, addr address.Address, body []byte) error
	Update(ctx context.Context, kind Kind, addr address.Address, body []byte) error
	// List returns every record of kind ordered by address.
	List(ctx context.Context, kind Kind) ([][]byte, error)

	AppendEvent(ctx context.Context, eventType string, timestamp int64, payload []byte) (int64, error)
	Events(ctx context.Context, after int64, limit int) ([]domain.Event, error)

	Idempotency(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	SaveIdempotency(ctx context.Context, rec domain.IdempotencyRecord) error
}

type txKey struct{}

type boundTx struct {
	owner Store
	tx    Tx
}

func withTx(ctx context.Context, owner Store, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, boundTx{owner: owner, tx: tx})
}

func joined(ctx context.Context, owner Store) (Tx, bool) {
	b, ok := ctx.Value(txKey{}).(boundTx)
	if !ok || b.owner != owner {
		return nil, false
	}
	return b.tx, true
}

// Load decodes the record at addr.
func Load[T any](ctx context.Context, tx Tx, kind Kind, addr address.Address) (*T, error) {
	body, err := tx.Get(ctx, kind, addr)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, addr, err)
	}
	return &v, nil
}

// Create stores v at addr and fails with ErrExists if a record is already there.
func Create[T any](ctx context.Context, tx Tx, kind Kind, addr address.Address, v *T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return tx.Insert(ctx, kind, addr, body)
}

// Save overwrites the record at addr.
func Save[T any](ctx context.Context, tx Tx, kind Kind, addr address.Address, v *T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return tx.Update(ctx, kind, addr, body)
}

// All decodes every record of kind.
func All[T any](ctx context.Context, tx Tx, kind Kind) ([]T, error) {
	bodies, err := tx.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(bodies))
	for _, body := range bodies {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Emit appends payload as an event of the given type.
func Emit(ctx context.Context, tx Tx, eventType string, timestamp int64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", eventType, err)
	}
	if _, err := tx.AppendEvent(ctx, eventType, timestamp, body); err != nil {
		return fmt.Errorf("append event %s: %w", eventType, err)
	}
	return nil
}
