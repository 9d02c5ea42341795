package store

import (
	"context"
	"sort"
	"sync"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

type recordKey struct {
	kind Kind
	addr address.Address
}

// Memory is an in-process Store. Transactions run one at a time; writes are staged
// and applied only when the callback succeeds.
type Memory struct {
	mu      sync.Mutex
	records map[recordKey][]byte
	events  []domain.Event
	idem    map[string]domain.IdempotencyRecord
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[recordKey][]byte),
		idem:    make(map[string]domain.IdempotencyRecord),
	}
}

func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if tx, ok := joined(ctx, m); ok {
		return fn(ctx, tx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:      m,
		writes: make(map[recordKey][]byte),
		idem:   make(map[string]domain.IdempotencyRecord),
	}
	if err := fn(withTx(ctx, m, tx), tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, body := range tx.writes {
		m.records[k] = body
	}
	m.events = append(m.events, tx.events...)
	for k, rec := range tx.idem {
		m.idem[k] = rec
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}

type memoryTx struct {
	m      *Memory
	writes map[recordKey][]byte
	events []domain.Event
	idem   map[string]domain.IdempotencyRecord
}

func (t *memoryTx) lookup(k recordKey) ([]byte, bool) {
	if body, ok := t.writes[k]; ok {
		return body, true
	}
	body, ok := t.m.records[k]
	return body, ok
}

func (t *memoryTx) Get(_ context.Context, kind Kind, addr address.Address) ([]byte, error) {
	body, ok := t.lookup(recordKey{kind, addr})
	if !ok {
		return nil, ErrNotFound
	}
	return clone(body), nil
}

func (t *memoryTx) Insert(_ context.Context, kind Kind, addr address.Address, body []byte) error {
	k := recordKey{kind, addr}
	if _, ok := t.lookup(k); ok {
		return ErrExists
	}
	t.writes[k] = clone(body)
	return nil
}

func (t *memoryTx) Update(_ context.Context, kind Kind, addr address.Address, body []byte) error {
	k := recordKey{kind, addr}
	if _, ok := t.lookup(k); !ok {
		return ErrNotFound
	}
	t.writes[k] = clone(body)
	return nil
}

func (t *memoryTx) List(_ context.Context, kind Kind) ([][]byte, error) {
	merged := make(map[address.Address][]byte)
	for k, body := range t.m.records {
		if k.kind == kind {
			merged[k.addr] = body
		}
	}
	for k, body := range t.writes {
		if k.kind == kind {
			merged[k.addr] = body
		}
	}

	addrs := make([]address.Address, 0, len(merged))
	for a := range merged {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })

	out := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, clone(merged[a]))
	}
	return out, nil
}

func (t *memoryTx) AppendEvent(_ context.Context, eventType string, timestamp int64, payload []byte) (int64, error) {
	seq := int64(len(t.m.events) + len(t.events) + 1)
	t.events = append(t.events, domain.Event{
		Seq:       seq,
		Type:      eventType,
		Timestamp: timestamp,
		Payload:   clone(payload),
	})
	return seq, nil
}

func (t *memoryTx) Events(_ context.Context, after int64, limit int) ([]domain.Event, error) {
	var out []domain.Event
	all := append(append([]domain.Event{}, t.m.events...), t.events...)
	for _, e := range all {
		if e.Seq <= after {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *memoryTx) Idempotency(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	if rec, ok := t.idem[key]; ok {
		return &rec, nil
	}
	if rec, ok := t.m.idem[key]; ok {
		return &rec, nil
	}
	return nil, ErrNotFound
}

func (t *memoryTx) SaveIdempotency(ctx context.Context, rec domain.IdempotencyRecord) error {
	if _, err := t.Idempotency(ctx, rec.Key); err == nil {
		return ErrExists
	}
	t.idem[rec.Key] = rec
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
