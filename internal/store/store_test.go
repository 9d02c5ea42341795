package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

type doc struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

var errAbort = errors.New("abort")

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create load save", func(t *testing.T) { testCreateLoadSave(t, s) })
			t.Run("rollback", func(t *testing.T) { testRollback(t, s) })
			t.Run("nested joins outer", func(t *testing.T) { testNested(t, s) })
			t.Run("list ordered", func(t *testing.T) { testList(t, s) })
			t.Run("events", func(t *testing.T) { testEvents(t, s) })
			t.Run("idempotency", func(t *testing.T) { testIdempotency(t, s) })
		})
	}
}

func testCreateLoadSave(t *testing.T, s Store) {
	ctx := context.Background()
	addr := address.Agent("create-load-save")

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return Create(ctx, tx, KindAgent, addr, &doc{Name: "a", Value: 1})
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return Create(ctx, tx, KindAgent, addr, &doc{Name: "dup"})
	})
	require.ErrorIs(t, err, ErrExists)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		d, err := Load[doc](ctx, tx, KindAgent, addr)
		if err != nil {
			return err
		}
		d.Value = 2
		return Save(ctx, tx, KindAgent, addr, d)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		d, err := Load[doc](ctx, tx, KindAgent, addr)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), d.Value)

		_, err = Load[doc](ctx, tx, KindVault, addr)
		assert.ErrorIs(t, err, ErrNotFound)

		return Save(ctx, tx, KindVault, addr, d)
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func testRollback(t *testing.T, s Store) {
	ctx := context.Background()
	addr := address.Agent("rollback")

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, Create(ctx, tx, KindAgent, addr, &doc{Name: "gone"}))
		_, err := tx.AppendEvent(ctx, "test.rollback", 1, []byte(`{}`))
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Get(ctx, KindAgent, addr)
		assert.ErrorIs(t, err, ErrNotFound)

		events, err := tx.Events(ctx, 0, 0)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, "test.rollback", e.Type)
		}
		return nil
	})
	require.NoError(t, err)
}

func testNested(t *testing.T, s Store) {
	ctx := context.Background()
	outer := address.Agent("nested-outer")
	inner := address.Agent("nested-inner")

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, Create(ctx, tx, KindAgent, outer, &doc{Name: "outer"}))
		err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.Get(ctx, KindAgent, outer)
			require.NoError(t, err, "inner transaction must see outer writes")
			return Create(ctx, tx, KindAgent, inner, &doc{Name: "inner"})
		})
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Get(ctx, KindAgent, inner)
		assert.ErrorIs(t, err, ErrNotFound, "inner write must roll back with the outer transaction")
		return nil
	})
	require.NoError(t, err)
}

func testList(t *testing.T, s Store) {
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, n := range []string{"l1", "l2", "l3"} {
			if err := Create(ctx, tx, KindSubscription, address.Agent(n), &doc{Name: n}); err != nil {
				return err
			}
		}
		docs, err := All[doc](ctx, tx, KindSubscription)
		require.NoError(t, err)
		require.Len(t, docs, 3)

		prev := ""
		for _, d := range docs {
			key := address.Agent(d.Name).String()
			assert.Less(t, prev, key)
			prev = key
		}
		return nil
	})
	require.NoError(t, err)
}

func testEvents(t *testing.T, s Store) {
	ctx := context.Background()

	var first, second int64
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if first, err = tx.AppendEvent(ctx, "test.one", 10, []byte(`{"n":1}`)); err != nil {
			return err
		}
		second, err = tx.AppendEvent(ctx, "test.two", 11, []byte(`{"n":2}`))
		return err
	})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		events, err := tx.Events(ctx, first, 10)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Equal(t, second, events[0].Seq)
		assert.Equal(t, "test.two", events[0].Type)
		assert.Equal(t, int64(11), events[0].Timestamp)
		assert.JSONEq(t, `{"n":2}`, string(events[0].Payload))
		return nil
	})
	require.NoError(t, err)
}

func testIdempotency(t *testing.T, s Store) {
	ctx := context.Background()
	rec := domain.IdempotencyRecord{
		Key:            "key-1",
		RequestHash:    "abc",
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"ok":true}`),
	}

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Idempotency(ctx, rec.Key)
		assert.ErrorIs(t, err, ErrNotFound)
		return tx.SaveIdempotency(ctx, rec)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.Idempotency(ctx, rec.Key)
		require.NoError(t, err)
		assert.Equal(t, rec.RequestHash, got.RequestHash)
		assert.Equal(t, rec.ResponseStatus, got.ResponseStatus)
		assert.JSONEq(t, string(rec.ResponseBody), string(got.ResponseBody))
		return tx.SaveIdempotency(ctx, rec)
	})
	require.ErrorIs(t, err, ErrExists)
}

func TestMemoryCancelledContextDiscardsWrites(t *testing.T) {
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	addr := address.Agent("cancelled")

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		cancel()
		return Create(ctx, tx, KindAgent, addr, &doc{Name: "x"})
	})
	require.ErrorIs(t, err, context.Canceled)

	err = s.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.Get(ctx, KindAgent, addr)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), "mongo", "")
	assert.Error(t, err)
}
