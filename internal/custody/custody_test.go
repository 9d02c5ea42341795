package custody

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/store"
)

func withVaults(t *testing.T, fn func(ctx context.Context, tx store.Tx)) {
	t.Helper()
	s := store.NewMemory()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, n := range []string{"alice", "bob"} {
			if _, err := Open(ctx, tx, n); err != nil {
				return err
			}
		}
		fn(ctx, tx)
		return nil
	})
	require.NoError(t, err)
}

func balance(t *testing.T, ctx context.Context, tx store.Tx, name string) uint64 {
	t.Helper()
	v, err := Get(ctx, tx, address.Vault(name))
	require.NoError(t, err)
	return v.Balance
}

func TestMoveConservesBalance(t *testing.T) {
	withVaults(t, func(ctx context.Context, tx store.Tx) {
		_, err := Credit(ctx, tx, address.Vault("alice"), 100)
		require.NoError(t, err)

		err = Move(ctx, tx, address.Vault("alice"), address.Vault("bob"), 40, address.VaultAuthority("alice"))
		require.NoError(t, err)

		assert.Equal(t, uint64(60), balance(t, ctx, tx, "alice"))
		assert.Equal(t, uint64(40), balance(t, ctx, tx, "bob"))
	})
}

func TestMoveRequiresVaultAuthority(t *testing.T) {
	withVaults(t, func(ctx context.Context, tx store.Tx) {
		_, err := Credit(ctx, tx, address.Vault("alice"), 100)
		require.NoError(t, err)

		err = Move(ctx, tx, address.Vault("alice"), address.Vault("bob"), 1, address.VaultAuthority("bob"))
		assert.ErrorIs(t, err, domain.ErrVaultAuthority)

		_, err = Debit(ctx, tx, address.Vault("alice"), 1, address.Agent("alice"))
		assert.ErrorIs(t, err, domain.ErrVaultAuthority)

		assert.Equal(t, uint64(100), balance(t, ctx, tx, "alice"))
	})
}

func TestMoveFailures(t *testing.T) {
	withVaults(t, func(ctx context.Context, tx store.Tx) {
		err := Move(ctx, tx, address.Vault("alice"), address.Vault("bob"), 1, address.VaultAuthority("alice"))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		err = Move(ctx, tx, address.Vault("alice"), address.Vault("bob"), 0, address.VaultAuthority("alice"))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		err = Move(ctx, tx, address.Vault("alice"), address.Vault("nobody"), 1, address.VaultAuthority("alice"))
		assert.ErrorIs(t, err, domain.ErrVaultNotFound)

		_, err = Credit(ctx, tx, address.Vault("bob"), math.MaxUint64)
		require.NoError(t, err)
		_, err = Credit(ctx, tx, address.Vault("alice"), 1)
		require.NoError(t, err)
		err = Move(ctx, tx, address.Vault("alice"), address.Vault("bob"), 1, address.VaultAuthority("alice"))
		assert.ErrorIs(t, err, domain.ErrOverflow)
		assert.Equal(t, uint64(1), balance(t, ctx, tx, "alice"))
	})
}

func TestDebit(t *testing.T) {
	withVaults(t, func(ctx context.Context, tx store.Tx) {
		_, err := Credit(ctx, tx, address.Vault("alice"), 10)
		require.NoError(t, err)

		v, err := Debit(ctx, tx, address.Vault("alice"), 4, address.VaultAuthority("alice"))
		require.NoError(t, err)
		assert.Equal(t, uint64(6), v.Balance)

		_, err = Debit(ctx, tx, address.Vault("alice"), 7, address.VaultAuthority("alice"))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})
}
