package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/domain"
)

func TestAllowancePulls(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 5000, "alice", "bob")

	_, err := l.Approve(ctx, key("alice"), "alice", "bob", 1000)
	require.NoError(t, err)

	pull := func(amt uint64) (*domain.TransferFromEvent, error) {
		return l.TransferFrom(ctx, key("bob"), domain.TransferFromRequest{Owner: "alice", Spender: "bob", Amount: amt, Memo: "api usage"})
	}

	_, err = pull(300)
	require.NoError(t, err)
	event, err := pull(300)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), event.RemainingAllowance)
	assert.Equal(t, uint64(2), event.PullNumber)

	_, err = pull(500)
	assert.ErrorIs(t, err, domain.ErrAllowanceExceeded)

	allowance, err := l.Allowance(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(400), allowance.Amount)
	assert.Equal(t, uint64(600), allowance.TotalPulled)
	assert.Equal(t, uint64(2), allowance.PullCount)
	assert.Equal(t, uint64(4400), balance(t, l, "alice"))
	assert.Equal(t, uint64(5600), balance(t, l, "bob"))
}

func TestAllowanceAuthorization(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 5000, "alice", "bob", "carol")

	_, err := l.Approve(ctx, key("bob"), "alice", "bob", 1000)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = l.Approve(ctx, key("alice"), "alice", "alice", 1000)
	assert.ErrorIs(t, err, domain.ErrCannotApproveSelf)

	_, err = l.Approve(ctx, key("alice"), "alice", "bob", 1000)
	require.NoError(t, err)

	_, err = l.TransferFrom(ctx, key("carol"), domain.TransferFromRequest{Owner: "alice", Spender: "bob", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = l.TransferFrom(ctx, key("carol"), domain.TransferFromRequest{Owner: "alice", Spender: "carol", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrAllowanceNotFound)

	_, err = l.Revoke(ctx, key("bob"), "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = l.IncreaseAllowance(ctx, key("bob"), "alice", "bob", 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAllowanceRevokeAndIncrease(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 5000, "alice", "bob")

	_, err := l.Approve(ctx, key("alice"), "alice", "bob", 100)
	require.NoError(t, err)
	allowance, err := l.IncreaseAllowance(ctx, key("alice"), "alice", "bob", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), allowance.Amount)

	_, err = l.TransferFrom(ctx, key("bob"), domain.TransferFromRequest{Owner: "alice", Spender: "bob", Amount: 150})
	require.NoError(t, err)

	allowance, err = l.Revoke(ctx, key("alice"), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, allowance.Active)
	assert.Zero(t, allowance.Amount)
	assert.Equal(t, uint64(150), allowance.TotalPulled)

	_, err = l.TransferFrom(ctx, key("bob"), domain.TransferFromRequest{Owner: "alice", Spender: "bob", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrAllowanceNotActive)
	_, err = l.IncreaseAllowance(ctx, key("alice"), "alice", "bob", 10)
	assert.ErrorIs(t, err, domain.ErrAllowanceNotActive)

	allowance, err = l.Approve(ctx, key("alice"), "alice", "bob", 20)
	require.NoError(t, err)
	assert.True(t, allowance.Active)
	assert.Equal(t, uint64(20), allowance.Amount)
	assert.Zero(t, allowance.PullCount)
}

func TestTransferFromChargesOwnerCap(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 5000, "alice", "bob")

	_, err := l.SetDailyLimit(ctx, key("alice"), "alice", 100)
	require.NoError(t, err)
	_, err = l.Approve(ctx, key("alice"), "alice", "bob", 1000)
	require.NoError(t, err)

	_, err = l.TransferFrom(ctx, key("bob"), domain.TransferFromRequest{Owner: "alice", Spender: "bob", Amount: 101})
	assert.ErrorIs(t, err, domain.ErrSpendingCapExceeded)

	allowance, err := l.Allowance(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), allowance.Amount)
}
