package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

func TestSubscriptionDueGating(t *testing.T) {
	ctx := context.Background()
	l, clock := newLedger(t)
	fund(t, l, 1000, "alice", "bob")

	sub, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, 60)
	require.NoError(t, err)
	assert.Equal(t, address.Subscription(address.Agent("alice"), address.Agent("bob")), sub.Address)
	assert.Equal(t, start+60, sub.NextDue)

	clock.now = start + 59
	_, err = l.ExecuteSubscription(ctx, sub.Address)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotDue)

	clock.now = start + 60
	event, err := l.ExecuteSubscription(ctx, sub.Address)
	require.NoError(t, err)
	assert.Equal(t, start+120, event.NextDue)
	assert.Equal(t, uint64(1), event.ExecutionCount)
	assert.Equal(t, "Subscription payment #1", event.Memo)

	_, err = l.ExecuteSubscription(ctx, sub.Address)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotDue)

	assert.Equal(t, uint64(900), balance(t, l, "alice"))
	assert.Equal(t, uint64(1100), balance(t, l, "bob"))
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	l, clock := newLedger(t)
	fund(t, l, 1000, "alice", "bob")

	_, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, 59)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	_, err = l.CreateSubscription(ctx, key("alice"), "alice", "bob", 0, 60)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = l.CreateSubscription(ctx, key("bob"), "alice", "bob", 100, 60)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = l.CreateSubscription(ctx, key("alice"), "alice", "ghost", 100, 60)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	sub, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, 3600)
	require.NoError(t, err)
	_, err = l.CreateSubscription(ctx, key("alice"), "alice", "bob", 200, 3600)
	assert.ErrorIs(t, err, domain.ErrSubscriptionExists)

	_, err = l.CancelSubscription(ctx, key("bob"), sub.Address)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	cancelled, err := l.CancelSubscription(ctx, key("alice"), sub.Address)
	require.NoError(t, err)
	assert.False(t, cancelled.Active)

	clock.now = start + 3600
	_, err = l.ExecuteSubscription(ctx, sub.Address)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotActive)

	_, err = l.ExecuteSubscription(ctx, address.Subscription(address.Agent("bob"), address.Agent("alice")))
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestSubscriptionRespectsSenderCap(t *testing.T) {
	ctx := context.Background()
	l, clock := newLedger(t)
	fund(t, l, 1000, "alice", "bob")

	_, err := l.SetDailyLimit(ctx, key("alice"), "alice", 50)
	require.NoError(t, err)
	sub, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, 60)
	require.NoError(t, err)

	clock.now = start + 60
	_, err = l.ExecuteSubscription(ctx, sub.Address)
	assert.ErrorIs(t, err, domain.ErrSpendingCapExceeded)

	got, err := l.Subscription(ctx, sub.Address)
	require.NoError(t, err)
	assert.Equal(t, start+60, got.NextDue)
	assert.Zero(t, got.ExecutionCount)
}

func TestCrank(t *testing.T) {
	ctx := context.Background()
	l, clock := newLedger(t)
	fund(t, l, 1000, "alice", "bob")
	fund(t, l, 50, "carol")

	_, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, 60)
	require.NoError(t, err)
	_, err = l.CreateSubscription(ctx, key("carol"), "carol", "bob", 100, 60)
	require.NoError(t, err)

	due, err := l.DueSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	clock.now = start + 90
	due, err = l.DueSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(30), due[0].OverdueSeconds)

	res, err := l.Crank(ctx)
	require.NoError(t, err)
	require.Len(t, res.Executed, 1)
	assert.Equal(t, "alice", res.Executed[0].Sender)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "carol", res.Failed[0].Sender)
	assert.Equal(t, domain.ErrInsufficientFunds.Error(), res.Failed[0].Error)

	res, err = l.Crank(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Executed)
	assert.Len(t, res.Failed, 1)

	assert.Equal(t, uint64(1100), balance(t, l, "bob"))
	assert.Equal(t, uint64(50), balance(t, l, "carol"))
}

func TestSubscriptionScheduleOverflow(t *testing.T) {
	ctx := context.Background()
	l, clock := newLedger(t)
	fund(t, l, 1000, "alice", "bob")

	_, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	sub, err := l.CreateSubscription(ctx, key("alice"), "alice", "bob", 100, math.MaxInt64-start)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), sub.NextDue)

	clock.now = math.MaxInt64
	for range 3 {
		_, err = l.ExecuteSubscription(ctx, sub.Address)
		assert.ErrorIs(t, err, domain.ErrOverflow)
	}

	got, err := l.Subscription(ctx, sub.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got.NextDue)
	assert.Zero(t, got.ExecutionCount)
	assert.Equal(t, uint64(1000), balance(t, l, "alice"))
}
