package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/reputation"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 0, "alice")

	res, err := l.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, res.Registered)
	assert.Equal(t, address.Vault("alice"), res.Vault)
	assert.Equal(t, address.VaultAuthority("alice"), res.VaultAuthority)

	res, err = l.Resolve(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, res.Registered)
	assert.Equal(t, address.Agent("bob"), res.Agent)

	_, err = l.Resolve(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidNameLength)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	l, _ := invoiceLedger(t)

	agents, err := l.Agents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, "alice", agents[0].Name)

	_, err = l.CreateInvoice(ctx, key("alice"), domain.InvoiceRequest{Requester: "alice", Payer: "bob", Amount: 10})
	require.NoError(t, err)
	_, err = l.CreateInvoice(ctx, key("carol"), domain.InvoiceRequest{Requester: "carol", Payer: "alice", Amount: 10})
	require.NoError(t, err)
	_, err = l.Approve(ctx, key("bob"), "bob", "carol", 10)
	require.NoError(t, err)
	_, err = l.CreateSubscription(ctx, key("carol"), "carol", "alice", 10, 60)
	require.NoError(t, err)

	invoices, err := l.Invoices(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, uint64(0), invoices[0].ID)
	assert.Equal(t, uint64(1), invoices[1].ID)

	invoices, err = l.Invoices(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	allowances, err := l.Allowances(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, allowances, 1)
	allowances, err = l.Allowances(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, allowances)

	subs, err := l.Subscriptions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestEventFeed(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 100, "alice", "bob")

	_, err := l.Transfer(ctx, key("alice"), domain.TransferRequest{From: "alice", To: "bob", Amount: 40, Memo: "tip"})
	require.NoError(t, err)

	events, err := l.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, domain.EventAgentRegistered, events[0].Type)
	assert.Equal(t, domain.EventDeposited, events[1].Type)

	last := events[4]
	assert.Equal(t, domain.EventTransfer, last.Type)
	assert.Equal(t, start, last.Timestamp)
	var payload domain.TransferEvent
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, "tip", payload.Memo)
	assert.Equal(t, uint64(40), payload.Amount)

	tail, err := l.Events(ctx, events[3].Seq, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, last.Seq, tail[0].Seq)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	fund(t, l, 10_000_000, "alice", "bob", "carol")

	_, err := l.Transfer(ctx, key("alice"), domain.TransferRequest{From: "alice", To: "bob", Amount: 5_000_000})
	require.NoError(t, err)
	_, err = l.Transfer(ctx, key("carol"), domain.TransferRequest{From: "carol", To: "bob", Amount: 1_000_000})
	require.NoError(t, err)
	_, err = l.SetDailyLimit(ctx, key("carol"), "carol", 1)
	require.NoError(t, err)

	board, err := l.Leaderboard(ctx, reputation.SortReceived, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Name)

	board, err = l.Leaderboard(ctx, reputation.SortSent, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"alice", "carol", "bob"}, []string{board[0].Name, board[1].Name, board[2].Name})

	report, err := l.Reputation(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, report.Breakdown.HasSpendingCap)
	assert.Contains(t, report.Badges, reputation.BadgeSafetyConscious)
	assert.Contains(t, report.Badges, reputation.BadgeEarlyAdopter)

	_, err = l.Reputation(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
