package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/clawledger/internal/service"
	"github.com/punchamoorthee/clawledger/internal/store"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "clawctl", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{
		"init-counter", "register", "deposit", "withdraw", "send",
		"limit", "agent", "due", "crank", "leaderboard",
	} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"format", "as", "verbose", "driver", "db"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

// harness runs commands against one in-memory ledger shared across invocations.
type harness struct {
	t      *testing.T
	ledger *service.Ledger
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, ledger: service.New(store.NewMemory())}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCommand(func(context.Context, *RootOptions) (*service.Ledger, func(), error) {
		return h.ledger, func() {}, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--format", "xml", "due")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSendFlow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("--as", "alice-key", "register", "alice")
	h.mustRun("--as", "bob-key", "register", "bob")
	h.mustRun("deposit", "alice", "1000")

	out := h.mustRun("--as", "alice-key", "send", "alice", "bob", "250", "--memo", "lunch")
	assert.Equal(t, "alice -> bob 250\n", out)

	out = h.mustRun("--format", "json", "agent", "bob")
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Name          string `json:"name"`
			Balance       uint64 `json:"balance"`
			TotalReceived uint64 `json:"total_received"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "bob", resp.Data.Name)
	assert.Equal(t, uint64(250), resp.Data.Balance)
	assert.Equal(t, uint64(250), resp.Data.TotalReceived)
}

func TestLedgerRefusalSetsExitCode(t *testing.T) {
	h := newHarness(t)
	h.mustRun("--as", "alice-key", "register", "alice")
	h.mustRun("--as", "bob-key", "register", "bob")

	out, err := h.run("--as", "bob-key", "--format", "json", "send", "alice", "bob", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Unauthorized", resp.Error.Code)

	_, err = h.run("deposit", "alice", "lots")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLimitDueAndCrank(t *testing.T) {
	h := newHarness(t)
	h.mustRun("--as", "alice-key", "register", "alice")
	h.mustRun("deposit", "alice", "500")

	out := h.mustRun("--as", "alice-key", "limit", "alice", "100")
	assert.Contains(t, out, "limit:    100 (spent 0)")
	assert.Contains(t, out, "balance:  500")

	assert.Equal(t, "no subscriptions due\n", h.mustRun("due"))
	assert.Equal(t, "executed 0, failed 0\n", h.mustRun("crank"))
}

func TestLeaderboard(t *testing.T) {
	h := newHarness(t)
	h.mustRun("--as", "alice-key", "register", "alice")
	h.mustRun("--as", "bob-key", "register", "bob")
	h.mustRun("deposit", "alice", "1000")
	h.mustRun("--as", "alice-key", "send", "alice", "bob", "400")

	out := h.mustRun("--format", "json", "leaderboard", "--sort", "received", "--limit", "1")
	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "bob", resp.Data[0].Name)
}
