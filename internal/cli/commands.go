package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/clawledger/internal/custody"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/reputation"
	"github.com/punchamoorthee/clawledger/internal/service"
)

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", s), err)
	}
	return v, nil
}

type vaultView struct{ *custody.Vault }

func (v vaultView) Text() string {
	return fmt.Sprintf("%s balance=%d", v.Owner, v.Balance)
}

type agentView struct {
	*domain.Agent
	Balance uint64 `json:"balance"`
}

func (a agentView) Text() string {
	limit := "none"
	if a.DailyLimit > 0 {
		limit = fmt.Sprintf("%d (spent %d)", a.DailyLimit, a.DailySpent)
	}
	return fmt.Sprintf("%s\n  address:  %s\n  vault:    %s\n  balance:  %d\n  sent:     %d\n  received: %d\n  limit:    %s",
		a.Name, a.Address, a.Vault, a.Balance, a.TotalSent, a.TotalReceived, limit)
}

func newInitCounterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-counter",
		Short: "Create the global invoice counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				return l.InitInvoiceCounter(ctx)
			})
		},
	}
}

func newRegisterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Register a name controlled by --as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				a, err := l.Register(ctx, opts.caller(), args[0])
				if err != nil {
					return nil, err
				}
				return agentView{Agent: a}, nil
			})
		},
	}
}

func newDepositCommand(opts *RootOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "deposit <name> <amount>",
		Short: "Credit an agent's vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				v, err := l.Deposit(ctx, args[0], amt, source)
				if err != nil {
					return nil, err
				}
				return vaultView{v}, nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "external funding reference")
	return cmd
}

func newWithdrawCommand(opts *RootOptions) *cobra.Command {
	var destination string
	cmd := &cobra.Command{
		Use:   "withdraw <name> <amount>",
		Short: "Debit an agent's vault to an external destination",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				v, err := l.Withdraw(ctx, opts.caller(), args[0], amt, destination)
				if err != nil {
					return nil, err
				}
				return vaultView{v}, nil
			})
		},
	}
	cmd.Flags().StringVar(&destination, "to", "", "external destination reference")
	return cmd
}

type transferView struct{ *domain.TransferEvent }

func (t transferView) Text() string {
	return fmt.Sprintf("%s -> %s %d", t.Sender, t.Receiver, t.Amount)
}

func newSendCommand(opts *RootOptions) *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "send <from> <to> <amount>",
		Short: "Transfer between two registered names",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				ev, err := l.Transfer(ctx, opts.caller(), domain.TransferRequest{From: args[0], To: args[1], Amount: amt, Memo: memo})
				if err != nil {
					return nil, err
				}
				return transferView{ev}, nil
			})
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "transfer memo")
	return cmd
}

func newLimitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "limit <name> <amount>",
		Short: "Set the daily spending cap, 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				a, err := l.SetDailyLimit(ctx, opts.caller(), args[0], limit)
				if err != nil {
					return nil, err
				}
				v, err := l.Balance(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return agentView{Agent: a, Balance: v.Balance}, nil
			})
		},
	}
}

func newAgentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent <name>",
		Short: "Show an agent and its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				a, err := l.Agent(ctx, args[0])
				if err != nil {
					return nil, err
				}
				v, err := l.Balance(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return agentView{Agent: a, Balance: v.Balance}, nil
			})
		},
	}
}

type dueView []domain.DueSubscription

func (d dueView) Text() string {
	if len(d) == 0 {
		return "no subscriptions due"
	}
	var b strings.Builder
	for i, s := range d {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s -> %s %d (overdue %ds)", s.Address, s.SenderName, s.ReceiverName, s.Amount, s.OverdueSeconds)
	}
	return b.String()
}

func newDueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List subscriptions that can be executed now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				due, err := l.DueSubscriptions(ctx)
				if err != nil {
					return nil, err
				}
				if due == nil {
					due = []domain.DueSubscription{}
				}
				return dueView(due), nil
			})
		},
	}
}

type crankView struct{ *service.CrankResult }

func (c crankView) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "executed %d, failed %d", len(c.Executed), len(c.Failed))
	for _, f := range c.Failed {
		fmt.Fprintf(&b, "\n  %s -> %s: %s", f.Sender, f.Receiver, f.Error)
	}
	return b.String()
}

func newCrankCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crank",
		Short: "Execute every due subscription once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				res, err := l.Crank(ctx)
				if err != nil {
					return nil, err
				}
				return crankView{res}, nil
			})
		},
	}
}

type boardView []reputation.Entry

func (e boardView) Text() string {
	var b strings.Builder
	for i, row := range e {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%3d. %-32s score=%-3d %-8s volume=%d", i+1, row.Name, row.Score, row.Tier, row.TotalVolume)
	}
	return b.String()
}

func newLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var (
		sort  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank agents by volume, reputation, sent or received",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *service.Ledger) (any, error) {
				board, err := l.Leaderboard(ctx, sort, limit)
				if err != nil {
					return nil, err
				}
				return boardView(board), nil
			})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", reputation.SortVolume, "volume|reputation|sent|received")
	cmd.Flags().IntVar(&limit, "limit", reputation.DefaultLimit, "maximum rows")
	return cmd
}
