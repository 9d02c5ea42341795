package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/clawledger/internal/config"
	"github.com/punchamoorthee/clawledger/internal/domain"
	"github.com/punchamoorthee/clawledger/internal/logging"
	"github.com/punchamoorthee/clawledger/internal/service"
	"github.com/punchamoorthee/clawledger/internal/store"
)

// Opener connects to the ledger. The returned func releases it.
type Opener func(ctx context.Context, opts *RootOptions) (*service.Ledger, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	As      string
	Driver  string
	DB      string

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) caller() domain.Identity {
	return domain.Identity(o.As)
}

// NewRootCommand creates the root command for clawctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromConfig)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "clawctl",
		Short: "Operate a claw ledger",
		Long:  "Operator CLI for the named-agent payment ledger. Amounts are in base units (1 display unit = 1,000,000).",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "caller identity for mutating commands")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver, overrides STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "store source, overrides DB_SOURCE")

	cmd.AddCommand(newInitCounterCommand(opts))
	cmd.AddCommand(newRegisterCommand(opts))
	cmd.AddCommand(newDepositCommand(opts))
	cmd.AddCommand(newWithdrawCommand(opts))
	cmd.AddCommand(newSendCommand(opts))
	cmd.AddCommand(newLimitCommand(opts))
	cmd.AddCommand(newAgentCommand(opts))
	cmd.AddCommand(newDueCommand(opts))
	cmd.AddCommand(newCrankCommand(opts))
	cmd.AddCommand(newLeaderboardCommand(opts))

	return cmd
}

func openFromConfig(ctx context.Context, opts *RootOptions) (*service.Ledger, func(), error) {
	if opts.Driver != "" {
		os.Setenv("STORE_DRIVER", opts.Driver)
	}
	if opts.DB != "" {
		os.Setenv("DB_SOURCE", opts.DB)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(cfg.Env, level)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "build logger", err)
	}

	st, err := store.Open(ctx, cfg.Driver, cfg.DBSource)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open store", err)
	}
	release := func() {
		st.Close()
		logger.Sync()
	}
	return service.New(st, service.WithLogger(logger)), release, nil
}

// withLedger opens the ledger, runs fn and prints its result.
func withLedger(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, l *service.Ledger) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, release, err := opts.open(ctx, opts)
	if err != nil {
		return err
	}
	defer release()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	result, err := fn(ctx, l)
	if err != nil {
		code, msg := "Internal", err.Error()
		if de, ok := asDomainError(err); ok {
			code = de.Code
		}
		if ferr := out.Error(code, msg, nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, code, err)
	}
	return out.Success(result)
}
