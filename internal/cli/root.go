// Package cli implements the ledgerctl operator commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"payledger/internal/app"
	"payledger/internal/config"
	applog "payledger/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the payment ledger",
		Long: `ledgerctl runs maintenance against the ledger database: migrations,
expiry sweeps, balance checks, audit trail verification and retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.LoadEnv()
		},
	}

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newBalanceCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newRetryCmd())
	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withApp builds the services for one command and releases them afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()
	zl, err := applog.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	a, err := app.New(cfg, zl.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
		}
	}()
	return fn(cmd.Context(), a)
}

func parseOwner(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid owner id %q", arg)
	}
	return uint(id), nil
}
