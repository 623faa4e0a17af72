package cli

import (
	"fmt"

	"payledger/internal/config"
	"payledger/internal/repositories"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := repositories.Open(config.Load().DB)
			if err != nil {
				return err
			}
			defer func() { _ = repositories.Close(db) }()

			if err := repositories.Migrate(db); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ wallets, transactions and wallet_entries are up to date")
			return nil
		},
	}
}
