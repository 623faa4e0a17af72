package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payledger/internal/app"
	"payledger/internal/models"
	"payledger/internal/services/wallet"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var errMismatch = errors.New("audit trail does not reproduce the stored balances")

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [owner-id] [currency]",
		Short: "Replay a wallet's audit trail against its stored balances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				r, err := a.Wallets.Reconstruct(ctx, owner, strings.ToUpper(args[1]))
				if err != nil {
					return err
				}
				return report(cmd, r)
			})
		},
	}
}

func report(cmd *cobra.Command, r *wallet.Reconstruction) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Replayed %d entries for wallet %d\n", r.Entries, r.Wallet.ID)
	row := func(name string, replayed, stored decimal.Decimal) {
		mark := "✓"
		if !replayed.Equal(stored) {
			mark = "✗"
		}
		fmt.Fprintf(out, "  %s %-9s replayed %s stored %s\n", mark, name,
			replayed.StringFixed(models.AmountScale), stored.StringFixed(models.AmountScale))
	}
	row("available", r.Available, r.Wallet.Available)
	row("pending", r.Pending, r.Wallet.Pending)
	row("reserved", r.Reserved, r.Wallet.Reserved)

	if !r.Matches() {
		return errMismatch
	}
	return nil
}
