package cli

import (
	"context"
	"fmt"
	"strings"

	"payledger/internal/app"
	"payledger/internal/models"

	"github.com/spf13/cobra"
)

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [owner-id] [currency]",
		Short: "Show a wallet's balances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				b, err := a.Payments.GetWalletBalance(ctx, owner, strings.ToUpper(args[1]))
				if err != nil {
					return err
				}
				printBalance(cmd, b)
				return nil
			})
		},
	}
}

func printBalance(cmd *cobra.Command, b models.Balance) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wallet %d/%s (%s, version %d)\n", b.OwnerID, b.Currency, b.Status, b.Version)
	fmt.Fprintf(out, "  available  %s\n", b.Available.StringFixed(models.AmountScale))
	fmt.Fprintf(out, "  pending    %s\n", b.Pending.StringFixed(models.AmountScale))
	fmt.Fprintf(out, "  reserved   %s\n", b.Reserved.StringFixed(models.AmountScale))
	fmt.Fprintf(out, "  total      %s\n", b.Total.StringFixed(models.AmountScale))
}
