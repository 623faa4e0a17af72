package cli

import (
	"context"
	"errors"
	"fmt"

	"payledger/internal/app"
	apperrors "payledger/internal/errors"

	"github.com/spf13/cobra"
)

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [transaction-id]",
		Short: "Retry a FAILED transaction that has attempts left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tx, err := a.Payments.RetryPayment(ctx, args[0])
				if tx != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is %s after attempt %d\n", tx.ID, tx.Status, tx.AttemptCount)
				}
				if errors.Is(err, apperrors.ErrProvider) {
					fmt.Fprintf(cmd.OutOrStdout(), "provider declined: %v\n", err)
					return nil
				}
				return err
			})
		},
	}
}
