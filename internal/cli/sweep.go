package cli

import (
	"context"
	"fmt"
	"time"

	"payledger/internal/app"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire transactions stuck in PENDING or PROCESSING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := sweepTime(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Payments.SweepExpired(ctx, at)
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d transaction(s) idle since before %s\n",
					n, at.Add(-a.Config.Policy.ProcessingTimeout).Format(time.RFC3339))
				return err
			})
		},
	}
	cmd.Flags().String("at", "", "Sweep as of this RFC3339 time instead of now")
	return cmd
}

func sweepTime(cmd *cobra.Command) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	if at == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t.UTC(), nil
}
