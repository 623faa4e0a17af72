package cli

import (
	"fmt"
	"time"

	"payledger/internal/config"
	"payledger/internal/models"
	"payledger/internal/utils"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [provider]",
		Short: "Mint a webhook token for a payment provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, ok := models.ParseProvider(args[0])
			if !ok {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			tok, err := utils.GenerateWebhookToken(config.Load().WebhookJWTSecret, provider, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 30*24*time.Hour, "Token lifetime")
	return cmd
}
