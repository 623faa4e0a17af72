package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"payledger/internal/models"
	"payledger/internal/services/wallet"
	"payledger/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("WEBHOOK_JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "sandbox", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := utils.ParseWebhookToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, models.ProviderSandbox, claims.Provider)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = run(t, "token", "paypal")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestArgumentValidation(t *testing.T) {
	_, err := run(t, "balance", "1")
	assert.Error(t, err)
	_, err = run(t, "balance", "zero", "USD")
	assert.ErrorContains(t, err, "invalid owner id")
	_, err = run(t, "verify", "0", "USD")
	assert.ErrorContains(t, err, "invalid owner id")
	_, err = run(t, "sweep", "--at", "yesterday")
	assert.ErrorContains(t, err, "invalid --at")
	_, err = run(t, "retry")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	w := &models.Wallet{ID: 7, Available: decimal.NewFromInt(30), Reserved: decimal.NewFromInt(20)}
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	r := &wallet.Reconstruction{Wallet: w, Entries: 3, Available: decimal.NewFromInt(30), Reserved: decimal.NewFromInt(20)}
	require.NoError(t, report(cmd, r))
	assert.Contains(t, out.String(), "Replayed 3 entries for wallet 7")
	assert.NotContains(t, out.String(), "✗")

	out.Reset()
	r.Reserved = decimal.NewFromInt(25)
	assert.ErrorIs(t, report(cmd, r), errMismatch)
	assert.Contains(t, out.String(), "✗ reserved  replayed 25.0000 stored 20.0000")
}
