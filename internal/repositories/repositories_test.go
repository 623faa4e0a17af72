package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var repoNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// openTestDB returns a migrated in-memory database private to the test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return repoNow },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	return db
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestWalletRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewWalletRepository(openTestDB(t))

	w := models.NewWallet(1, "USD")
	require.NoError(t, repo.Create(ctx, w))
	require.NotZero(t, w.ID)

	t.Run("duplicate owner and currency", func(t *testing.T) {
		err := repo.Create(ctx, models.NewWallet(1, "USD"))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("versioned update records the entry", func(t *testing.T) {
		current, err := repo.GetByOwner(ctx, 1, "USD")
		require.NoError(t, err)

		next := *current
		require.NoError(t, next.Credit(decimal.NewFromInt(100), repoNow))
		next.Version = current.Version + 1
		entry := models.NewWalletEntry(current, &next, models.WalletOperationCredit, decimal.NewFromInt(100), nil, repoNow)
		require.NoError(t, repo.UpdateWithVersion(ctx, &next, current.Version, entry))

		stored, err := repo.GetByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, current.Version+1, stored.Version)
		assertDecimal(t, "100", stored.Available)
		assertDecimal(t, "100", stored.Total)

		entries, err := repo.ListEntries(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.WalletOperationCredit, entries[0].Operation)
		assertDecimal(t, "100", entries[0].AvailableDelta)
	})

	t.Run("stale update writes nothing", func(t *testing.T) {
		current, err := repo.GetByOwner(ctx, 1, "USD")
		require.NoError(t, err)

		stale := *current
		require.NoError(t, stale.Credit(decimal.NewFromInt(5), repoNow))
		stale.Version = current.Version
		entry := models.NewWalletEntry(current, &stale, models.WalletOperationCredit, decimal.NewFromInt(5), nil, repoNow)
		err = repo.UpdateWithVersion(ctx, &stale, current.Version-1, entry)
		assert.ErrorIs(t, err, ErrVersionConflict)

		stored, err := repo.GetByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, current.Version, stored.Version)
		assertDecimal(t, "100", stored.Available)

		entries, err := repo.ListEntries(ctx, w.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing wallet", func(t *testing.T) {
		_, err := repo.GetByOwner(ctx, 1, "EUR")
		assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
		_, err = repo.GetByID(ctx, 999)
		assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
	})

	t.Run("list by owner is ordered by currency", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, models.NewWallet(1, "EUR")))
		wallets, err := repo.ListByOwner(ctx, 1)
		require.NoError(t, err)
		require.Len(t, wallets, 2)
		assert.Equal(t, "EUR", wallets[0].Currency)
		assert.Equal(t, "USD", wallets[1].Currency)
	})
}

func newTransaction(id, externalID string, status models.TransactionStatus, at time.Time) *models.Transaction {
	return &models.Transaction{
		ID:                    id,
		ExternalTransactionID: externalID,
		OwnerID:               1,
		Amount:                decimal.NewFromInt(50),
		Currency:              "USD",
		Provider:              models.ProviderSandbox,
		PaymentMethod:         models.PaymentMethodWallet,
		Type:                  models.TransactionTypePayment,
		Status:                status,
		Version:               1,
		CreatedAt:             at,
		UpdatedAt:             at,
	}
}

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(openTestDB(t))

	parent := newTransaction("tx-parent", "ext-parent", models.StatusSucceeded, repoNow.Add(-3*time.Hour))
	parent.ProviderRef = "sbx_000001"
	require.NoError(t, repo.Create(ctx, parent))

	t.Run("duplicate external id", func(t *testing.T) {
		err := repo.Create(ctx, newTransaction("tx-other", "ext-parent", models.StatusPending, repoNow))
		assert.ErrorIs(t, err, ErrDuplicate)
		_, err = repo.GetByID(ctx, "tx-other")
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})

	t.Run("lookups", func(t *testing.T) {
		byExt, err := repo.GetByExternalID(ctx, "ext-parent")
		require.NoError(t, err)
		assert.Equal(t, "tx-parent", byExt.ID)
		assertDecimal(t, "50", byExt.Amount)

		byRef, err := repo.GetByProviderRef(ctx, models.ProviderSandbox, "sbx_000001")
		require.NoError(t, err)
		assert.Equal(t, "tx-parent", byRef.ID)

		_, err = repo.GetByProviderRef(ctx, models.ProviderStripe, "sbx_000001")
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})

	t.Run("versioned update", func(t *testing.T) {
		current, err := repo.GetByID(ctx, "tx-parent")
		require.NoError(t, err)

		next := *current
		next.RefundedAmount = decimal.NewFromInt(10)
		next.Status = models.StatusPartiallyRefunded
		next.Version = current.Version + 1
		require.NoError(t, repo.UpdateWithVersion(ctx, &next, current.Version))

		lost := *current
		lost.Status = models.StatusDisputed
		lost.Version = current.Version + 1
		assert.ErrorIs(t, repo.UpdateWithVersion(ctx, &lost, current.Version), ErrVersionConflict)

		stored, err := repo.GetByID(ctx, "tx-parent")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPartiallyRefunded, stored.Status)
		assert.Equal(t, current.Version+1, stored.Version)
		assertDecimal(t, "10", stored.RefundedAmount)
	})

	t.Run("children in creation order", func(t *testing.T) {
		for i, at := range []time.Duration{-time.Hour, -2 * time.Hour} {
			child := newTransaction(fmt.Sprintf("tx-child-%d", i), fmt.Sprintf("ext-child-%d", i), models.StatusSucceeded, repoNow.Add(at))
			child.Type = models.TransactionTypeRefund
			child.ParentTransactionID = &parent.ID
			require.NoError(t, repo.Create(ctx, child))
		}

		children, err := repo.ListChildren(ctx, "tx-parent")
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "tx-child-1", children[0].ID)
		assert.Equal(t, "tx-child-0", children[1].ID)

		none, err := repo.ListChildren(ctx, "tx-child-0")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("stale in flight transactions oldest first", func(t *testing.T) {
		stale := []*models.Transaction{
			newTransaction("tx-stale-processing", "ext-stale-processing", models.StatusProcessing, repoNow.Add(-2*time.Hour)),
			newTransaction("tx-stale-pending", "ext-stale-pending", models.StatusPending, repoNow.Add(-5*time.Hour)),
			newTransaction("tx-fresh", "ext-fresh", models.StatusProcessing, repoNow.Add(-time.Minute)),
			newTransaction("tx-old-failed", "ext-old-failed", models.StatusFailed, repoNow.Add(-6*time.Hour)),
		}
		for _, tx := range stale {
			require.NoError(t, repo.Create(ctx, tx))
		}

		inFlight := []models.TransactionStatus{models.StatusPending, models.StatusProcessing}
		got, err := repo.ListStale(ctx, inFlight, repoNow.Add(-time.Hour), 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "tx-stale-pending", got[0].ID)
		assert.Equal(t, "tx-stale-processing", got[1].ID)

		limited, err := repo.ListStale(ctx, inFlight, repoNow.Add(-time.Hour), 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "tx-stale-pending", limited[0].ID)
	})
}
