// Package memory implements the repository interfaces in process.
//
// Writes compare the stored version under a short mutex, so concurrent
// callers see the same conflicts they would against postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/models"
	"payledger/internal/repositories"
)

type ownerCurrency struct {
	owner    uint
	currency string
}

// WalletStore is an in-memory repositories.WalletRepository.
type WalletStore struct {
	mu      sync.Mutex
	nextID  uint
	wallets map[uint]models.Wallet
	byOwner map[ownerCurrency]uint
	entries map[uint][]models.WalletEntry
	nextEnt uint
}

func NewWalletStore() *WalletStore {
	return &WalletStore{
		wallets: make(map[uint]models.Wallet),
		byOwner: make(map[ownerCurrency]uint),
		entries: make(map[uint][]models.WalletEntry),
	}
}

var _ repositories.WalletRepository = (*WalletStore)(nil)

func (s *WalletStore) Create(ctx context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerCurrency{wallet.OwnerID, wallet.Currency}
	if _, ok := s.byOwner[key]; ok {
		return repositories.ErrDuplicate
	}
	s.nextID++
	wallet.ID = s.nextID
	if wallet.Version == 0 {
		wallet.Version = 1
	}
	now := time.Now().UTC()
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = now
	}
	wallet.UpdatedAt = now
	wallet.RecomputeTotal()

	s.wallets[wallet.ID] = *wallet
	s.byOwner[key] = wallet.ID
	return nil
}

func (s *WalletStore) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrWalletNotFound, "id %d", id)
	}
	return &w, nil
}

func (s *WalletStore) GetByOwner(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byOwner[ownerCurrency{ownerID, currency}]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrWalletNotFound, "owner %d currency %s", ownerID, currency)
	}
	w := s.wallets[id]
	return &w, nil
}

func (s *WalletStore) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Wallet
	for key, id := range s.byOwner {
		if key.owner == ownerID {
			w := s.wallets[id]
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *WalletStore) UpdateWithVersion(ctx context.Context, wallet *models.Wallet, expectedVersion uint, entry *models.WalletEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.wallets[wallet.ID]
	if !ok {
		return apperrors.Wrap(apperrors.ErrWalletNotFound, "id %d", wallet.ID)
	}
	if current.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	wallet.RecomputeTotal()
	wallet.CreatedAt = current.CreatedAt
	s.wallets[wallet.ID] = *wallet

	if entry != nil {
		s.nextEnt++
		entry.ID = s.nextEnt
		s.entries[wallet.ID] = append(s.entries[wallet.ID], *entry)
	}
	return nil
}

func (s *WalletStore) ListEntries(ctx context.Context, walletID uint) ([]models.WalletEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.WalletEntry, len(s.entries[walletID]))
	copy(out, s.entries[walletID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// TransactionStore is an in-memory repositories.TransactionRepository.
type TransactionStore struct {
	mu         sync.Mutex
	txs        map[string]models.Transaction
	byExternal map[string]string
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		txs:        make(map[string]models.Transaction),
		byExternal: make(map[string]string),
	}
}

var _ repositories.TransactionRepository = (*TransactionStore)(nil)

func cloneTransaction(tx models.Transaction) *models.Transaction {
	if tx.Metadata != nil {
		md := make(models.ProviderMetadata, len(tx.Metadata))
		for k, v := range tx.Metadata {
			md[k] = v
		}
		tx.Metadata = md
	}
	return &tx
}

func (s *TransactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byExternal[tx.ExternalTransactionID]; ok {
		return repositories.ErrDuplicate
	}
	if _, ok := s.txs[tx.ID]; ok {
		return repositories.ErrDuplicate
	}
	if tx.Version == 0 {
		tx.Version = 1
	}
	s.txs[tx.ID] = *cloneTransaction(*tx)
	s.byExternal[tx.ExternalTransactionID] = tx.ID
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrTransactionNotFound, "id %s", id)
	}
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrTransactionNotFound, "external id %s", externalID)
	}
	return cloneTransaction(s.txs[id]), nil
}

func (s *TransactionStore) GetByProviderRef(ctx context.Context, provider models.Provider, ref string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.txs {
		if tx.Provider == provider && tx.ProviderRef != "" && tx.ProviderRef == ref {
			return cloneTransaction(tx), nil
		}
	}
	return nil, apperrors.Wrap(apperrors.ErrTransactionNotFound, "%s ref %s", provider, ref)
}

func (s *TransactionStore) UpdateWithVersion(ctx context.Context, tx *models.Transaction, expectedVersion uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.txs[tx.ID]
	if !ok {
		return apperrors.Wrap(apperrors.ErrTransactionNotFound, "id %s", tx.ID)
	}
	if current.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	tx.CreatedAt = current.CreatedAt
	s.txs[tx.ID] = *cloneTransaction(*tx)
	return nil
}

func (s *TransactionStore) ListStale(ctx context.Context, statuses []models.TransactionStatus, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[models.TransactionStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	var out []*models.Transaction
	for _, tx := range s.txs {
		if wanted[tx.Status] && tx.UpdatedAt.Before(cutoff) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *TransactionStore) ListChildren(ctx context.Context, parentID string) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Transaction
	for _, tx := range s.txs {
		if tx.ParentTransactionID != nil && *tx.ParentTransactionID == parentID {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
