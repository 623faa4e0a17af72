package wallet

import (
	"context"

	"payledger/internal/models"
)

// noopCache is used when no balance cache is configured.
type noopCache struct{}

func (noopCache) GetBalance(context.Context, uint, string) (*models.Balance, error) { return nil, nil }
func (noopCache) CacheBalance(context.Context, models.Balance) error { return nil }
func (noopCache) InvalidateBalance(context.Context, uint, string) error { return nil }
