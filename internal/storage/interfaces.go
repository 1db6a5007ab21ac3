// Package storage defines the persistence interfaces of the scanner: the
// per-tenant reference dataset, the offline entity cache and key/value
// settings. Implementations live in the sqlite and postgres subpackages.
package storage

import (
	"context"
	"time"

	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// DatasetRepository persists serialized reference datasets.
type DatasetRepository interface {
	// LoadDataset returns the tenant's dataset or ErrNotFound.
	LoadDataset(ctx context.Context, tenantID string) (*DatasetRecord, error)

	// SaveDataset replaces the tenant's dataset.
	SaveDataset(ctx context.Context, rec DatasetRecord) error

	// DeleteDataset removes the tenant's dataset. Missing datasets are not an error.
	DeleteDataset(ctx context.Context, tenantID string) error
}

// EntityCache keeps the last catalog listing so the scanner can resolve
// labels when the catalog is unreachable at boot.
type EntityCache interface {
	// LoadEntities returns the cached listing and when it was fetched, or ErrNotFound.
	LoadEntities(ctx context.Context, tenantID string) ([]types.EntityMetadata, time.Time, error)

	// StoreEntities replaces the cached listing.
	StoreEntities(ctx context.Context, tenantID string, entities []types.EntityMetadata) error
}

// SettingsStore is a persisted key/value store for runtime settings.
type SettingsStore interface {
	// GetSetting returns the value for key or ErrNotFound.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting upserts key.
	SetSetting(ctx context.Context, key, value string) error
}
