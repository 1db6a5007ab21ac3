package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// LoadDataset implements storage.DatasetRepository.
func (s *Store) LoadDataset(ctx context.Context, tenantID string) (*storage.DatasetRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant ID is required", storage.ErrInvalidInput)
	}

	rec := storage.DatasetRecord{TenantID: tenantID}
	err := s.db.QueryRowContext(ctx, `
		SELECT model, dimension, data, updated_at
		FROM datasets
		WHERE tenant_id = ?
	`, tenantID).Scan(&rec.Model, &rec.Dimension, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dataset for tenant %q", storage.ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return &rec, nil
}

// SaveDataset implements storage.DatasetRepository.
func (s *Store) SaveDataset(ctx context.Context, rec storage.DatasetRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (tenant_id, model, dimension, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			model = excluded.model,
			dimension = excluded.dimension,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, rec.TenantID, rec.Model, rec.Dimension, rec.Data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// DeleteDataset implements storage.DatasetRepository.
func (s *Store) DeleteDataset(ctx context.Context, tenantID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM datasets WHERE tenant_id = ?", tenantID); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}

// LoadEntities implements storage.EntityCache.
func (s *Store) LoadEntities(ctx context.Context, tenantID string) ([]types.EntityMetadata, time.Time, error) {
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT fetched_at FROM entity_fetches WHERE tenant_id = ?", tenantID,
	).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("%w: no cached entities for tenant %q", storage.ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read entity cache: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, description, image_url
		FROM entities
		WHERE tenant_id = ?
		ORDER BY position
	`, tenantID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read entity cache: %w", err)
	}
	defer rows.Close()

	var out []types.EntityMetadata
	for rows.Next() {
		var e types.EntityMetadata
		var desc, img sql.NullString
		if err := rows.Scan(&e.ID, &e.DisplayName, &desc, &img); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Description = desc.String
		e.ImageURL = img.String
		e.Known = true
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read entity cache: %w", err)
	}
	return out, fetchedAt, nil
}

// StoreEntities implements storage.EntityCache. The previous listing is
// replaced atomically.
func (s *Store) StoreEntities(ctx context.Context, tenantID string, entities []types.EntityMetadata) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant ID is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE tenant_id = ?", tenantID); err != nil {
		return fmt.Errorf("failed to clear entity cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entities (tenant_id, id, display_name, description, image_url, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entities {
		if e.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, tenantID, e.ID, e.DisplayName,
			nullableString(e.Description), nullableString(e.ImageURL), i); err != nil {
			return fmt.Errorf("failed to cache entity %q: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entity_fetches (tenant_id, fetched_at) VALUES (?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET fetched_at = excluded.fetched_at
	`, tenantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record entity fetch: %w", err)
	}

	return tx.Commit()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
