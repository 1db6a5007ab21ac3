package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDatasets_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadDataset(ctx, "museu-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := storage.DatasetRecord{TenantID: "museu-1", Model: "haar-yiq-16", Dimension: 768, Data: []byte(`{"version":1}`)}
	require.NoError(t, s.SaveDataset(ctx, rec))

	got, err := s.LoadDataset(ctx, "museu-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Model, got.Model)
	assert.Equal(t, rec.Dimension, got.Dimension)
	assert.Equal(t, rec.Data, got.Data)
	assert.False(t, got.UpdatedAt.IsZero())

	// overwrite
	rec.Data = []byte(`{"version":1,"dimension":768}`)
	require.NoError(t, s.SaveDataset(ctx, rec))
	got, err = s.LoadDataset(ctx, "museu-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Data, got.Data)

	require.NoError(t, s.DeleteDataset(ctx, "museu-1"))
	_, err = s.LoadDataset(ctx, "museu-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s.DeleteDataset(ctx, "museu-1"), "deleting a missing dataset is fine")
}

func TestDatasets_InvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveDataset(ctx, storage.DatasetRecord{Data: []byte("x")})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = s.SaveDataset(ctx, storage.DatasetRecord{TenantID: "t"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = s.LoadDataset(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestEntityCache_ReplacesListing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.LoadEntities(ctx, "museu-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first := []types.EntityMetadata{
		{ID: "art-12", DisplayName: "Abaporu", Description: "Tarsila do Amaral, 1928"},
		{ID: "art-7", DisplayName: "Operários", ImageURL: "https://example.org/7.jpg"},
	}
	require.NoError(t, s.StoreEntities(ctx, "museu-1", first))

	got, fetchedAt, err := s.LoadEntities(ctx, "museu-1")
	require.NoError(t, err)
	assert.False(t, fetchedAt.IsZero())
	require.Len(t, got, 2)
	assert.Equal(t, "art-12", got[0].ID)
	assert.True(t, got[0].Known)
	assert.Equal(t, "Tarsila do Amaral, 1928", got[0].Description)
	assert.Equal(t, "https://example.org/7.jpg", got[1].ImageURL)

	require.NoError(t, s.StoreEntities(ctx, "museu-1", []types.EntityMetadata{{ID: "art-1", DisplayName: "A Negra"}}))
	got, _, err = s.LoadEntities(ctx, "museu-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "art-1", got[0].ID)

	// an empty listing is still a cached listing
	require.NoError(t, s.StoreEntities(ctx, "museu-2", nil))
	got, _, err = s.LoadEntities(ctx, "museu-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSetting(ctx, "tenant_id")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.SetSetting(ctx, "tenant_id", "museu-1"))
	require.NoError(t, s.SetSetting(ctx, "tenant_id", "museu-2"))

	v, err := s.GetSetting(ctx, "tenant_id")
	require.NoError(t, err)
	assert.Equal(t, "museu-2", v)

	assert.ErrorIs(t, s.SetSetting(ctx, "", "x"), storage.ErrInvalidInput)
}

func TestOpen_FileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.db")
	ctx := context.Background()

	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.SetSetting(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestDBPathFromDSN(t *testing.T) {
	assert.Equal(t, "", dbPathFromDSN(":memory:"))
	assert.Equal(t, "", dbPathFromDSN("file::memory:?cache=shared"))
	assert.Equal(t, "/data/scanner.db", dbPathFromDSN("/data/scanner.db"))
	assert.Equal(t, "/data/scanner.db", dbPathFromDSN("file:/data/scanner.db?mode=rwc"))
}
