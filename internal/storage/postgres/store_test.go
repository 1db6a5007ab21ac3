package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// newTestStore connects to MUSEUS_TEST_POSTGRES_DSN or skips.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("MUSEUS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MUSEUS_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration tests")
	}

	s, err := Open(context.Background(), dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.truncateForTest(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testDataset(t *testing.T) []byte {
	t.Helper()
	ds := dataset.NewStoreForModel("haar-test", 3)
	require.NoError(t, ds.AddExample("art-12", types.Embedding{1, 0, 0}))
	require.NoError(t, ds.AddExample("art-12", types.Embedding{0.9, 0.1, 0}))
	require.NoError(t, ds.AddExample("art-7", types.Embedding{0, 1, 0}))
	data, err := ds.Marshal()
	require.NoError(t, err)
	return data
}

func TestPostgres_DatasetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadDataset(ctx, "museu-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	data := testDataset(t)
	require.NoError(t, s.SaveDataset(ctx, storage.DatasetRecord{
		TenantID: "museu-1", Model: "haar-test", Dimension: 3, Data: data,
	}))

	got, err := s.LoadDataset(ctx, "museu-1")
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, 3, got.Dimension)

	require.NoError(t, s.DeleteDataset(ctx, "museu-1"))
	_, err = s.LoadDataset(ctx, "museu-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_NearestExamples(t *testing.T) {
	s := newTestStore(t)
	if !s.VectorsEnabled() {
		t.Skip("pgvector not installed on the test server")
	}
	ctx := context.Background()

	require.NoError(t, s.SaveDataset(ctx, storage.DatasetRecord{
		TenantID: "museu-1", Model: "haar-test", Dimension: 3, Data: testDataset(t),
	}))

	got, err := s.NearestExamples(ctx, "museu-1", types.Embedding{1, 0.05, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "art-12", got[0].Label)
	assert.Equal(t, "art-12", got[1].Label)
}

func TestPostgres_EntityCacheAndSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreEntities(ctx, "museu-1", []types.EntityMetadata{
		{ID: "art-12", DisplayName: "Abaporu"},
	}))
	got, _, err := s.LoadEntities(ctx, "museu-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Abaporu", got[0].DisplayName)
	assert.True(t, got[0].Known)

	require.NoError(t, s.SetSetting(ctx, "tenant_id", "museu-1"))
	v, err := s.GetSetting(ctx, "tenant_id")
	require.NoError(t, err)
	assert.Equal(t, "museu-1", v)
}
