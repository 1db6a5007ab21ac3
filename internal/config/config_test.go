package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage/sqlite"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 6464, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, filepath.Join("data", "scanner.db"), filepath.Clean(cfg.Storage.SQLitePath()))
	assert.Equal(t, 0.8, cfg.Recognition.AcceptThreshold)
	assert.Equal(t, cfg.Recognition.AcceptThreshold, cfg.Recognition.ReleaseThreshold)
	assert.Equal(t, 2, cfg.Recognition.Hysteresis)
	assert.Equal(t, filepath.Join("data", "frames"), filepath.Clean(cfg.Camera.SpoolDir))
	assert.Equal(t, "default", cfg.Tenant.ID)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MUSEUS_PORT", "9000")
	t.Setenv("MUSEUS_ACCEPT_THRESHOLD", "0.9")
	t.Setenv("MUSEUS_RELEASE_THRESHOLD", "0.7")
	t.Setenv("MUSEUS_HYSTERESIS", "3")
	t.Setenv("MUSEUS_MODEL_TIMEOUT", "2s")
	t.Setenv("MUSEUS_BACKUP_ENABLED", "yes")
	t.Setenv("MUSEUS_TENANT_ID", "museu-1")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Recognition.AcceptThreshold)
	assert.Equal(t, 0.7, cfg.Recognition.ReleaseThreshold)
	assert.Equal(t, 3, cfg.Recognition.Hysteresis)
	assert.Equal(t, 2*time.Second, cfg.Model.Timeout)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "museu-1", cfg.Tenant.ID)
}

func TestLoadConfig_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("MUSEUS_PORT", "not-a-port")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 6464, cfg.Server.Port)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"release above accept", map[string]string{"MUSEUS_RELEASE_THRESHOLD": "0.95"}},
		{"accept above one", map[string]string{"MUSEUS_ACCEPT_THRESHOLD": "1.5"}},
		{"zero hysteresis", map[string]string{"MUSEUS_HYSTERESIS": "0"}},
		{"unknown metric", map[string]string{"MUSEUS_METRIC": "manhattan"}},
		{"postgres without dsn", map[string]string{"MUSEUS_STORAGE_ENGINE": "postgres"}},
		{"http model without url", map[string]string{"MUSEUS_MODEL_KIND": "http"}},
		{"production without token", map[string]string{"MUSEUS_SECURITY_MODE": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
recognition:
  k: 7
  accept_threshold: 0.85
model:
  timeout: 3s
camera:
  spool_dir: /var/spool/museus
`), 0o600))

	t.Setenv("MUSEUS_PORT", "7100")

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, 7, cfg.Recognition.K)
	assert.Equal(t, 0.85, cfg.Recognition.AcceptThreshold)
	assert.Equal(t, 0.85, cfg.Recognition.ReleaseThreshold)
	assert.Equal(t, 3*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "/var/spool/museus", cfg.Camera.SpoolDir)
	assert.Equal(t, "cosine", cfg.Recognition.Metric, "unset keys keep defaults")
}

func TestLoadConfigFile_Missing(t *testing.T) {
	cfg, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6464, cfg.Server.Port)
}

func TestLoadConfigFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	_, err := config.LoadConfigFile(path)
	assert.Error(t, err)
}

func TestSaveAndLoadConfigFromDB(t *testing.T) {
	store, err := sqlite.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	// Nothing persisted yet: the config is unchanged.
	require.NoError(t, config.LoadConfigFromDB(ctx, cfg, store))
	assert.Equal(t, "default", cfg.Tenant.ID)

	cfg.Tenant.ID = "museu-1"
	cfg.Recognition.AcceptThreshold = 0.9
	cfg.Recognition.ReleaseThreshold = 0.9
	cfg.Recognition.Hysteresis = 4
	require.NoError(t, cfg.SaveConfig(ctx, store))

	fresh, err := config.LoadConfig()
	require.NoError(t, err)
	require.NoError(t, config.LoadConfigFromDB(ctx, fresh, store))
	assert.Equal(t, "museu-1", fresh.Tenant.ID)
	assert.Equal(t, 0.9, fresh.Recognition.AcceptThreshold)
	assert.Equal(t, 0.9, fresh.Recognition.ReleaseThreshold, "release follows accept when it was not set separately")
	assert.Equal(t, 4, fresh.Recognition.Hysteresis)
}

func TestLoadConfigFromDB_RejectsBadValues(t *testing.T) {
	store, err := sqlite.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SetSetting(ctx, config.SettingAcceptThreshold, "high"))
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Error(t, config.LoadConfigFromDB(ctx, cfg, store))
}
