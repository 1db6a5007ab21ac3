// Package config provides configuration management for the scanner.
//
// Values are resolved in layers: built-in defaults, an optional YAML file,
// MUSEUS_* environment variables, and finally settings persisted in the
// database (tenant and recognition tuning set from the kiosk admin screen).
// SaveConfig writes those settings back.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
)

// Config holds all configuration settings for the scanner.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Model       ModelConfig       `yaml:"model"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Camera      CameraConfig      `yaml:"camera"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Security    SecurityConfig    `yaml:"security"`
	Backup      BackupConfig      `yaml:"backup"`
	Tenant      TenantConfig      `yaml:"tenant"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // default: 6464
	Host string `yaml:"host"` // default: 127.0.0.1
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite (default) or postgres
	DataPath    string `yaml:"data_path"`    // directory holding scanner.db (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // required for postgres
}

// SQLitePath returns the sqlite database file.
func (s StorageConfig) SQLitePath() string {
	return filepath.Join(s.DataPath, "scanner.db")
}

// ModelConfig selects the embedding extractor.
type ModelConfig struct {
	Kind      string        `yaml:"kind"`       // haar (default) or http
	AssetPath string        `yaml:"asset_path"` // haar manifest
	ServerURL string        `yaml:"server_url"` // http sidecar
	Name      string        `yaml:"name"`       // http model name
	Timeout   time.Duration `yaml:"timeout"`
}

// RecognitionConfig tunes the classifier and the acceptance policy.
type RecognitionConfig struct {
	K                int     `yaml:"k" json:"k"`                                 // neighbours (default: 5)
	Metric           string  `yaml:"metric" json:"metric"`                       // cosine (default) or euclidean
	MinSimilarity    float64 `yaml:"min_similarity" json:"min_similarity"`       // neighbours below this abstain (default: 0.5)
	AcceptThreshold  float64 `yaml:"accept_threshold" json:"accept_threshold"`   // default: 0.8
	ReleaseThreshold float64 `yaml:"release_threshold" json:"release_threshold"` // default: accept threshold
	Hysteresis       int     `yaml:"hysteresis" json:"hysteresis"`               // consecutive cycles h (default: 2)
	FPS              float64 `yaml:"fps" json:"fps"`                             // scan cadence (default: 10)
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device   string `yaml:"device"`    // dir (default)
	SpoolDir string `yaml:"spool_dir"` // default: <data_path>/frames
}

// CatalogConfig points at the entity catalog.
type CatalogConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	Mode     string `yaml:"mode"`      // development (default) or production
	APIToken string `yaml:"api_token"` // required in production
}

// BackupConfig contains database backup configuration.
type BackupConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default: 24h
	Path     string        `yaml:"path"`     // default: ./backups
	Verify   bool          `yaml:"verify"`   // default: true
	Keep     int           `yaml:"keep"`     // newest snapshots kept (default: 7)
}

// TenantConfig identifies the museum whose dataset and catalog are used.
type TenantConfig struct {
	ID string `yaml:"id"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: info
	Format string `yaml:"format"` // json (default) or console
}

// Setting keys persisted in the settings table.
const (
	SettingTenantID        = "tenant_id"
	SettingAcceptThreshold = "accept_threshold"
	SettingHysteresis      = "hysteresis"
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server:  ServerConfig{Port: 6464, Host: "127.0.0.1"},
		Storage: StorageConfig{Engine: "sqlite", DataPath: "./data"},
		Model:   ModelConfig{Kind: "haar", Name: "museus-vision", Timeout: 5 * time.Second},
		Recognition: RecognitionConfig{
			K:               5,
			Metric:          "cosine",
			MinSimilarity:   0.5,
			AcceptThreshold: 0.8,
			Hysteresis:      2,
			FPS:             10,
		},
		Camera:   CameraConfig{Device: "dir"},
		Catalog:  CatalogConfig{Timeout: 10 * time.Second, RequestsPerSecond: 2},
		Security: SecurityConfig{Mode: "development"},
		Backup:   BackupConfig{Interval: 24 * time.Hour, Path: "./backups", Verify: true, Keep: 7},
		Tenant:   TenantConfig{ID: "default"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig loads defaults overridden by environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	cfg.applyEnv()
	cfg.fillDerived()
	return cfg, cfg.Validate()
}

// LoadConfigFile loads defaults, then the YAML file at path, then the
// environment. A missing file is not an error.
func LoadConfigFile(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.fillDerived()
	return cfg, cfg.Validate()
}

// LoadConfigFromDB overlays the persisted settings onto cfg. Database values
// take precedence; absent keys leave cfg unchanged.
func LoadConfigFromDB(ctx context.Context, cfg *Config, settings storage.SettingsStore) error {
	if settings == nil {
		return errors.New("config: settings store is required")
	}

	if v, err := getSetting(ctx, settings, SettingTenantID); err != nil {
		return err
	} else if v != "" {
		cfg.Tenant.ID = v
	}

	if v, err := getSetting(ctx, settings, SettingAcceptThreshold); err != nil {
		return err
	} else if v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("config: invalid %s %q: %w", SettingAcceptThreshold, v, perr)
		}
		if cfg.Recognition.ReleaseThreshold == cfg.Recognition.AcceptThreshold {
			cfg.Recognition.ReleaseThreshold = f
		}
		cfg.Recognition.AcceptThreshold = f
	}

	if v, err := getSetting(ctx, settings, SettingHysteresis); err != nil {
		return err
	} else if v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil {
			return fmt.Errorf("config: invalid %s %q: %w", SettingHysteresis, v, perr)
		}
		cfg.Recognition.Hysteresis = n
	}

	return cfg.Validate()
}

// SaveConfig persists the database-backed settings.
func (c *Config) SaveConfig(ctx context.Context, settings storage.SettingsStore) error {
	if settings == nil {
		return errors.New("config: settings store is required")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	values := map[string]string{
		SettingTenantID:        c.Tenant.ID,
		SettingAcceptThreshold: strconv.FormatFloat(c.Recognition.AcceptThreshold, 'f', -1, 64),
		SettingHysteresis:      strconv.Itoa(c.Recognition.Hysteresis),
	}
	for k, v := range values {
		if err := settings.SetSetting(ctx, k, v); err != nil {
			return fmt.Errorf("config: failed to save %s: %w", k, err)
		}
	}
	return nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	r := c.Recognition
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	case c.Storage.Engine != "sqlite" && c.Storage.Engine != "postgres":
		return fmt.Errorf("config: unsupported storage engine %q", c.Storage.Engine)
	case c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "":
		return errors.New("config: postgres engine requires MUSEUS_POSTGRES_DSN")
	case c.Model.Kind != "haar" && c.Model.Kind != "http":
		return fmt.Errorf("config: unsupported model kind %q", c.Model.Kind)
	case c.Model.Kind == "http" && c.Model.ServerURL == "":
		return errors.New("config: http model requires MUSEUS_MODEL_SERVER_URL")
	case r.K < 1:
		return fmt.Errorf("config: k must be at least 1, got %d", r.K)
	case r.Metric != "cosine" && r.Metric != "euclidean":
		return fmt.Errorf("config: unsupported metric %q", r.Metric)
	case r.AcceptThreshold <= 0 || r.AcceptThreshold > 1:
		return fmt.Errorf("config: accept threshold must be in (0, 1], got %v", r.AcceptThreshold)
	case r.ReleaseThreshold <= 0 || r.ReleaseThreshold > r.AcceptThreshold:
		return fmt.Errorf("config: release threshold must be in (0, accept threshold], got %v", r.ReleaseThreshold)
	case r.Hysteresis < 1:
		return fmt.Errorf("config: hysteresis must be at least 1, got %d", r.Hysteresis)
	case r.FPS <= 0:
		return fmt.Errorf("config: fps must be positive, got %v", r.FPS)
	case c.Security.Mode != "development" && c.Security.Mode != "production":
		return fmt.Errorf("config: unsupported security mode %q", c.Security.Mode)
	case c.Security.Mode == "production" && c.Security.APIToken == "":
		return errors.New("config: production mode requires MUSEUS_API_TOKEN")
	case c.Tenant.ID == "":
		return errors.New("config: tenant ID is required")
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("MUSEUS_PORT", c.Server.Port)
	c.Server.Host = getEnv("MUSEUS_HOST", c.Server.Host)

	c.Storage.Engine = getEnv("MUSEUS_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("MUSEUS_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("MUSEUS_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.Model.Kind = getEnv("MUSEUS_MODEL_KIND", c.Model.Kind)
	c.Model.AssetPath = getEnv("MUSEUS_MODEL_ASSET", c.Model.AssetPath)
	c.Model.ServerURL = getEnv("MUSEUS_MODEL_SERVER_URL", c.Model.ServerURL)
	c.Model.Name = getEnv("MUSEUS_MODEL_NAME", c.Model.Name)
	c.Model.Timeout = getEnvDuration("MUSEUS_MODEL_TIMEOUT", c.Model.Timeout)

	c.Recognition.K = getEnvInt("MUSEUS_K", c.Recognition.K)
	c.Recognition.Metric = getEnv("MUSEUS_METRIC", c.Recognition.Metric)
	c.Recognition.MinSimilarity = getEnvFloat("MUSEUS_MIN_SIMILARITY", c.Recognition.MinSimilarity)
	c.Recognition.AcceptThreshold = getEnvFloat("MUSEUS_ACCEPT_THRESHOLD", c.Recognition.AcceptThreshold)
	c.Recognition.ReleaseThreshold = getEnvFloat("MUSEUS_RELEASE_THRESHOLD", c.Recognition.ReleaseThreshold)
	c.Recognition.Hysteresis = getEnvInt("MUSEUS_HYSTERESIS", c.Recognition.Hysteresis)
	c.Recognition.FPS = getEnvFloat("MUSEUS_FPS", c.Recognition.FPS)

	c.Camera.Device = getEnv("MUSEUS_CAMERA_DEVICE", c.Camera.Device)
	c.Camera.SpoolDir = getEnv("MUSEUS_CAMERA_SPOOL", c.Camera.SpoolDir)

	c.Catalog.BaseURL = getEnv("MUSEUS_CATALOG_URL", c.Catalog.BaseURL)
	c.Catalog.Token = getEnv("MUSEUS_CATALOG_TOKEN", c.Catalog.Token)
	c.Catalog.Timeout = getEnvDuration("MUSEUS_CATALOG_TIMEOUT", c.Catalog.Timeout)
	c.Catalog.RequestsPerSecond = getEnvFloat("MUSEUS_CATALOG_RPS", c.Catalog.RequestsPerSecond)

	c.Security.Mode = getEnv("MUSEUS_SECURITY_MODE", c.Security.Mode)
	c.Security.APIToken = getEnv("MUSEUS_API_TOKEN", c.Security.APIToken)

	c.Backup.Enabled = getEnvBool("MUSEUS_BACKUP_ENABLED", c.Backup.Enabled)
	c.Backup.Interval = getEnvDuration("MUSEUS_BACKUP_INTERVAL", c.Backup.Interval)
	c.Backup.Path = getEnv("MUSEUS_BACKUP_PATH", c.Backup.Path)
	c.Backup.Verify = getEnvBool("MUSEUS_BACKUP_VERIFY", c.Backup.Verify)
	c.Backup.Keep = getEnvInt("MUSEUS_BACKUP_KEEP", c.Backup.Keep)

	c.Tenant.ID = getEnv("MUSEUS_TENANT_ID", c.Tenant.ID)

	c.Log.Level = getEnv("MUSEUS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("MUSEUS_LOG_FORMAT", c.Log.Format)
}

// fillDerived sets defaults that depend on other fields.
func (c *Config) fillDerived() {
	if c.Recognition.ReleaseThreshold == 0 {
		c.Recognition.ReleaseThreshold = c.Recognition.AcceptThreshold
	}
	if c.Camera.SpoolDir == "" {
		c.Camera.SpoolDir = filepath.Join(c.Storage.DataPath, "frames")
	}
}

// getSetting returns "" when the key is absent.
func getSetting(ctx context.Context, settings storage.SettingsStore, key string) (string, error) {
	v, err := settings.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("config: failed to load %s from database: %w", key, err)
	}
	return v, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
