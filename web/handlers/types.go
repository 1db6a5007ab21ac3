package handlers

import (
	"time"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StateResponse is the response format for GET /api/state.
type StateResponse struct {
	State types.ScanState    `json:"state"`
	Error string             `json:"error,omitempty"` // model failure, when failed
	Match *types.StableMatch `json:"match,omitempty"`
	Stats interface{}        `json:"stats"`
}

// MatchResponse is the response format for GET /api/match.
type MatchResponse struct {
	Matched bool               `json:"matched"`
	Match   *types.StableMatch `json:"match,omitempty"`
}

// LabelsResponse is the response format for GET /api/labels.
type LabelsResponse struct {
	Labels map[string]int `json:"labels"`
	Total  int            `json:"total"`
}

// Event types pushed over the websocket.
const (
	EventState   = "state"
	EventMatch   = "match"
	EventNoMatch = "no_match"
)

// Event is one message pushed to websocket clients.
type Event struct {
	Type  string             `json:"type"`
	From  types.ScanState    `json:"from,omitempty"`
	State types.ScanState    `json:"state,omitempty"`
	Match *types.StableMatch `json:"match,omitempty"`
	Time  time.Time          `json:"time"`
}

// ConfigResponse is the response format for GET /api/config.
// Tokens are masked for security.
type ConfigResponse struct {
	TenantID    string                   `json:"tenant_id"`
	Model       ModelConfigResponse      `json:"model"`
	Recognition config.RecognitionConfig `json:"recognition"`
	Catalog     CatalogConfigResponse    `json:"catalog"`
	Backup      BackupConfig             `json:"backup"`
}

// ModelConfigResponse describes the embedding model in use.
type ModelConfigResponse struct {
	Kind      string `json:"kind"`
	AssetPath string `json:"asset_path,omitempty"`
	ServerURL string `json:"server_url,omitempty"`
	Name      string `json:"name,omitempty"`
}

// CatalogConfigResponse contains catalog settings with the token masked.
type CatalogConfigResponse struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"` // Masked
}

// BackupConfig contains backup settings.
type BackupConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"`
	Keep     int    `json:"keep"`
}

// MaskAPIKey masks an API key for safe display.
// Shows first 7 chars and last 4 chars, hides the middle.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) < 12 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// ToConfigResponse converts a config.Config to ConfigResponse with masked tokens.
func ToConfigResponse(cfg *config.Config) ConfigResponse {
	return ConfigResponse{
		TenantID: cfg.Tenant.ID,
		Model: ModelConfigResponse{
			Kind:      cfg.Model.Kind,
			AssetPath: cfg.Model.AssetPath,
			ServerURL: cfg.Model.ServerURL,
			Name:      cfg.Model.Name,
		},
		Recognition: cfg.Recognition,
		Catalog: CatalogConfigResponse{
			BaseURL: cfg.Catalog.BaseURL,
			Token:   MaskAPIKey(cfg.Catalog.Token),
		},
		Backup: BackupConfig{
			Enabled:  cfg.Backup.Enabled,
			Interval: cfg.Backup.Interval.String(),
			Keep:     cfg.Backup.Keep,
		},
	}
}
