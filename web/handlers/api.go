// Package handlers provides HTTP handlers and middleware for the scanner API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg" // register decoders for uploaded examples
	_ "image/png"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/engine"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/extractor"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// maxUploadBytes caps example image uploads.
const maxUploadBytes = 10 << 20

// ScanEngine is the subset of *engine.Engine the API drives.
type ScanEngine interface {
	Begin(ctx context.Context) error
	Stop()
	State() types.ScanState
	Err() error
	CurrentMatch() (types.StableMatch, bool)
	Stats() engine.Stats
	Teach(ctx context.Context, label string, img image.Image) error
	RemoveLabel(label string) error
	Labels() map[string]int
	Persist() ([]byte, error)
	Save(ctx context.Context) error
}

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	engine  ScanEngine
	preview *camera.PreviewSink // optional
	config  *config.Config
	lg      zerolog.Logger
}

// NewAPIHandlers creates a new APIHandlers instance. preview may be nil.
func NewAPIHandlers(eng ScanEngine, preview *camera.PreviewSink, cfg *config.Config, lg zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		engine:  eng,
		preview: preview,
		config:  cfg,
		lg:      lg.With().Str("component", "api").Logger(),
	}
}

// GetState handles GET /api/state.
func (h *APIHandlers) GetState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{State: h.engine.State(), Stats: h.engine.Stats()}
	if err := h.engine.Err(); err != nil {
		resp.Error = err.Error()
	}
	if m, ok := h.engine.CurrentMatch(); ok {
		resp.Match = &m
	}
	respondJSON(w, http.StatusOK, resp)
}

// BeginScan handles POST /api/scan/begin.
func (h *APIHandlers) BeginScan(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Begin(r.Context()); err != nil {
		h.respondEngineError(w, "failed to begin scan", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": h.engine.State()})
}

// StopScan handles POST /api/scan/stop.
func (h *APIHandlers) StopScan(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": h.engine.State()})
}

// GetMatch handles GET /api/match.
func (h *APIHandlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, ok := h.engine.CurrentMatch()
	resp := MatchResponse{Matched: ok}
	if ok {
		resp.Match = &m
	}
	respondJSON(w, http.StatusOK, resp)
}

// PostExample handles POST /api/examples?label=... with an image body.
func (h *APIHandlers) PostExample(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.URL.Query().Get("label"))
	if label == "" {
		respondError(w, http.StatusBadRequest, "label is required", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	img, format, err := image.Decode(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "body must be a JPEG or PNG image", err)
		return
	}

	if err := h.engine.Teach(r.Context(), label, img); err != nil {
		h.respondEngineError(w, "failed to add example", err)
		return
	}

	h.lg.Info().Str("label", label).Str("format", format).Msg("example uploaded")
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"label":    label,
		"examples": h.engine.Labels()[label],
	})
}

// ListLabels handles GET /api/labels.
func (h *APIHandlers) ListLabels(w http.ResponseWriter, r *http.Request) {
	labels := h.engine.Labels()
	total := 0
	for _, n := range labels {
		total += n
	}
	respondJSON(w, http.StatusOK, LabelsResponse{Labels: labels, Total: total})
}

// DeleteLabel handles DELETE /api/labels/{label}.
func (h *APIHandlers) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	label := extractID(r, "label")
	if label == "" {
		respondError(w, http.StatusBadRequest, "label is required", nil)
		return
	}
	if err := h.engine.RemoveLabel(label); err != nil {
		h.respondEngineError(w, "failed to remove label", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDataset handles GET /api/dataset and returns the serialized dataset.
func (h *APIHandlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.Persist()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to serialize dataset", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dataset.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SaveDataset handles POST /api/dataset/save.
func (h *APIHandlers) SaveDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Save(r.Context()); err != nil {
		h.respondEngineError(w, "failed to save dataset", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"saved": true})
}

// GetPreview handles GET /api/preview.jpg.
func (h *APIHandlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	if h.preview == nil {
		respondError(w, http.StatusNotFound, "preview not available", nil)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.preview.WriteJPEG(w, 80); err != nil {
		if errors.Is(err, camera.ErrNoFrame) {
			w.Header().Del("Content-Type")
			respondError(w, http.StatusServiceUnavailable, "no frame available", err)
			return
		}
		h.lg.Error().Err(err).Msg("preview encode failed")
	}
}

// GetConfig handles GET /api/config.
func (h *APIHandlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		respondError(w, http.StatusNotFound, "config not available", nil)
		return
	}
	respondJSON(w, http.StatusOK, ToConfigResponse(h.config))
}

// respondEngineError maps engine, camera and dataset errors to HTTP statuses.
func (h *APIHandlers) respondEngineError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrNotReady),
		errors.Is(err, engine.ErrScanActive),
		errors.Is(err, engine.ErrDatasetUnread),
		errors.Is(err, camera.ErrAcquireInProgress),
		errors.Is(err, camera.ErrAcquireCancelled):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrModelFailed),
		errors.Is(err, camera.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, dataset.ErrDimensionMismatch),
		errors.Is(err, dataset.ErrInvalidExample),
		errors.Is(err, extractor.ErrInvalidFrame):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.lg.Error().Err(err).Msg(message)
	}
	respondError(w, status, message, err)
}

// extractID extracts a path parameter from the request using Go 1.22+ PathValue.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
