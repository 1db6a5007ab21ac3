// Package server provides HTTP server initialization and lifecycle management
// for the kiosk scanner API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
	"github.com/luizprojeto1143/museus-frontend-sub000/web/handlers"
)

// EventSource is implemented by engines that publish scan events.
type EventSource interface {
	OnMatch(fn func(types.StableMatch))
	OnNoMatch(fn func())
	OnStateChange(fn func(from, to types.ScanState))
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the WebSocketHub scan events are pushed to. preview may be nil. When eng
// also implements EventSource its events are forwarded to the hub.
func Start(ctx context.Context, cfg *config.Config, eng handlers.ScanEngine, preview *camera.PreviewSink, lg zerolog.Logger) (string, *handlers.WebSocketHub, error) {
	lg = lg.With().Str("component", "server").Logger()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	// The display is served from the same host; accept the configured and bound addresses.
	wsHub := handlers.NewWebSocketHub(originsFor(cfg, actualAddr), lg)
	go wsHub.Run()

	if src, ok := eng.(EventSource); ok {
		src.OnStateChange(wsHub.PublishState)
		src.OnMatch(wsHub.PublishMatch)
		src.OnNoMatch(wsHub.PublishNoMatch)
	}

	// Create rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	apiHandlers := handlers.NewAPIHandlers(eng, preview, cfg, lg)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/state", apiHandlers.GetState)
	apiMux.HandleFunc("POST /api/scan/begin", apiHandlers.BeginScan)
	apiMux.HandleFunc("POST /api/scan/stop", apiHandlers.StopScan)
	apiMux.HandleFunc("GET /api/match", apiHandlers.GetMatch)
	apiMux.HandleFunc("POST /api/examples", apiHandlers.PostExample)
	apiMux.HandleFunc("GET /api/labels", apiHandlers.ListLabels)
	apiMux.HandleFunc("DELETE /api/labels/{label}", apiHandlers.DeleteLabel)
	apiMux.HandleFunc("GET /api/dataset", apiHandlers.GetDataset)
	apiMux.HandleFunc("POST /api/dataset/save", apiHandlers.SaveDataset)
	apiMux.HandleFunc("GET /api/preview.jpg", apiHandlers.GetPreview)
	apiMux.HandleFunc("GET /api/config", apiHandlers.GetConfig)

	mux := http.NewServeMux()

	// Health endpoint, no auth required, used by the kiosk supervisor
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"healthy","state":%q}`, eng.State())
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	// Create server with security timeouts
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("server error")
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("server shutdown error")
		}
		wsHub.Stop()
	}()

	lg.Info().Str("addr", actualAddr).Msg("listening")
	return actualAddr, wsHub, nil
}

func originsFor(cfg *config.Config, bound string) []string {
	origins := []string{bound, net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))}
	if _, port, err := net.SplitHostPort(bound); err == nil {
		origins = append(origins, net.JoinHostPort("localhost", port))
	}
	return origins
}
