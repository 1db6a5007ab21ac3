// Package server_test exercises the HTTP server over a real listener.
package server_test

import (
	"context"
	"encoding/json"
	"image"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/engine"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/server"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
	"github.com/luizprojeto1143/museus-frontend-sub000/web/handlers"
)

// stubEngine is a minimal engine that also publishes events.
type stubEngine struct {
	mu      sync.Mutex
	state   types.ScanState
	onState []func(from, to types.ScanState)
	onMatch []func(types.StableMatch)
}

func (s *stubEngine) Begin(ctx context.Context) error {
	s.mu.Lock()
	from := s.state
	s.state = types.StateScanning
	fns := s.onState
	s.mu.Unlock()
	for _, fn := range fns {
		fn(from, types.StateScanning)
	}
	return nil
}

func (s *stubEngine) Stop() {
	s.mu.Lock()
	s.state = types.StateStopped
	s.mu.Unlock()
}

func (s *stubEngine) State() types.ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubEngine) Err() error                              { return nil }
func (s *stubEngine) CurrentMatch() (types.StableMatch, bool) { return types.StableMatch{}, false }
func (s *stubEngine) Stats() engine.Stats                     { return engine.Stats{State: s.State()} }
func (s *stubEngine) Teach(context.Context, string, image.Image) error {
	return nil
}
func (s *stubEngine) RemoveLabel(string) error   { return nil }
func (s *stubEngine) Labels() map[string]int     { return map[string]int{} }
func (s *stubEngine) Persist() ([]byte, error)   { return []byte(`{}`), nil }
func (s *stubEngine) Save(context.Context) error { return nil }

func (s *stubEngine) OnMatch(fn func(types.StableMatch)) {
	s.mu.Lock()
	s.onMatch = append(s.onMatch, fn)
	s.mu.Unlock()
}

func (s *stubEngine) OnNoMatch(fn func()) {}

func (s *stubEngine) OnStateChange(fn func(from, to types.ScanState)) {
	s.mu.Lock()
	s.onState = append(s.onState, fn)
	s.mu.Unlock()
}

func testConfig(mode, token string) *config.Config {
	cfg := config.Defaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Security.Mode = mode
	cfg.Security.APIToken = token
	return cfg
}

// startTestServer starts a server on a random port and returns its base URL.
func startTestServer(t *testing.T, cfg *config.Config, eng handlers.ScanEngine) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	addr, hub, err := server.Start(ctx, cfg, eng, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, hub)

	t.Cleanup(func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	})
	return "http://" + addr
}

func TestServer_StartsOnRandomPort(t *testing.T) {
	base := startTestServer(t, testConfig("development", ""), &stubEngine{state: types.StateReady})

	host, port, err := net.SplitHostPort(base[len("http://"):])
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.NotEqual(t, "0", port)
}

func TestServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig("development", "")
	cfg.Server.Port = l.Addr().(*net.TCPAddr).Port
	_, _, err = server.Start(context.Background(), cfg, &stubEngine{}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestServer_HealthAndSecurityHeaders(t *testing.T) {
	base := startTestServer(t, testConfig("development", ""), &stubEngine{state: types.StateReady})

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "ready", health["state"])

	for name, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		assert.Equal(t, want, resp.Header.Get(name), name)
	}
}

func TestServer_Routes(t *testing.T) {
	base := startTestServer(t, testConfig("development", ""), &stubEngine{state: types.StateReady})

	tests := []struct {
		method, path string
		status       int
	}{
		{"GET", "/api/state", http.StatusOK},
		{"GET", "/api/match", http.StatusOK},
		{"GET", "/api/labels", http.StatusOK},
		{"GET", "/api/dataset", http.StatusOK},
		{"GET", "/api/config", http.StatusOK},
		{"GET", "/api/preview.jpg", http.StatusNotFound},
		{"POST", "/api/scan/begin", http.StatusOK},
		{"POST", "/api/scan/stop", http.StatusOK},
		{"POST", "/api/dataset/save", http.StatusOK},
		{"DELETE", "/api/labels/abaporu", http.StatusNoContent},
		{"GET", "/api/scan/begin", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, base+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServer_ProductionMode_RequiresAuth(t *testing.T) {
	token := "test-secret-token-xyz123"
	base := startTestServer(t, testConfig("production", token), &stubEngine{state: types.StateReady})

	resp, err := http.Get(base + "/api/state")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest("GET", base+"/api/state", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays open for the supervisor.
	resp, err = http.Get(base + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ForwardsEngineEvents(t *testing.T) {
	eng := &stubEngine{state: types.StateReady}
	base := startTestServer(t, testConfig("development", ""), eng)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+base[len("http"):]+"/ws", nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }() //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	// Registration is asynchronous; keep beginning until an event arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = eng.Begin(ctx)
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev handlers.Event
	require.NoError(t, json.Unmarshal(data, &ev))

	assert.Equal(t, handlers.EventState, ev.Type)
	assert.Equal(t, types.StateScanning, ev.State)
}

func TestServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, testConfig("development", ""), &stubEngine{}, nil, zerolog.Nop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	cancel()

	assert.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		_ = c.Close()
		return false
	}, 3*time.Second, 50*time.Millisecond)
}
