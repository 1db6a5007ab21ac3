package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/remote"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// HTTPCatalogConfig configures an HTTPCatalogClient.
type HTTPCatalogConfig struct {
	// BaseURL of the catalog API, e.g. https://api.museus.example
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout per request (default: 10s)
	Timeout time.Duration

	// RequestsPerSecond caps outbound calls (default: 2)
	RequestsPerSecond float64

	Retry remote.RetryConfig
}

// catalogEntity is the wire shape of one entity.
type catalogEntity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"` // older catalog versions
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// HTTPCatalogClient fetches entities from GET {base}/api/tenants/{tenant}/entities.
// Calls are rate limited, retried with backoff on transient failures and
// guarded by a circuit breaker.
type HTTPCatalogClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *remote.CircuitBreaker
	retry   remote.RetryConfig
	lg      zerolog.Logger
}

// NewHTTPCatalogClient creates a catalog client.
func NewHTTPCatalogClient(cfg HTTPCatalogConfig, lg zerolog.Logger) (*HTTPCatalogClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid catalog base URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = remote.DefaultRetryConfig()
	}

	lg = lg.With().Str("component", "catalog").Logger()
	return &HTTPCatalogClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: remote.NewCircuitBreaker(remote.DefaultCircuitBreakerConfig("catalog"), lg),
		retry:   cfg.Retry,
		lg:      lg,
	}, nil
}

// ListEntities implements CatalogClient.
func (c *HTTPCatalogClient) ListEntities(ctx context.Context, tenantID string) ([]types.EntityMetadata, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID is required")
	}

	var out []types.EntityMetadata
	err := remote.Retry(ctx, c.retry, c.lg, "list entities", func(int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
			return c.list(ctx, tenantID)
		})
		if err != nil {
			return err
		}
		out = result.([]types.EntityMetadata)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPCatalogClient) list(ctx context.Context, tenantID string) ([]types.EntityMetadata, error) {
	endpoint := fmt.Sprintf("%s/api/tenants/%s/entities", c.baseURL, url.PathEscape(tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &remote.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var wire []catalogEntity
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	out := make([]types.EntityMetadata, 0, len(wire))
	for _, w := range wire {
		name := w.DisplayName
		if name == "" {
			name = w.Name
		}
		out = append(out, types.EntityMetadata{
			ID:          w.ID,
			DisplayName: name,
			Known:       true,
			Description: w.Description,
			ImageURL:    w.ImageURL,
		})
	}
	return out, nil
}
