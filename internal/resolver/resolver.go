// Package resolver maps classifier labels to the entity metadata shown to
// visitors. The catalog is fetched once per boot; a label the catalog does
// not know resolves to types.UnknownEntity instead of failing.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// ErrDegraded is returned by Load when neither the catalog nor the cache
// could provide a listing. The resolver stays usable and resolves every
// label to the unknown entity.
var ErrDegraded = errors.New("entity metadata unavailable")

// CatalogClient performs the bulk metadata fetch.
type CatalogClient interface {
	ListEntities(ctx context.Context, tenantID string) ([]types.EntityMetadata, error)
}

// Source describes where the current listing came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceCatalog Source = "catalog"
	SourceCache   Source = "cache"
)

// Resolver holds the session-scoped label → metadata cache.
type Resolver struct {
	client CatalogClient
	cache  storage.EntityCache // optional
	lg     zerolog.Logger

	mu       sync.RWMutex
	entities map[string]types.EntityMetadata
	source   Source
	loadedAt time.Time
}

// New creates a resolver. client and cache may be nil; without a client the
// resolver only serves the cache.
func New(client CatalogClient, cache storage.EntityCache, lg zerolog.Logger) *Resolver {
	return &Resolver{
		client:   client,
		cache:    cache,
		lg:       lg.With().Str("component", "resolver").Logger(),
		entities: make(map[string]types.EntityMetadata),
		source:   SourceNone,
	}
}

// Load performs the bulk fetch for tenantID. A successful fetch is written
// through to the cache. On failure the last cached listing is used; when
// there is none Load returns ErrDegraded.
func (r *Resolver) Load(ctx context.Context, tenantID string) error {
	var fetchErr error
	if r.client != nil {
		list, err := r.client.ListEntities(ctx, tenantID)
		if err == nil {
			r.install(list, SourceCatalog, time.Now())
			r.lg.Info().Str("tenant", tenantID).Int("entities", len(list)).Msg("entity metadata loaded")
			r.writeThrough(ctx, tenantID, list)
			return nil
		}
		fetchErr = err
		r.lg.Warn().Err(err).Str("tenant", tenantID).Msg("catalog fetch failed")
	} else {
		fetchErr = errors.New("no catalog configured")
	}

	if r.cache != nil {
		list, fetchedAt, err := r.cache.LoadEntities(ctx, tenantID)
		if err == nil {
			r.install(list, SourceCache, fetchedAt)
			r.lg.Info().
				Str("tenant", tenantID).
				Int("entities", len(list)).
				Time("fetched_at", fetchedAt).
				Msg("using cached entity metadata")
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.lg.Warn().Err(err).Msg("entity cache read failed")
		}
	}

	r.install(nil, SourceNone, time.Time{})
	return fmt.Errorf("%w: %v", ErrDegraded, fetchErr)
}

func (r *Resolver) install(list []types.EntityMetadata, src Source, at time.Time) {
	m := make(map[string]types.EntityMetadata, len(list))
	for _, e := range list {
		if e.ID == "" {
			continue
		}
		e.Known = true
		if e.DisplayName == "" {
			e.DisplayName = e.ID
		}
		m[e.ID] = e
	}

	r.mu.Lock()
	r.entities = m
	r.source = src
	r.loadedAt = at
	r.mu.Unlock()
}

func (r *Resolver) writeThrough(ctx context.Context, tenantID string, list []types.EntityMetadata) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StoreEntities(ctx, tenantID, list); err != nil {
		r.lg.Warn().Err(err).Msg("failed to cache entity metadata")
	}
}

// Resolve returns the metadata for label, or the unknown-entity sentinel.
func (r *Resolver) Resolve(label string) types.EntityMetadata {
	r.mu.RLock()
	e, ok := r.entities[label]
	r.mu.RUnlock()
	if !ok {
		return types.UnknownEntity(label)
	}
	return e
}

// Len returns the number of known entities.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Source reports where the listing came from and when it was fetched.
func (r *Resolver) Source() (Source, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source, r.loadedAt
}
