package main

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // frame and example decoders
	_ "image/png"
	"os"
	"time"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/classifier"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/config"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/engine"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/extractor"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/resolver"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage/postgres"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage/sqlite"
)

// repository is what both storage backends provide.
type repository interface {
	storage.DatasetRepository
	storage.EntityCache
	storage.SettingsStore
	Close() error
}

// openRepository opens the configured backend and overlays the settings it
// persists onto cfg.
func openRepository(ctx context.Context, cfg *config.Config) (repository, error) {
	var (
		repo repository
		err  error
	)
	switch cfg.Storage.Engine {
	case "postgres":
		repo, err = postgres.Open(ctx, cfg.Storage.PostgresDSN, lg)
	default:
		if mkErr := os.MkdirAll(cfg.Storage.DataPath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating data directory: %w", mkErr)
		}
		repo, err = sqlite.Open(cfg.Storage.SQLitePath(), lg)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Engine, err)
	}

	if err := config.LoadConfigFromDB(ctx, cfg, repo); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

// engineConfig maps the recognition settings onto the engine.
func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.TenantID = cfg.Tenant.ID
	ec.Classifier = classifier.Config{
		K:             cfg.Recognition.K,
		Metric:        cfg.Recognition.Metric,
		MinSimilarity: cfg.Recognition.MinSimilarity,
	}
	ec.AcceptThreshold = cfg.Recognition.AcceptThreshold
	ec.ReleaseThreshold = cfg.Recognition.ReleaseThreshold
	ec.Hysteresis = cfg.Recognition.Hysteresis
	if cfg.Recognition.FPS > 0 {
		ec.FrameInterval = time.Duration(float64(time.Second) / cfg.Recognition.FPS)
	}
	return ec
}

func newExtractor(cfg *config.Config) (extractor.Extractor, error) {
	return extractor.NewFromConfig(extractor.Config{
		Kind:      cfg.Model.Kind,
		AssetPath: cfg.Model.AssetPath,
		ServerURL: cfg.Model.ServerURL,
		Model:     cfg.Model.Name,
		Timeout:   cfg.Model.Timeout,
	}, lg)
}

// newResolver returns nil when no catalog is configured and the cache
// alone should serve entity metadata.
func newResolver(cfg *config.Config, cache storage.EntityCache) (*resolver.Resolver, error) {
	var client resolver.CatalogClient
	if cfg.Catalog.BaseURL != "" {
		c, err := resolver.NewHTTPCatalogClient(resolver.HTTPCatalogConfig{
			BaseURL:           cfg.Catalog.BaseURL,
			Token:             cfg.Catalog.Token,
			Timeout:           cfg.Catalog.Timeout,
			RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		}, lg)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return resolver.New(client, cache, lg), nil
}

// buildEngine wires an engine over repo. The camera reads frames dropped
// into the spool directory; sink may be nil.
func buildEngine(cfg *config.Config, repo repository, sink camera.Sink) (*engine.Engine, error) {
	ext, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResolver(cfg, repo)
	if err != nil {
		return nil, err
	}

	var device camera.Device
	switch cfg.Camera.Device {
	case "dir", "":
		device = camera.NewDirectoryDevice(cfg.Camera.SpoolDir, lg)
	default:
		return nil, fmt.Errorf("unsupported camera device %q", cfg.Camera.Device)
	}

	return engine.New(engineConfig(cfg), engine.Deps{
		Extractor: ext,
		Camera:    camera.NewManager(device, sink, lg),
		Datasets:  repo,
		Resolver:  res,
	}, lg)
}

// startEngine builds an engine and waits until it is ready.
func startEngine(ctx context.Context, cfg *config.Config, repo repository, sink camera.Sink) (*engine.Engine, error) {
	eng, err := buildEngine(cfg, repo, sink)
	if err != nil {
		return nil, err
	}
	if err := eng.Start(ctx); err != nil {
		return nil, err
	}
	if err := eng.WaitReady(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
