package engine

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/classifier"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/extractor"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/resolver"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage/sqlite"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

const testDim = 4

// fakeExtractor maps each frame image to a scripted embedding.
type fakeExtractor struct {
	mu      sync.Mutex
	vectors map[image.Image]types.Embedding
	loaded  bool

	loadErr  error
	loadGate chan struct{} // Load blocks until closed
	delay    time.Duration

	// When set, Extract signals entered and waits for release.
	entered chan struct{}
	release chan struct{}

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{vectors: make(map[image.Image]types.Embedding)}
}

// frame registers a new image producing e.
func (f *fakeExtractor) frame(e types.Embedding) image.Image {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	f.mu.Lock()
	f.vectors[img] = e
	f.mu.Unlock()
	return img
}

func (f *fakeExtractor) Load(ctx context.Context) error {
	if f.loadGate != nil {
		select {
		case <-f.loadGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.loadErr != nil {
		return f.loadErr
	}
	f.mu.Lock()
	f.loaded = true
	f.mu.Unlock()
	return nil
}

func (f *fakeExtractor) Extract(ctx context.Context, img image.Image) (types.Embedding, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	f.calls.Add(1)

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return nil, extractor.ErrModelNotReady
	}
	e, ok := f.vectors[img]
	if !ok {
		return nil, errors.New("unscripted frame")
	}
	return e, nil
}

func (f *fakeExtractor) Dimension() int    { return testDim }
func (f *fakeExtractor) ModelName() string { return "fake-model" }

var (
	near = []types.Embedding{
		{1, 0.05, 0, 0},
		{0.98, 0.02, 0.03, 0},
		{0.99, 0, 0.04, 0.01},
	}
	far = types.Embedding{0, 0, 0, 1}
)

// artCluster is five tightly clustered examples of art-12 plus a distant art-7.
func artCluster() []types.ReferenceExample {
	return []types.ReferenceExample{
		{Label: "art-12", Embedding: types.Embedding{1, 0, 0, 0}},
		{Label: "art-12", Embedding: types.Embedding{0.97, 0.05, 0, 0}},
		{Label: "art-12", Embedding: types.Embedding{0.96, 0, 0.06, 0}},
		{Label: "art-12", Embedding: types.Embedding{0.98, 0.03, 0.02, 0}},
		{Label: "art-12", Embedding: types.Embedding{0.95, 0.04, 0.04, 0}},
		{Label: "art-7", Embedding: types.Embedding{0, 1, 0, 0}},
	}
}

type harness struct {
	eng    *Engine
	ext    *fakeExtractor
	dev    *camera.StaticDevice
	cam    *camera.Manager
	pacer  *HostPacer
	repo   *sqlite.Store
	events *recorder
}

type recorder struct {
	mu      sync.Mutex
	matches []types.StableMatch
	noMatch int
	states  []types.ScanState
}

func (r *recorder) snapshot() ([]types.StableMatch, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.StableMatch{}, r.matches...), r.noMatch
}

type harnessOption func(*Config, *fakeExtractor)

func withHysteresis(h int) harnessOption {
	return func(c *Config, _ *fakeExtractor) { c.Hysteresis = h }
}

// newHarness builds an engine over a static camera replaying one frame per
// embedding. The dataset is seeded through the sqlite repository.
func newHarness(t *testing.T, seed []types.ReferenceExample, frames []types.Embedding, opts ...harnessOption) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.TenantID = "museu-1"
	ext := newFakeExtractor()
	for _, o := range opts {
		o(&cfg, ext)
	}

	imgs := make([]image.Image, len(frames))
	for i, e := range frames {
		imgs[i] = ext.frame(e)
	}

	repo, err := sqlite.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	if len(seed) > 0 {
		store := dataset.NewStoreForModel("fake-model", testDim)
		for _, ex := range seed {
			require.NoError(t, store.AddExample(ex.Label, ex.Embedding))
		}
		data, err := store.Marshal()
		require.NoError(t, err)
		require.NoError(t, repo.SaveDataset(context.Background(), storage.DatasetRecord{
			TenantID: cfg.TenantID, Model: "fake-model", Dimension: testDim, Data: data,
		}))
	}

	dev := camera.NewStaticDevice(imgs...)
	cam := camera.NewManager(dev, nil, zerolog.Nop())
	pacer := NewHostPacer()

	eng, err := New(cfg, Deps{Extractor: ext, Camera: cam, Datasets: repo, Pacer: pacer}, zerolog.Nop())
	require.NoError(t, err)

	rec := &recorder{}
	eng.OnMatch(func(m types.StableMatch) {
		rec.mu.Lock()
		rec.matches = append(rec.matches, m)
		rec.mu.Unlock()
	})
	eng.OnNoMatch(func() {
		rec.mu.Lock()
		rec.noMatch++
		rec.mu.Unlock()
	})
	eng.OnStateChange(func(_, to types.ScanState) {
		rec.mu.Lock()
		rec.states = append(rec.states, to)
		rec.mu.Unlock()
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})

	return &harness{eng: eng, ext: ext, dev: dev, cam: cam, pacer: pacer, repo: repo, events: rec}
}

func (h *harness) ready(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.eng.Start(ctx))
	require.NoError(t, h.eng.WaitReady(ctx))
	require.Equal(t, types.StateReady, h.eng.State())
}

// cycles runs n loop cycles and returns once all of them have completed.
func (h *harness) cycles(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// The tick after the last one is accepted only once the loop is idle again.
	for i := 0; i <= n; i++ {
		require.NoError(t, h.pacer.Tick(ctx))
	}
}

func TestEngine_ScenarioA_MatchAfterHCycles(t *testing.T) {
	frames := []types.Embedding{near[0], far, near[1], near[2]}
	h := newHarness(t, artCluster(), frames, withHysteresis(2))
	h.ready(t)

	require.NoError(t, h.eng.Begin(context.Background()))
	assert.Equal(t, types.StateScanning, h.eng.State())
	h.cycles(t, len(frames))

	matches, released := h.events.snapshot()
	require.Len(t, matches, 1, "near, far, near, near matches exactly once, on the fourth cycle")
	assert.Equal(t, "art-12", matches[0].Label)
	assert.GreaterOrEqual(t, matches[0].Confidence, 0.8)
	assert.NotEmpty(t, matches[0].SessionID)
	assert.Equal(t, 0, released)

	assert.Equal(t, types.StateMatched, h.eng.State())
	current, ok := h.eng.CurrentMatch()
	require.True(t, ok)
	assert.Equal(t, "art-12", current.Label)
	assert.False(t, current.Entity.Known, "no resolver: unknown entity")

	stats := h.eng.Stats()
	assert.Equal(t, uint64(4), stats.Inferences)
	assert.Equal(t, uint64(1), stats.Matches)
}

func TestEngine_ScenarioB_FarProbeNeverMatches(t *testing.T) {
	frames := []types.Embedding{far, far, far, far, far}
	h := newHarness(t, artCluster(), frames)
	h.ready(t)

	require.NoError(t, h.eng.Begin(context.Background()))
	h.cycles(t, len(frames))

	matches, released := h.events.snapshot()
	assert.Empty(t, matches)
	assert.Equal(t, 0, released)
	assert.Equal(t, types.StateScanning, h.eng.State())
	_, ok := h.eng.CurrentMatch()
	assert.False(t, ok)
}

func TestEngine_ReleaseFiresOnNoMatch(t *testing.T) {
	frames := []types.Embedding{near[0], near[1], far, far}
	h := newHarness(t, artCluster(), frames, withHysteresis(2))
	h.ready(t)

	require.NoError(t, h.eng.Begin(context.Background()))
	h.cycles(t, len(frames))

	matches, released := h.events.snapshot()
	assert.Len(t, matches, 1)
	assert.Equal(t, 1, released)
	assert.Equal(t, types.StateScanning, h.eng.State())
	_, ok := h.eng.CurrentMatch()
	assert.False(t, ok)
}

func TestEngine_MatchResolvesEntity(t *testing.T) {
	frames := []types.Embedding{near[0], near[1]}
	h := newHarness(t, artCluster(), frames)

	require.NoError(t, h.repo.StoreEntities(context.Background(), "museu-1", []types.EntityMetadata{
		{ID: "art-12", DisplayName: "Abaporu"},
	}))
	h.eng.resolver = resolver.New(nil, h.repo, zerolog.Nop())
	h.ready(t)

	require.NoError(t, h.eng.Begin(context.Background()))
	h.cycles(t, len(frames))

	matches, _ := h.events.snapshot()
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Entity.Known)
	assert.Equal(t, "Abaporu", matches[0].Entity.DisplayName)
}

func TestEngine_ScenarioC_PermissionDenied(t *testing.T) {
	h := newHarness(t, artCluster(), []types.Embedding{near[0]})
	h.ready(t)

	h.dev.FailOpen(camera.ErrPermissionDenied)
	err := h.eng.Begin(context.Background())
	assert.ErrorIs(t, err, camera.ErrPermissionDenied)
	assert.Equal(t, types.StateReady, h.eng.State())
	assert.Equal(t, 0, h.dev.OpenStreams())
	assert.Equal(t, camera.StateReleased, h.cam.State())

	// The denial is retryable.
	h.dev.FailOpen(nil)
	require.NoError(t, h.eng.Begin(context.Background()))
	assert.Equal(t, types.StateScanning, h.eng.State())
	assert.Equal(t, 1, h.dev.OpenStreams())
}

func TestEngine_ScenarioD_CorruptDatasetStillReady(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.repo.SaveDataset(context.Background(), storage.DatasetRecord{
		TenantID:  "museu-1",
		Model:     "fake-model",
		Dimension: testDim,
		Data:      []byte(`{"version":1,"dimension":4,"labels":{"art-12":{"count":2,"vectors":"AAAA"}}}`),
	}))

	h.ready(t)
	stats := h.eng.Stats()
	assert.Equal(t, 0, stats.Examples)
	assert.Equal(t, testDim, stats.Dimension, "the empty store is pinned to the model")
}

func TestEngine_DatasetOfAnotherModelIsIgnored(t *testing.T) {
	h := newHarness(t, nil, nil)
	store := dataset.NewStoreForModel("older-model", testDim)
	require.NoError(t, store.AddExample("art-12", types.Embedding{1, 0, 0, 0}))
	data, err := store.Marshal()
	require.NoError(t, err)
	require.NoError(t, h.repo.SaveDataset(context.Background(), storage.DatasetRecord{
		TenantID: "museu-1", Model: "older-model", Dimension: testDim, Data: data,
	}))

	h.ready(t)
	assert.Equal(t, 0, h.eng.Stats().Examples)
}

func TestEngine_ScenarioE_DimensionMismatch(t *testing.T) {
	h := newHarness(t, artCluster(), nil)
	h.ready(t)

	err := h.eng.AddExample("art-9", types.Embedding{1, 0, 0})
	assert.ErrorIs(t, err, dataset.ErrDimensionMismatch)

	require.NoError(t, h.eng.AddExample("art-9", types.Embedding{0, 0, 1, 0}))
	assert.Equal(t, 1, h.eng.Labels()["art-9"])
}

func TestEngine_IdempotentLifecycle(t *testing.T) {
	h := newHarness(t, artCluster(), []types.Embedding{far})
	h.ready(t)
	ctx := context.Background()

	require.NoError(t, h.eng.Begin(ctx))
	require.NoError(t, h.eng.Begin(ctx), "begin while scanning is a no-op")
	assert.Equal(t, 1, h.dev.Opens())
	assert.Equal(t, types.StateScanning, h.eng.State())

	h.eng.Stop()
	h.eng.Stop()
	assert.Equal(t, types.StateStopped, h.eng.State())
	assert.Equal(t, 0, h.dev.OpenStreams())
	assert.Equal(t, camera.StateReleased, h.cam.State())

	require.NoError(t, h.eng.Begin(ctx), "stopped sessions can be restarted")
	assert.Equal(t, types.StateScanning, h.eng.State())
	assert.Equal(t, 2, h.dev.Opens())
	assert.Equal(t, 1, h.dev.OpenStreams())
}

func TestEngine_NotReadyAndStartTwice(t *testing.T) {
	h := newHarness(t, nil, nil)
	assert.ErrorIs(t, h.eng.Begin(context.Background()), ErrNotReady)
	assert.ErrorIs(t, h.eng.AddExample("art-1", types.Embedding{1, 0, 0, 0}), ErrNotReady)

	h.eng.Stop()
	assert.Equal(t, types.StateIdle, h.eng.State(), "stop on an idle engine does nothing")

	h.ready(t)
	assert.ErrorIs(t, h.eng.Start(context.Background()), ErrAlreadyStarted)
}

func TestEngine_ModelFailureIsTerminal(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.ext.loadErr = errors.New("asset missing")

	ctx := context.Background()
	require.NoError(t, h.eng.Start(ctx))
	err := h.eng.WaitReady(ctx)
	assert.ErrorIs(t, err, ErrModelFailed)
	assert.Equal(t, types.StateFailed, h.eng.State())
	assert.ErrorIs(t, h.eng.Err(), ErrModelFailed)

	assert.ErrorIs(t, h.eng.Begin(ctx), ErrModelFailed)
	h.eng.Stop()
	assert.Equal(t, types.StateFailed, h.eng.State())
	assert.Equal(t, 0, h.dev.Opens())
}

func TestEngine_StopDuringLoading(t *testing.T) {
	h := newHarness(t, artCluster(), []types.Embedding{near[0]})
	h.ext.loadGate = make(chan struct{})

	ctx := context.Background()
	require.NoError(t, h.eng.Start(ctx))
	assert.Equal(t, types.StateModelLoading, h.eng.State())

	h.eng.Stop()
	assert.Equal(t, types.StateStopped, h.eng.State())

	close(h.ext.loadGate)
	require.NoError(t, h.eng.WaitReady(ctx))
	assert.Equal(t, types.StateStopped, h.eng.State(), "loading must not move a stopped engine to ready")
	assert.Equal(t, 0, h.dev.Opens())

	h.events.mu.Lock()
	assert.NotContains(t, h.events.states, types.StateReady)
	h.events.mu.Unlock()

	require.NoError(t, h.eng.Begin(ctx), "an explicit begin still works once loaded")
	assert.Equal(t, types.StateScanning, h.eng.State())
}

func TestEngine_StopDiscardsInFlightCycle(t *testing.T) {
	h := newHarness(t, artCluster(), []types.Embedding{near[0], near[1]}, withHysteresis(1))
	h.ext.entered = make(chan struct{})
	h.ext.release = make(chan struct{})
	h.ready(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.eng.Begin(ctx))
	require.NoError(t, h.pacer.Tick(ctx))

	select {
	case <-h.ext.entered:
	case <-ctx.Done():
		t.Fatal("extraction never started")
	}

	h.eng.Stop()
	assert.Equal(t, camera.StateReleased, h.cam.State(), "camera is released before the cycle ends")
	close(h.ext.release)

	require.NoError(t, h.eng.Shutdown(ctx))
	matches, _ := h.events.snapshot()
	assert.Empty(t, matches)
	assert.Equal(t, types.StateStopped, h.eng.State())
	assert.Equal(t, uint64(1), h.eng.Stats().Discarded)
}

func TestEngine_DatasetLockedWhileScanning(t *testing.T) {
	h := newHarness(t, artCluster(), []types.Embedding{far})
	h.ready(t)
	require.NoError(t, h.eng.Begin(context.Background()))

	assert.ErrorIs(t, h.eng.AddExample("art-9", types.Embedding{0, 0, 1, 0}), ErrScanActive)
	assert.ErrorIs(t, h.eng.RemoveLabel("art-12"), ErrScanActive)
	assert.ErrorIs(t, h.eng.Teach(context.Background(), "art-9", image.NewGray(image.Rect(0, 0, 1, 1))), ErrScanActive)

	_, err := h.eng.Persist()
	assert.NoError(t, err, "persist is allowed at any time")

	h.eng.Stop()
	require.NoError(t, h.eng.RemoveLabel("art-12"))
	assert.NotContains(t, h.eng.Labels(), "art-12")
}

func TestEngine_TeachAndSaveRoundTrip(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.ready(t)
	ctx := context.Background()

	img := h.ext.frame(types.Embedding{0, 1, 0, 0})
	require.NoError(t, h.eng.Teach(ctx, "art-7", img))
	require.NoError(t, h.eng.AddExample("art-12", types.Embedding{1, 0, 0, 0}))
	require.NoError(t, h.eng.Save(ctx))

	data, err := h.eng.Persist()
	require.NoError(t, err)
	restored, err := dataset.Decode(data, testDim)
	require.NoError(t, err)
	assert.Equal(t, []string{"art-12", "art-7"}, restored.Labels())

	// A second engine on the same repository boots with the saved dataset.
	ext := newFakeExtractor()
	cam := camera.NewManager(camera.NewStaticDevice(), nil, zerolog.Nop())
	cfg := DefaultConfig()
	cfg.TenantID = "museu-1"
	other, err := New(cfg, Deps{Extractor: ext, Camera: cam, Datasets: h.repo}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, other.Start(ctx))
	require.NoError(t, other.WaitReady(ctx))
	assert.Equal(t, map[string]int{"art-12": 1, "art-7": 1}, other.Labels())
	require.NoError(t, other.Shutdown(ctx))
}

// unreadableRepo fails every load and records saves.
type unreadableRepo struct {
	saves atomic.Int32
}

func (r *unreadableRepo) LoadDataset(ctx context.Context, tenantID string) (*storage.DatasetRecord, error) {
	return nil, errors.New("database is locked")
}

func (r *unreadableRepo) SaveDataset(ctx context.Context, rec storage.DatasetRecord) error {
	r.saves.Add(1)
	return nil
}

func (r *unreadableRepo) DeleteDataset(ctx context.Context, tenantID string) error { return nil }

func TestEngine_SaveKeepsUnreadDataset(t *testing.T) {
	repo := &unreadableRepo{}
	cam := camera.NewManager(camera.NewStaticDevice(), nil, zerolog.Nop())
	eng, err := New(DefaultConfig(), Deps{Extractor: newFakeExtractor(), Camera: cam, Datasets: repo}, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	require.NoError(t, eng.WaitReady(ctx))
	defer eng.Shutdown(ctx)

	assert.Equal(t, types.StateReady, eng.State())
	assert.False(t, eng.Dirty())

	err = eng.Save(ctx)
	assert.ErrorIs(t, err, ErrDatasetUnread)

	require.NoError(t, eng.AddExample("art-12", types.Embedding{1, 0, 0, 0}))
	assert.True(t, eng.Dirty())
	assert.ErrorIs(t, eng.Save(ctx), ErrDatasetUnread)
	assert.Equal(t, int32(0), repo.saves.Load())
}

func TestEngine_DirtyTracksChanges(t *testing.T) {
	h := newHarness(t, artCluster(), nil)
	h.ready(t)
	ctx := context.Background()

	assert.False(t, h.eng.Dirty())
	require.NoError(t, h.eng.RemoveLabel("missing"))
	assert.False(t, h.eng.Dirty())

	require.NoError(t, h.eng.RemoveLabel("art-7"))
	assert.True(t, h.eng.Dirty())
	require.NoError(t, h.eng.Save(ctx))
	assert.False(t, h.eng.Dirty())

	require.NoError(t, h.eng.AddExample("art-7", types.Embedding{0, 1, 0, 0}))
	assert.True(t, h.eng.Dirty())
}

func TestEngine_SingleInferenceInFlight(t *testing.T) {
	frames := make([]types.Embedding, 0, 20)
	for i := 0; i < 20; i++ {
		frames = append(frames, near[i%len(near)])
	}

	cfg := DefaultConfig()
	cfg.FrameInterval = 0
	ext := newFakeExtractor()
	ext.delay = time.Millisecond
	imgs := make([]image.Image, len(frames))
	for i, e := range frames {
		imgs[i] = ext.frame(e)
	}
	dev := camera.NewStaticDevice(imgs...).Looping()
	cam := camera.NewManager(dev, nil, zerolog.Nop())

	eng, err := New(cfg, Deps{Extractor: ext, Camera: cam}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Start(ctx))
	require.NoError(t, eng.WaitReady(ctx))
	for _, ex := range artCluster() {
		require.NoError(t, eng.AddExample(ex.Label, ex.Embedding))
	}

	require.NoError(t, eng.Begin(ctx))
	assert.Eventually(t, func() bool { return eng.Stats().Inferences >= 10 }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Shutdown(ctx))

	stats := eng.Stats()
	assert.Equal(t, int32(1), ext.maxInFlight.Load(), "inferences must never overlap")
	assert.LessOrEqual(t, stats.Inferences, stats.Cycles)
	assert.Equal(t, uint64(ext.calls.Load()), stats.Inferences)
	assert.Equal(t, types.StateStopped, stats.State)
}

func TestNew_Validation(t *testing.T) {
	cam := camera.NewManager(camera.NewStaticDevice(), nil, zerolog.Nop())
	ext := newFakeExtractor()

	_, err := New(DefaultConfig(), Deps{Camera: cam}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(DefaultConfig(), Deps{Extractor: ext}, zerolog.Nop())
	assert.Error(t, err)

	bad := []func(*Config){
		func(c *Config) { c.TenantID = "" },
		func(c *Config) { c.AcceptThreshold = 0 },
		func(c *Config) { c.ReleaseThreshold = 0.9 },
		func(c *Config) { c.Hysteresis = 0 },
		func(c *Config) { c.Classifier.Metric = "hamming" },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := New(cfg, Deps{Extractor: ext, Camera: cam}, zerolog.Nop())
		assert.Error(t, err, "case %d", i)
	}

	cfg := DefaultConfig()
	cfg.Classifier = classifier.Config{K: 3, Metric: classifier.MetricEuclidean}
	_, err = New(cfg, Deps{Extractor: ext, Camera: cam}, zerolog.Nop())
	assert.NoError(t, err)
}
