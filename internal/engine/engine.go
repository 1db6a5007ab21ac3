package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/classifier"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/extractor"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/resolver"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// Deps are the collaborators of an Engine. Extractor and Camera are required.
type Deps struct {
	Extractor extractor.Extractor
	Camera    *camera.Manager

	// Datasets persists the reference dataset. Optional: without it the
	// engine starts empty and Save fails.
	Datasets storage.DatasetRepository

	// Resolver attaches entity metadata to matches. Optional: without it
	// every match resolves to the unknown entity.
	Resolver *resolver.Resolver

	// Pacer drives the loop. Optional: defaults to an IntervalPacer at
	// Config.FrameInterval, created per session.
	Pacer Pacer
}

// session is one Begin..Stop span. The loop goroutine owns source,
// snapshot and policy.
type session struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	source   camera.FrameSource
	snapshot dataset.Dataset
	policy   *Policy
	pacer    Pacer
	done     chan struct{}
}

func (s *session) cancelled() bool {
	return s.ctx.Err() != nil
}

// Engine is the scan loop controller. All methods are safe for concurrent use.
// The mutex is never held while loading, opening the camera, extracting,
// classifying or running callbacks. Match callbacks run on the loop
// goroutine; they may call Stop but must not call Begin.
type Engine struct {
	config    Config
	extractor extractor.Extractor
	camera    *camera.Manager
	datasets  storage.DatasetRepository
	resolver  *resolver.Resolver
	pacer     Pacer
	knn       *classifier.KNN
	lg        zerolog.Logger

	mu        sync.Mutex
	state     types.ScanState
	store     *dataset.Store
	dirty     bool  // store changed since load or the last save
	unread    bool  // the persisted dataset failed to load and may still be intact
	modelOK   bool  // model loaded, even if the engine was stopped during loading
	loadErr   error // terminal model failure
	loaded    chan struct{}
	session   *session
	lastDone  chan struct{} // done channel of the most recent session
	beginning bool
	stopGen   uint64
	match     *types.StableMatch

	// Callbacks
	onMatch       []func(types.StableMatch)
	onNoMatch     []func()
	onStateChange []func(from, to types.ScanState)

	loadWG sync.WaitGroup

	cycles      atomic.Uint64
	inferences  atomic.Uint64
	staleFrames atomic.Uint64
	discarded   atomic.Uint64
	failures    atomic.Uint64
	matches     atomic.Uint64
	releases    atomic.Uint64
}

// New creates an engine in the idle state. Use DefaultConfig() for sensible defaults.
func New(cfg Config, deps Deps, lg zerolog.Logger) (*Engine, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Camera == nil {
		return nil, fmt.Errorf("camera manager is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	knn, err := classifier.New(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}

	return &Engine{
		config:    cfg,
		extractor: deps.Extractor,
		camera:    deps.Camera,
		datasets:  deps.Datasets,
		resolver:  deps.Resolver,
		pacer:     deps.Pacer,
		knn:       knn,
		lg:        lg.With().Str("component", "engine").Str("tenant", cfg.TenantID).Logger(),
		state:     types.StateIdle,
		store:     dataset.NewStore(),
		loaded:    make(chan struct{}),
	}, nil
}

// OnMatch registers a callback fired when a candidate becomes a stable match.
func (e *Engine) OnMatch(fn func(types.StableMatch)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMatch = append(e.onMatch, fn)
}

// OnNoMatch registers a callback fired when a stable match is released by
// the policy. It is not fired by Stop.
func (e *Engine) OnNoMatch(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onNoMatch = append(e.onNoMatch, fn)
}

// OnStateChange registers a callback fired after every state transition.
func (e *Engine) OnStateChange(fn func(from, to types.ScanState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStateChange = append(e.onStateChange, fn)
}

// Start moves idle → model_loading and loads the model, the persisted
// dataset and the entity metadata concurrently in the background. Use
// WaitReady to block until loading has finished.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != types.StateIdle {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	notify := e.setStateLocked(types.StateModelLoading)
	e.loadWG.Add(1)
	e.mu.Unlock()
	notify()

	go func() {
		defer e.loadWG.Done()
		e.load(ctx)
	}()
	return nil
}

// load runs the three loads and installs the result.
func (e *Engine) load(ctx context.Context) {
	started := time.Now()
	var (
		wg       sync.WaitGroup
		modelErr error
		record   *storage.DatasetRecord
		dsErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		modelErr = e.extractor.Load(ctx)
	}()
	go func() {
		defer wg.Done()
		if e.datasets != nil {
			record, dsErr = e.datasets.LoadDataset(ctx, e.config.TenantID)
		}
	}()
	if e.resolver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.resolver.Load(ctx, e.config.TenantID); err != nil {
				e.lg.Warn().Err(err).Msg("entity metadata degraded, matches resolve to unknown entity")
			}
		}()
	}
	wg.Wait()

	if modelErr != nil {
		e.mu.Lock()
		e.loadErr = fmt.Errorf("%w: %v", ErrModelFailed, modelErr)
		notify := func() {}
		if e.state == types.StateModelLoading {
			notify = e.setStateLocked(types.StateFailed)
		}
		close(e.loaded)
		e.mu.Unlock()

		e.lg.Error().Err(modelErr).Msg("model failed to load, recognition unavailable")
		notify()
		return
	}

	store := e.restoreDataset(record, dsErr)

	e.mu.Lock()
	e.store = store
	e.unread = dsErr != nil && !errors.Is(dsErr, storage.ErrNotFound)
	e.modelOK = true
	notify := func() {}
	if e.state == types.StateModelLoading {
		notify = e.setStateLocked(types.StateReady)
	}
	close(e.loaded)
	e.mu.Unlock()

	e.lg.Info().
		Str("model", e.extractor.ModelName()).
		Int("dimension", e.extractor.Dimension()).
		Int("labels", store.NumClasses()).
		Int("examples", store.Len()).
		Dur("took", time.Since(started)).
		Msg("engine loaded")
	notify()
}

// restoreDataset turns the persisted record into a store pinned to the
// model. Every failure degrades to an empty store.
func (e *Engine) restoreDataset(record *storage.DatasetRecord, err error) *dataset.Store {
	model, dim := e.extractor.ModelName(), e.extractor.Dimension()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.lg.Info().Msg("no persisted dataset, starting empty")
		return dataset.NewStoreForModel(model, dim)
	case err != nil:
		e.lg.Error().Err(err).Msg("failed to load persisted dataset, starting empty")
		return dataset.NewStoreForModel(model, dim)
	case record == nil:
		return dataset.NewStoreForModel(model, dim)
	case record.Model != "" && record.Model != model:
		e.lg.Warn().
			Str("persisted_model", record.Model).
			Str("model", model).
			Msg("persisted dataset belongs to another model, starting empty")
		return dataset.NewStoreForModel(model, dim)
	}
	return dataset.Deserialize(record.Data, model, dim, e.lg)
}

// WaitReady blocks until loading has finished. It returns ErrModelFailed
// (wrapped) when the model could not be loaded.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.loaded:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// Begin acquires the camera and starts the scan loop. It is a no-op while
// already scanning or matched. A camera denial leaves the state unchanged
// and is reported as camera.ErrPermissionDenied.
func (e *Engine) Begin(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.state.IsScanning():
		e.mu.Unlock()
		return nil
	case e.loadErr != nil:
		e.mu.Unlock()
		return e.loadErr
	case !e.modelOK:
		e.mu.Unlock()
		return ErrNotReady
	case e.beginning:
		e.mu.Unlock()
		return camera.ErrAcquireInProgress
	}
	e.beginning = true
	gen := e.stopGen
	prev := e.lastDone
	e.mu.Unlock()

	// A previous session's last cycle may still be finishing.
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			e.endBeginning()
			return ctx.Err()
		}
	}

	source, err := e.camera.Start(ctx)
	if err != nil {
		e.endBeginning()
		return err
	}

	e.mu.Lock()
	if e.stopGen != gen {
		e.beginning = false
		e.mu.Unlock()
		e.releaseCamera()
		return camera.ErrAcquireCancelled
	}

	pacer := e.pacer
	if pacer == nil {
		pacer = NewIntervalPacer(e.config.FrameInterval)
	}
	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:       uuid.New().String(),
		ctx:      sctx,
		cancel:   cancel,
		source:   source,
		snapshot: e.store.Snapshot(),
		policy:   NewPolicy(e.config),
		pacer:    pacer,
		done:     make(chan struct{}),
	}
	e.session = s
	e.lastDone = s.done
	e.beginning = false
	e.match = nil
	notify := e.setStateLocked(types.StateScanning)
	e.mu.Unlock()

	e.lg.Info().
		Str("session", s.id).
		Int("labels", s.snapshot.NumClasses()).
		Int("examples", s.snapshot.Len()).
		Msg("scan started")
	notify()

	go e.run(s)
	return nil
}

func (e *Engine) endBeginning() {
	e.mu.Lock()
	e.beginning = false
	e.mu.Unlock()
}

// Stop cancels the loop, releases the camera and clears the stable match.
// A cycle already in flight finishes but its result is discarded. Stop is
// idempotent; on an idle or failed engine it does nothing. Stop during
// model_loading keeps the engine from becoming ready; a later Begin may
// still start scanning once the model has loaded.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopGen++
	s := e.session
	e.session = nil
	e.match = nil
	if s != nil {
		s.cancel()
	}
	notify := func() {}
	switch e.state {
	case types.StateModelLoading, types.StateReady, types.StateScanning, types.StateMatched:
		notify = e.setStateLocked(types.StateStopped)
	}
	e.mu.Unlock()

	e.releaseCamera()
	if s != nil {
		e.lg.Info().Str("session", s.id).Msg("scan stopped")
	}
	notify()
}

func (e *Engine) releaseCamera() {
	if err := e.camera.Stop(); err != nil {
		e.lg.Warn().Err(err).Msg("camera release failed")
	}
}

// Shutdown stops scanning and waits for the loop and any loading in
// progress to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()

	e.mu.Lock()
	last := e.lastDone
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.loadWG.Wait()
		if last != nil {
			<-last
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}

// AddExample appends a reference embedding. It fails with ErrScanActive
// while scanning and with dataset.ErrDimensionMismatch when the embedding
// does not match the model dimension.
func (e *Engine) AddExample(label string, embedding types.Embedding) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return err
	}
	if err := e.store.AddExample(label, embedding); err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// Teach extracts an embedding from img and adds it under label.
func (e *Engine) Teach(ctx context.Context, label string, img image.Image) error {
	e.mu.Lock()
	err := e.mutableLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	embedding, err := e.extractor.Extract(ctx, img)
	if err != nil {
		return fmt.Errorf("extract example for %q: %w", label, err)
	}
	if err := e.AddExample(label, embedding); err != nil {
		return err
	}

	e.lg.Info().Str("label", label).Msg("example added")
	return nil
}

// RemoveLabel drops every example of label.
func (e *Engine) RemoveLabel(label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return err
	}
	if _, ok := e.store.Counts()[label]; ok {
		e.store.RemoveLabel(label)
		e.dirty = true
	}
	return nil
}

func (e *Engine) mutableLocked() error {
	switch {
	case e.loadErr != nil:
		return e.loadErr
	case !e.modelOK:
		return ErrNotReady
	case e.state.IsScanning() || e.beginning:
		return ErrScanActive
	}
	return nil
}

// Persist serializes the current dataset. It is callable at any time.
func (e *Engine) Persist() ([]byte, error) {
	return e.dataset().Marshal()
}

// Dirty reports whether the dataset changed since it was loaded or last saved.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Save writes the serialized dataset to the repository under the tenant.
// When the persisted dataset could not be read at startup, Save refuses with
// ErrDatasetUnread so the stored copy is never replaced by a partial one.
func (e *Engine) Save(ctx context.Context) error {
	if e.datasets == nil {
		return fmt.Errorf("no dataset repository configured")
	}
	e.mu.Lock()
	store, unread := e.store, e.unread
	e.mu.Unlock()
	if unread {
		return ErrDatasetUnread
	}
	data, err := store.Marshal()
	if err != nil {
		return fmt.Errorf("serialize dataset: %w", err)
	}

	record := storage.DatasetRecord{
		TenantID:  e.config.TenantID,
		Model:     store.Model(),
		Dimension: store.Dimension(),
		Data:      data,
	}
	if err := e.datasets.SaveDataset(ctx, record); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}

	e.mu.Lock()
	if e.store == store {
		e.dirty = false
	}
	e.mu.Unlock()

	e.lg.Info().Int("examples", store.Len()).Int("bytes", len(data)).Msg("dataset saved")
	return nil
}

func (e *Engine) dataset() *dataset.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store
}

// Labels returns the number of examples per label.
func (e *Engine) Labels() map[string]int {
	return e.dataset().Counts()
}

// State returns the current state.
func (e *Engine) State() types.ScanState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the model load failure, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// CurrentMatch returns the stable match being shown.
func (e *Engine) CurrentMatch() (types.StableMatch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.match == nil {
		return types.StableMatch{}, false
	}
	return *e.match, true
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	st := Stats{State: e.state}
	if e.session != nil {
		st.SessionID = e.session.id
	}
	store := e.store
	modelOK := e.modelOK
	e.mu.Unlock()

	if modelOK {
		st.Model = e.extractor.ModelName()
	}
	st.Dimension = store.Dimension()
	st.Labels = store.NumClasses()
	st.Examples = store.Len()
	st.Cycles = e.cycles.Load()
	st.Inferences = e.inferences.Load()
	st.StaleFrames = e.staleFrames.Load()
	st.Discarded = e.discarded.Load()
	st.Failures = e.failures.Load()
	st.Matches = e.matches.Load()
	st.Releases = e.releases.Load()
	return st
}

// setStateLocked records a transition and returns a function that fires
// the state callbacks. Call it after releasing the lock.
func (e *Engine) setStateLocked(to types.ScanState) func() {
	from := e.state
	if from == to {
		return func() {}
	}
	if !types.IsValidScanTransition(from, to) {
		e.lg.Error().Str("from", string(from)).Str("to", string(to)).Msg("invalid state transition")
		return func() {}
	}
	e.state = to
	e.lg.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state changed")

	callbacks := append([]func(from, to types.ScanState){}, e.onStateChange...)
	return func() {
		for _, fn := range callbacks {
			fn(from, to)
		}
	}
}
