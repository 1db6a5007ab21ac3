package engine

import (
	"time"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// run is the session's loop goroutine. Each iteration waits for the pacer,
// takes the newest frame and runs one inference. The next iteration starts
// only after the previous one has completed, so at most one inference is
// in flight.
func (e *Engine) run(s *session) {
	defer close(s.done)
	lg := e.lg.With().Str("session", s.id).Logger()

	var (
		lastSeq uint64
		seen    bool
	)
	for {
		if err := s.pacer.Wait(s.ctx); err != nil {
			return
		}
		if s.cancelled() {
			return
		}
		e.cycles.Add(1)

		frame, ok := s.source.Latest()
		if !ok || (seen && frame.Seq <= lastSeq) {
			e.staleFrames.Add(1)
			continue
		}
		lastSeq, seen = frame.Seq, true

		candidate := e.infer(s, frame)
		if s.cancelled() {
			e.discarded.Add(1)
			lg.Debug().Uint64("seq", frame.Seq).Msg("discarding result of stopped session")
			return
		}
		e.apply(s, candidate)
	}
}

// infer extracts and classifies one frame. Failures count as no candidate.
func (e *Engine) infer(s *session, frame camera.Frame) types.MatchCandidate {
	e.inferences.Add(1)

	embedding, err := e.extractor.Extract(s.ctx, frame.Image)
	if err != nil {
		e.failures.Add(1)
		if !s.cancelled() {
			e.lg.Debug().Err(err).Uint64("seq", frame.Seq).Msg("extraction failed")
		}
		return types.NoMatch()
	}

	candidate, err := e.knn.Predict(embedding, s.snapshot)
	if err != nil {
		e.failures.Add(1)
		e.lg.Debug().Err(err).Uint64("seq", frame.Seq).Msg("classification failed")
		return types.NoMatch()
	}
	return candidate
}

// apply runs the policy on one candidate and publishes the outcome.
func (e *Engine) apply(s *session, candidate types.MatchCandidate) {
	decision, accepted := s.policy.Observe(candidate)
	if decision == DecisionHold {
		return
	}

	var entity types.EntityMetadata
	if decision == DecisionAccept {
		entity = types.UnknownEntity(accepted.Label)
		if e.resolver != nil {
			entity = e.resolver.Resolve(accepted.Label)
		}
	}

	e.mu.Lock()
	if e.session != s {
		// Stopped between the cancellation check and here.
		e.mu.Unlock()
		e.discarded.Add(1)
		return
	}

	var fire func()
	switch decision {
	case DecisionAccept:
		match := types.StableMatch{
			SessionID:  s.id,
			Label:      accepted.Label,
			Confidence: accepted.Confidence,
			Entity:     entity,
			MatchedAt:  time.Now(),
		}
		e.match = &match
		notify := e.setStateLocked(types.StateMatched)
		callbacks := append([]func(types.StableMatch){}, e.onMatch...)
		fire = func() {
			notify()
			for _, fn := range callbacks {
				fn(match)
			}
		}
		e.matches.Add(1)
		e.lg.Info().
			Str("session", s.id).
			Str("label", match.Label).
			Float64("confidence", match.Confidence).
			Bool("known", entity.Known).
			Msg("match accepted")

	case DecisionRelease:
		e.match = nil
		notify := e.setStateLocked(types.StateScanning)
		callbacks := append([]func(){}, e.onNoMatch...)
		fire = func() {
			notify()
			for _, fn := range callbacks {
				fn()
			}
		}
		e.releases.Add(1)
		e.lg.Info().Str("session", s.id).Msg("match released")
	}
	e.mu.Unlock()

	fire()
}
