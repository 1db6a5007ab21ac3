// Package types defines the core value types shared by the recognition engine:
// embeddings, reference examples, per-cycle match candidates and the stable
// matches exposed to callers.
package types

import (
	"math"
	"time"
)

// Embedding is a fixed-length feature vector produced by an extractor.
// Embeddings are treated as immutable once produced.
type Embedding []float32

// Dimension returns the vector length.
func (e Embedding) Dimension() int {
	return len(e)
}

// IsFinite reports whether every component is a finite number.
func (e Embedding) IsFinite() bool {
	for _, v := range e {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share backing storage with e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// ReferenceExample is one training example taught to the engine for a label.
type ReferenceExample struct {
	Label     string    `json:"label"`
	Embedding Embedding `json:"embedding"`
}

// MatchCandidate is the raw output of one classification cycle.
// An empty Label means no match.
type MatchCandidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NoMatch returns the candidate produced when nothing could be predicted.
func NoMatch() MatchCandidate {
	return MatchCandidate{}
}

// IsMatch reports whether the candidate names a label.
func (c MatchCandidate) IsMatch() bool {
	return c.Label != ""
}

// StableMatch is a candidate that survived the acceptance policy.
// It is the only match representation exposed outside the engine.
type StableMatch struct {
	SessionID  string         `json:"session_id"`
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Entity     EntityMetadata `json:"entity"`
	MatchedAt  time.Time      `json:"matched_at"`
}
