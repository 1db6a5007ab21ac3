// Package dataset holds the reference examples the classifier matches against.
//
// The Store is the only long-lived mutable state of the recognition engine.
// The classifier never reads the Store directly; it receives an immutable
// Dataset snapshot so that a prediction can never observe a half-applied update.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

var (
	// ErrDimensionMismatch indicates an embedding whose length differs from the
	// dimension established by the store (usually a stale model version).
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidExample indicates an empty label, an empty embedding or an
	// embedding containing non-finite values.
	ErrInvalidExample = errors.New("invalid example")

	// ErrCorruptDataset indicates a serialized dataset that cannot be restored.
	ErrCorruptDataset = errors.New("corrupt dataset")
)

// Store holds, per label, the embeddings collected as training examples.
// It is safe for concurrent use; Serialize may run while a scan is in progress.
type Store struct {
	mu        sync.RWMutex
	model     string
	dimension int
	pinned    bool // dimension fixed by the model rather than by the first example
	examples  map[string][]types.Embedding
}

// NewStore creates an empty store whose dimension is fixed by the first example.
func NewStore() *Store {
	return &Store{examples: make(map[string][]types.Embedding)}
}

// NewStoreForModel creates an empty store pinned to a model's output dimension.
// A dimension <= 0 behaves like NewStore.
func NewStoreForModel(model string, dimension int) *Store {
	s := NewStore()
	s.model = model
	if dimension > 0 {
		s.dimension = dimension
		s.pinned = true
	}
	return s
}

// AddExample appends an embedding to the label's collection.
func (s *Store) AddExample(label string, embedding types.Embedding) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidExample)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding cannot be empty", ErrInvalidExample)
	}
	if !embedding.IsFinite() {
		return fmt.Errorf("%w: embedding contains non-finite values", ErrInvalidExample)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && len(embedding) != s.dimension {
		return fmt.Errorf("%w: got %d, store dimension is %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}
	if s.dimension == 0 {
		s.dimension = len(embedding)
	}

	s.examples[label] = append(s.examples[label], embedding.Clone())
	return nil
}

// RemoveLabel drops every example of a label. Removing an absent label is a no-op.
func (s *Store) RemoveLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.examples, label)
	if len(s.examples) == 0 && !s.pinned {
		s.dimension = 0
	}
}

// NumClasses returns the number of labels with at least one example.
func (s *Store) NumClasses() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples)
}

// Len returns the total number of examples across all labels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, list := range s.examples {
		total += len(list)
	}
	return total
}

// Dimension returns the established embedding dimension, or 0 if none yet.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Model returns the model name recorded with the store.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Labels returns the labels in sorted order.
func (s *Store) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLabels(s.examples)
}

// Counts returns the number of examples per label.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.examples))
	for label, list := range s.examples {
		counts[label] = len(list)
	}
	return counts
}

// Snapshot returns an immutable view of the current examples.
// Later mutations of the store are not visible through the snapshot.
func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	examples := make(map[string][]types.Embedding, len(s.examples))
	for label, list := range s.examples {
		examples[label] = list[:len(list):len(list)]
	}

	return Dataset{
		dimension: s.dimension,
		labels:    sortedLabels(examples),
		examples:  examples,
	}
}

// Dataset is a read-only snapshot of a Store handed to the classifier.
// The zero value is a valid empty dataset.
type Dataset struct {
	dimension int
	labels    []string
	examples  map[string][]types.Embedding
}

// FromExamples builds a Dataset from a list of examples, in order.
func FromExamples(examples ...types.ReferenceExample) (Dataset, error) {
	s := NewStore()
	for _, ex := range examples {
		if err := s.AddExample(ex.Label, ex.Embedding); err != nil {
			return Dataset{}, err
		}
	}
	return s.Snapshot(), nil
}

// NumClasses returns the number of labels in the snapshot.
func (d Dataset) NumClasses() int {
	return len(d.labels)
}

// Dimension returns the embedding dimension of the snapshot, 0 when empty.
func (d Dataset) Dimension() int {
	return d.dimension
}

// Labels returns the labels in sorted order. The slice must not be modified.
func (d Dataset) Labels() []string {
	return d.labels
}

// Examples returns the embeddings of a label in insertion order.
// The slice must not be modified.
func (d Dataset) Examples(label string) []types.Embedding {
	return d.examples[label]
}

// Len returns the total number of examples.
func (d Dataset) Len() int {
	total := 0
	for _, list := range d.examples {
		total += len(list)
	}
	return total
}

func sortedLabels(examples map[string][]types.Embedding) []string {
	labels := make([]string, 0, len(examples))
	for label := range examples {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
