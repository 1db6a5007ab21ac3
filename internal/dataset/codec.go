package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

// FormatVersion is the version of the serialized dataset layout.
const FormatVersion = 1

// MaxDimension bounds the embedding dimension accepted from a serialized dataset.
const MaxDimension = 1 << 20

// SerializedDataset is the persisted form of a Store. The dimension is
// recorded once per file and every label carries count × dimension float32
// values as a little-endian byte buffer.
type SerializedDataset struct {
	Version   int                        `json:"version"`
	Dimension int                        `json:"dimension"`
	Model     string                     `json:"model,omitempty"`
	Labels    map[string]SerializedLabel `json:"labels"`
}

// SerializedLabel is the flat vector buffer of one label.
type SerializedLabel struct {
	Count   uint32 `json:"count"`
	Vectors []byte `json:"vectors"`
}

// Serialize returns the persisted form of the store. It only takes a read
// lock, so it can run at any time without pausing a scan.
func (s *Store) Serialize() *SerializedDataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &SerializedDataset{
		Version:   FormatVersion,
		Dimension: s.dimension,
		Model:     s.model,
		Labels:    make(map[string]SerializedLabel, len(s.examples)),
	}

	for label, list := range s.examples {
		out.Labels[label] = SerializedLabel{
			Count:   uint32(len(list)),
			Vectors: encodeVectors(list, s.dimension),
		}
	}

	return out
}

// Marshal encodes the store as JSON.
func (s *Store) Marshal() ([]byte, error) {
	data, err := json.Marshal(s.Serialize())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset: %w", err)
	}
	return data, nil
}

// Examples flattens the serialized dataset into reference examples, ordered by
// label and then by insertion order. The dataset must be valid.
func (sd *SerializedDataset) Examples() ([]types.ReferenceExample, error) {
	store, err := sd.Restore(0)
	if err != nil {
		return nil, err
	}

	snap := store.Snapshot()
	out := make([]types.ReferenceExample, 0, snap.Len())
	for _, label := range snap.Labels() {
		for _, e := range snap.Examples(label) {
			out = append(out, types.ReferenceExample{Label: label, Embedding: e})
		}
	}
	return out, nil
}

// Restore validates the serialized dataset and rebuilds a Store from it.
// When expectedDimension is positive, a dataset recorded with a different
// dimension is rejected.
func (sd *SerializedDataset) Restore(expectedDimension int) (*Store, error) {
	if sd == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrCorruptDataset)
	}
	if sd.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptDataset, sd.Version)
	}
	if sd.Dimension < 0 || sd.Dimension > MaxDimension {
		return nil, fmt.Errorf("%w: dimension %d out of range", ErrCorruptDataset, sd.Dimension)
	}
	if len(sd.Labels) > 0 && sd.Dimension == 0 {
		return nil, fmt.Errorf("%w: labels present but dimension is 0", ErrCorruptDataset)
	}
	if expectedDimension > 0 && sd.Dimension != 0 && sd.Dimension != expectedDimension {
		return nil, fmt.Errorf("%w: dataset dimension %d, model dimension %d",
			ErrCorruptDataset, sd.Dimension, expectedDimension)
	}

	store := NewStoreForModel(sd.Model, expectedDimension)
	if store.dimension == 0 {
		store.dimension = sd.Dimension
	}

	labels := make([]string, 0, len(sd.Labels))
	for label := range sd.Labels {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		entry := sd.Labels[label]
		if label == "" {
			return nil, fmt.Errorf("%w: empty label", ErrCorruptDataset)
		}
		if entry.Count == 0 {
			return nil, fmt.Errorf("%w: label %q has no examples", ErrCorruptDataset, label)
		}

		n := len(entry.Vectors)
		if n%(4*sd.Dimension) != 0 || n/4/sd.Dimension != int(entry.Count) {
			return nil, fmt.Errorf("%w: label %q buffer is %d bytes for %d examples of dimension %d",
				ErrCorruptDataset, label, n, entry.Count, sd.Dimension)
		}

		vectors, err := decodeVectors(entry.Vectors, int(entry.Count), sd.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: label %q: %v", ErrCorruptDataset, label, err)
		}
		store.examples[label] = vectors
	}

	return store, nil
}

// Decode parses a JSON-encoded dataset, returning ErrCorruptDataset on any
// malformed input.
func Decode(data []byte, expectedDimension int) (*Store, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptDataset)
	}

	var sd SerializedDataset
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDataset, err)
	}

	return sd.Restore(expectedDimension)
}

// Deserialize is the fail-soft variant of Decode: a corrupt blob is logged and
// replaced by an empty store so that the engine can still boot.
func Deserialize(data []byte, model string, expectedDimension int, lg zerolog.Logger) *Store {
	store, err := Decode(data, expectedDimension)
	if err != nil {
		lg.Error().Err(err).Int("bytes", len(data)).Msg("discarding persisted dataset")
		return NewStoreForModel(model, expectedDimension)
	}
	if store.model == "" {
		store.model = model
	}
	return store
}

// encodeVectors writes the embeddings as consecutive little-endian float32 values.
func encodeVectors(list []types.Embedding, dimension int) []byte {
	buf := make([]byte, len(list)*dimension*4)
	offset := 0
	for _, e := range list {
		for _, v := range e {
			binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
			offset += 4
		}
	}
	return buf
}

// decodeVectors reads count embeddings of the given dimension, rejecting
// non-finite values.
func decodeVectors(buf []byte, count, dimension int) ([]types.Embedding, error) {
	out := make([]types.Embedding, count)
	offset := 0
	for i := 0; i < count; i++ {
		e := make(types.Embedding, dimension)
		for j := 0; j < dimension; j++ {
			e[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
			offset += 4
		}
		if !e.IsFinite() {
			return nil, fmt.Errorf("example %d contains non-finite values", i)
		}
		out[i] = e
	}
	return out, nil
}
