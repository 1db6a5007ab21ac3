// Package classifier implements the k-nearest-neighbour vote used to turn a
// probe embedding into a match candidate.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

const (
	// DefaultK is the default number of neighbours that vote.
	DefaultK = 5

	// MetricCosine ranks neighbours by cosine similarity.
	MetricCosine = "cosine"

	// MetricEuclidean ranks neighbours by negative Euclidean distance.
	MetricEuclidean = "euclidean"
)

// ErrDimensionMismatch is returned when the probe does not match the dataset dimension.
var ErrDimensionMismatch = errors.New("probe dimension mismatch")

// Neighbor is one ranked reference example.
type Neighbor struct {
	Label      string
	Index      int // position of the example within its label
	Similarity float64
}

// Config holds classifier settings.
type Config struct {
	// K is the number of neighbours that vote (default: DefaultK).
	K int

	// Metric is MetricCosine or MetricEuclidean (default: cosine).
	Metric string

	// MinSimilarity makes neighbours less similar than this abstain: they
	// still count towards k but vote for no label, so a probe far from every
	// reference example yields low confidence. Use math.Inf(-1) to disable.
	MinSimilarity float64
}

// DefaultConfig returns a cosine classifier over DefaultK neighbours with
// abstention disabled.
func DefaultConfig() Config {
	return Config{
		K:             DefaultK,
		Metric:        MetricCosine,
		MinSimilarity: math.Inf(-1),
	}
}

// KNN is a deterministic k-nearest-neighbour classifier.
type KNN struct {
	k             int
	metric        string
	minSimilarity float64
	similarity    func(a, b types.Embedding) float64
}

// New creates a classifier from cfg. K < 1 falls back to DefaultK and an
// empty metric means cosine.
func New(cfg Config) (*KNN, error) {
	if cfg.K < 1 {
		cfg.K = DefaultK
	}
	if math.IsNaN(cfg.MinSimilarity) {
		return nil, fmt.Errorf("MinSimilarity must be a number")
	}

	c := &KNN{k: cfg.K, metric: cfg.Metric, minSimilarity: cfg.MinSimilarity}
	switch cfg.Metric {
	case "", MetricCosine:
		c.metric = MetricCosine
		c.similarity = Cosine
	case MetricEuclidean:
		c.similarity = NegativeEuclidean
	default:
		return nil, fmt.Errorf("unsupported similarity metric: %q", cfg.Metric)
	}

	return c, nil
}

// K returns the configured neighbour count.
func (c *KNN) K() int {
	return c.k
}

// Metric returns the similarity metric name.
func (c *KNN) Metric() string {
	return c.metric
}

// Predict classifies the probe against the dataset.
//
// The predicted label is the majority among the min(k, total examples) most
// similar examples and the confidence is the fraction of those neighbours
// voting for it. Neighbours below MinSimilarity abstain. Equal vote counts go
// to the label with the most similar single neighbour, then to the
// lexicographically smallest label.
func (c *KNN) Predict(probe types.Embedding, ds dataset.Dataset) (types.MatchCandidate, error) {
	if ds.NumClasses() == 0 {
		return types.NoMatch(), nil
	}

	neighbors, err := c.Neighbors(probe, ds)
	if err != nil {
		return types.NoMatch(), err
	}

	return vote(neighbors, c.minSimilarity), nil
}

// Neighbors returns the min(k, total examples) most similar examples,
// most similar first.
func (c *KNN) Neighbors(probe types.Embedding, ds dataset.Dataset) ([]Neighbor, error) {
	if ds.NumClasses() == 0 {
		return nil, nil
	}
	if len(probe) != ds.Dimension() {
		return nil, fmt.Errorf("%w: probe has %d components, dataset has %d",
			ErrDimensionMismatch, len(probe), ds.Dimension())
	}

	all := make([]Neighbor, 0, ds.Len())
	for _, label := range ds.Labels() {
		for i, e := range ds.Examples(label) {
			all = append(all, Neighbor{
				Label:      label,
				Index:      i,
				Similarity: c.similarity(probe, e),
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Similarity != all[j].Similarity {
			return all[i].Similarity > all[j].Similarity
		}
		if all[i].Label != all[j].Label {
			return all[i].Label < all[j].Label
		}
		return all[i].Index < all[j].Index
	})

	k := c.k
	if k > len(all) {
		k = len(all)
	}
	return all[:k], nil
}

// vote picks the majority label among ranked neighbours. Neighbours below
// minSimilarity abstain but still count in the denominator.
func vote(neighbors []Neighbor, minSimilarity float64) types.MatchCandidate {
	if len(neighbors) == 0 {
		return types.NoMatch()
	}

	type tally struct {
		votes int
		best  float64
	}
	tallies := make(map[string]*tally)
	for _, n := range neighbors {
		if n.Similarity < minSimilarity {
			continue
		}
		t, ok := tallies[n.Label]
		if !ok {
			// neighbours arrive most-similar first
			t = &tally{best: n.Similarity}
			tallies[n.Label] = t
		}
		t.votes++
	}

	var winner string
	var top *tally
	for label, t := range tallies {
		switch {
		case top == nil,
			t.votes > top.votes,
			t.votes == top.votes && t.best > top.best,
			t.votes == top.votes && t.best == top.best && label < winner:
			winner, top = label, t
		}
	}
	if top == nil {
		return types.NoMatch()
	}

	return types.MatchCandidate{
		Label:      winner,
		Confidence: float64(top.votes) / float64(len(neighbors)),
	}
}

// Cosine returns the cosine similarity of a and b. A zero vector has
// similarity 0 with everything.
func Cosine(a, b types.Embedding) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// NegativeEuclidean returns minus the Euclidean distance between a and b,
// so that larger values mean more similar.
func NegativeEuclidean(a, b types.Embedding) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return -math.Sqrt(sum)
}
