package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/classifier"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage/postgres"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

var predictRemote bool

func init() {
	predictCmd.Flags().BoolVar(&predictRemote, "remote", false, "Rank neighbours with pgvector instead of in memory (postgres storage only)")
	rootCmd.AddCommand(predictCmd)
}

var predictCmd = &cobra.Command{
	Use:   "predict IMAGE...",
	Short: "Classify still images against the dataset",
	Long: `Embed each image and classify it with the configured k-nearest-neighbour
vote, printing the candidate and the ranked neighbours. Useful to check a
dataset before a kiosk goes live.

Examples:
  museus-scanner predict visitor-shot.jpg
  museus-scanner predict --remote --human a.jpg b.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

// PredictResult is the classification of one image.
type PredictResult struct {
	Path      string                `json:"path"`
	Candidate types.MatchCandidate  `json:"candidate"`
	Accepted  bool                  `json:"accepted"`
	Neighbors []NeighborResult      `json:"neighbors"`
	Entity    *types.EntityMetadata `json:"entity,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// NeighborResult is one ranked reference example.
type NeighborResult struct {
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	ext, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	if err := ext.Load(ctx); err != nil {
		return err
	}

	rec, err := repo.LoadDataset(ctx, cfg.Tenant.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("no dataset for tenant %q, run teach first", cfg.Tenant.ID)
	case err != nil:
		return err
	}
	store, err := dataset.Decode(rec.Data, ext.Dimension())
	if err != nil {
		return err
	}
	snap := store.Snapshot()

	ec := engineConfig(cfg)
	knn, err := classifier.New(ec.Classifier)
	if err != nil {
		return err
	}

	var pg *postgres.Store
	if predictRemote {
		var ok bool
		if pg, ok = repo.(*postgres.Store); !ok || !pg.VectorsEnabled() {
			return fmt.Errorf("--remote needs postgres storage with pgvector")
		}
	}

	res, err := newResolver(cfg, repo)
	if err != nil {
		return err
	}
	if err := res.Load(ctx, cfg.Tenant.ID); err != nil {
		lg.Warn().Err(err).Msg("entity metadata unavailable")
	}

	results := make([]PredictResult, 0, len(args))
	for _, path := range args {
		r := PredictResult{Path: path}
		img, err := decodeImage(path)
		var probe types.Embedding
		if err == nil {
			probe, err = ext.Extract(ctx, img)
		}
		if err == nil {
			r.Candidate, err = knn.Predict(probe, snap)
		}
		if err == nil {
			r.Neighbors, err = rankNeighbors(cmd, knn, pg, probe, snap)
		}
		if err != nil {
			r.Error = err.Error()
			results = append(results, r)
			continue
		}
		r.Accepted = r.Candidate.IsMatch() && r.Candidate.Confidence >= ec.AcceptThreshold
		if r.Candidate.IsMatch() {
			entity := res.Resolve(r.Candidate.Label)
			r.Entity = &entity
		}
		results = append(results, r)
	}

	if humanOutput {
		for _, r := range results {
			switch {
			case r.Error != "":
				outputHuman("%s: error: %s\n", r.Path, r.Error)
			case !r.Candidate.IsMatch():
				outputHuman("%s: no match\n", r.Path)
			default:
				outputHuman("%s: %s (%.2f, accepted=%v) %s\n", r.Path, r.Candidate.Label,
					r.Candidate.Confidence, r.Accepted, r.Entity.DisplayName)
			}
			for i, n := range r.Neighbors {
				outputHuman("   %d. [%.3f] %s\n", i+1, n.Similarity, n.Label)
			}
		}
		return nil
	}
	return outputJSON(results)
}

func rankNeighbors(cmd *cobra.Command, knn *classifier.KNN, pg *postgres.Store, probe types.Embedding, snap dataset.Dataset) ([]NeighborResult, error) {
	if pg != nil {
		examples, err := pg.NearestExamples(cmd.Context(), cfg.Tenant.ID, probe, knn.K())
		if err != nil {
			return nil, err
		}
		out := make([]NeighborResult, 0, len(examples))
		for _, e := range examples {
			out = append(out, NeighborResult{Label: e.Label, Similarity: classifier.Cosine(probe, e.Embedding)})
		}
		return out, nil
	}

	neighbors, err := knn.Neighbors(probe, snap)
	if err != nil {
		return nil, err
	}
	out := make([]NeighborResult, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, NeighborResult{Label: n.Label, Similarity: n.Similarity})
	}
	return out, nil
}
