package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/dataset"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/storage"
)

func init() {
	labelsCmd.AddCommand(labelsRmCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the labels in the dataset",
	Long: `List every label in the tenant's dataset with its example count.

Examples:
  museus-scanner labels
  museus-scanner labels rm abaporu`,
	Args: cobra.NoArgs,
	RunE: runLabels,
}

var labelsRmCmd = &cobra.Command{
	Use:   "rm LABEL...",
	Short: "Remove labels and all their examples",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLabelsRm,
}

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write the serialized dataset to FILE or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the dataset with a previously exported one",
	Long: `Replace the tenant's dataset with an exported file. The file must have
been produced with the configured model and embedding dimension.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// LabelsResponse lists labels with their example counts.
type LabelsResponse struct {
	Labels map[string]int `json:"labels"`
	Total  int            `json:"total"`
}

func runLabels(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	rec, err := repo.LoadDataset(ctx, cfg.Tenant.ID)
	if err != nil && !isNotFound(err) {
		return err
	}

	resp := LabelsResponse{Labels: map[string]int{}}
	if rec != nil {
		store, err := dataset.Decode(rec.Data, 0)
		if err != nil {
			return err
		}
		resp.Labels = store.Counts()
		resp.Total = store.Len()
	}

	if humanOutput {
		if resp.Total == 0 {
			outputHuman("Dataset is empty\n")
			return nil
		}
		outputHuman("%d examples in %d labels:\n\n", resp.Total, len(resp.Labels))
		for _, label := range sortedKeys(resp.Labels) {
			outputHuman("  %-24s %d\n", label, resp.Labels[label])
		}
		return nil
	}
	return outputJSON(resp)
}

func runLabelsRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	eng, err := startEngine(ctx, cfg, repo, nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Shutdown(ctx) }()

	for _, label := range args {
		if err := eng.RemoveLabel(label); err != nil {
			return err
		}
	}
	if err := eng.Save(ctx); err != nil {
		return err
	}

	if humanOutput {
		outputHuman("Removed %d labels\n", len(args))
		return nil
	}
	return outputJSON(LabelsResponse{Labels: eng.Labels(), Total: total(eng.Labels())})
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	rec, err := repo.LoadDataset(ctx, cfg.Tenant.ID)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if _, err := out.Write(rec.Data); err != nil {
		return err
	}

	if len(args) == 1 && humanOutput {
		outputHuman("Exported %d bytes to %s\n", len(rec.Data), args[0])
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ext, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	if err := ext.Load(ctx); err != nil {
		return err
	}

	store, err := dataset.Decode(data, ext.Dimension())
	if err != nil {
		return err
	}
	if store.Model() != "" && store.Model() != ext.ModelName() {
		return fmt.Errorf("dataset was built with model %q, configured model is %q", store.Model(), ext.ModelName())
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	err = repo.SaveDataset(ctx, storage.DatasetRecord{
		TenantID:  cfg.Tenant.ID,
		Model:     ext.ModelName(),
		Dimension: ext.Dimension(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	if humanOutput {
		outputHuman("Imported %d examples in %d labels\n", store.Len(), store.NumClasses())
		return nil
	}
	return outputJSON(LabelsResponse{Labels: store.Counts(), Total: store.Len()})
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, storage.ErrNotFound)
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
