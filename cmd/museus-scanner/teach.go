package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var teachLabel string

func init() {
	teachCmd.Flags().StringVar(&teachLabel, "label", "", "Label for the given image files")
	rootCmd.AddCommand(teachCmd)
}

var teachCmd = &cobra.Command{
	Use:   "teach [--label LABEL] PATH...",
	Short: "Add reference examples to the dataset",
	Long: `Embed reference images and add them to the tenant's dataset.

With --label every PATH is an image file taught under that label. Without
it every PATH is a directory whose subdirectories are labels holding
JPEG or PNG files.

Examples:
  museus-scanner teach --label abaporu abaporu-1.jpg abaporu-2.jpg
  museus-scanner teach ./reference`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTeach,
}

// TeachResponse reports the outcome of a teach run.
type TeachResponse struct {
	Added   map[string]int `json:"added"`
	Skipped []string       `json:"skipped,omitempty"`
	Labels  map[string]int `json:"labels"`
}

func runTeach(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	plan, err := teachPlan(teachLabel, args)
	if err != nil {
		return err
	}

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

	resp := TeachResponse{Added: map[string]int{}}
	for _, item := range plan {
		img, err := decodeImage(item.path)
		if err == nil {
			err = eng.Teach(ctx, item.label, img)
		}
		if err != nil {
			lg.Warn().Err(err).Str("path", item.path).Msg("skipping example")
			resp.Skipped = append(resp.Skipped, item.path)
			continue
		}
		resp.Added[item.label]++
	}

	if err := eng.Save(ctx); err != nil {
		return err
	}
	resp.Labels = eng.Labels()

	if humanOutput {
		for _, label := range sortedKeys(resp.Added) {
			outputHuman("  %-24s +%d (%d total)\n", label, resp.Added[label], resp.Labels[label])
		}
		if len(resp.Skipped) > 0 {
			outputHuman("%d files skipped\n", len(resp.Skipped))
		}
		return nil
	}
	return outputJSON(resp)
}

type teachItem struct {
	label string
	path  string
}

// teachPlan expands the arguments into (label, file) pairs.
func teachPlan(label string, args []string) ([]teachItem, error) {
	var plan []teachItem
	if label != "" {
		for _, p := range args {
			plan = append(plan, teachItem{label: label, path: p})
		}
		return plan, nil
	}

	for _, root := range args {
		dirs, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			if !d.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(root, d.Name()))
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				if f.IsDir() || !isImageFile(f.Name()) {
					continue
				}
				plan = append(plan, teachItem{label: d.Name(), path: filepath.Join(root, d.Name(), f.Name())})
			}
		}
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("no images found under %s", strings.Join(args, ", "))
	}
	return plan, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
