package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/blockdiff/internal/fetch"
	"github.com/cwbudde/blockdiff/internal/grid"
	"github.com/cwbudde/blockdiff/internal/store"
)

var (
	gridX      int
	gridY      int
	vectorized bool
	strict     bool
	dataDir    string
	outDiff    string
	outGrids   string
)

// previewScale matches the server's block preview rendering.
const previewScale = 16

var compareCmd = &cobra.Command{
	Use:   "compare <source-a> <source-b>",
	Short: "Compare two images by their block-averaged grids",
	Long: `Reduces both images to a grid of averaged colors and prints their
divergence score. Sources may be local file paths or http(s) URLs.
A score of 0 means the averaged grids are identical; larger scores
mean larger average squared channel differences.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().IntVar(&gridX, "grid-x", 10, "Number of horizontal segments")
	compareCmd.Flags().IntVar(&gridY, "grid-y", 10, "Number of vertical segments")
	compareCmd.Flags().BoolVar(&vectorized, "vectorized", false, "Use the lane-based comparison backend")
	compareCmd.Flags().BoolVar(&strict, "strict", false, "Require both grids to have the same block count")
	compareCmd.Flags().StringVar(&dataDir, "data-dir", "", "Persist a comparison report under this directory")
	compareCmd.Flags().StringVar(&outDiff, "out-diff", "", "Write a false-color per-block difference image to this path")
	compareCmd.Flags().StringVar(&outGrids, "out-grids", "", "Write the averaged grids as <prefix>-a.png and <prefix>-b.png")

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	sourceA, sourceB := args[0], args[1]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	slog.Info("Comparing images", "source_a", sourceA, "source_b", sourceB, "grid_x", gridX, "grid_y", gridY)

	imgA, err := fetch.Source(ctx, sourceA)
	if err != nil {
		return fmt.Errorf("failed to load first image: %w", err)
	}
	imgB, err := fetch.Source(ctx, sourceB)
	if err != nil {
		return fmt.Errorf("failed to load second image: %w", err)
	}

	start := time.Now()

	gridA, err := grid.Average(imgA, gridX, gridY)
	if err != nil {
		return fmt.Errorf("failed to average first image: %w", err)
	}
	gridB, err := grid.Average(imgB, gridX, gridY)
	if err != nil {
		return fmt.Errorf("failed to average second image: %w", err)
	}

	var score float64
	backend := "scalar"
	switch {
	case vectorized && strict:
		score, err = grid.CompareStrictVectorized(gridA, gridB)
		backend = grid.ActiveVectorBackend().String()
	case vectorized:
		score, err = grid.CompareVectorized(gridA, gridB)
		backend = grid.ActiveVectorBackend().String()
	case strict:
		score, err = grid.CompareStrict(gridA, gridB)
	default:
		score = grid.Compare(gridA, gridB)
	}
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	elapsed := time.Since(start)

	slog.Info("Comparison complete", "score", score, "backend", backend, "elapsed", elapsed)
	fmt.Printf("Score: %.6f (%dx%d grid, %s backend)\n", score, gridX, gridY, backend)

	if outDiff != "" {
		diff := grid.RenderDiff(gridA, gridB, gridX, gridY, previewScale)
		if err := fetch.Save(outDiff, diff); err != nil {
			return fmt.Errorf("failed to write diff image: %w", err)
		}
		fmt.Printf("Wrote %s\n", outDiff)
	}
	if outGrids != "" {
		for _, p := range []struct {
			path string
			g    grid.Grid
		}{
			{outGrids + "-a.png", gridA},
			{outGrids + "-b.png", gridB},
		} {
			if err := fetch.Save(p.path, grid.Render(p.g, gridX, gridY, previewScale)); err != nil {
				return fmt.Errorf("failed to write grid image: %w", err)
			}
			fmt.Printf("Wrote %s\n", p.path)
		}
	}

	if dataDir != "" {
		reportStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}

		config := store.CompareConfig{
			SourceA:    sourceA,
			SourceB:    sourceB,
			XSegments:  gridX,
			YSegments:  gridY,
			Vectorized: vectorized,
			Strict:     strict,
		}
		report := store.NewReport(uuid.New().String(), config, score, elapsed)
		report.Backend = backend

		if err := reportStore.SaveReport(report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Printf("Saved report %s\n", report.ID)
	}

	return nil
}
