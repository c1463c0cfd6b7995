package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockdiff/internal/align"
	"github.com/cwbudde/blockdiff/internal/fetch"
	"github.com/cwbudde/blockdiff/internal/grid"
	"github.com/cwbudde/blockdiff/internal/opt"
)

var (
	alignGridX int
	alignGridY int
	alignIters int
	alignPop   int
	alignSeed  int64
)

var alignCmd = &cobra.Command{
	Use:   "align <source-a> <source-b>",
	Short: "Search for the best-matching offset between two images",
	Long: `Treats the smaller image as a patch and searches for the offset
within the larger image that minimizes the block divergence score.
The search uses mayfly optimization over the candidate offsets.`,
	Args: cobra.ExactArgs(2),
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().IntVar(&alignGridX, "grid-x", 10, "Number of horizontal segments")
	alignCmd.Flags().IntVar(&alignGridY, "grid-y", 10, "Number of vertical segments")
	alignCmd.Flags().IntVar(&alignIters, "iters", 100, "Max optimizer iterations")
	alignCmd.Flags().IntVar(&alignPop, "pop", 30, "Optimizer population size")
	alignCmd.Flags().Int64Var(&alignSeed, "seed", 42, "Random seed")

	rootCmd.AddCommand(alignCmd)
}

func runAlign(cmd *cobra.Command, args []string) error {
	sourceA, sourceB := args[0], args[1]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	slog.Info("Starting offset search", "source_a", sourceA, "source_b", sourceB, "iters", alignIters, "pop", alignPop)

	imgA, err := fetch.Source(ctx, sourceA)
	if err != nil {
		return fmt.Errorf("failed to load first image: %w", err)
	}
	imgB, err := fetch.Source(ctx, sourceB)
	if err != nil {
		return fmt.Errorf("failed to load second image: %w", err)
	}

	optimizer := opt.NewMayfly(alignIters, alignPop, alignSeed)

	start := time.Now()
	result, err := align.Search(imgA, imgB, align.Config{
		XSegments: alignGridX,
		YSegments: alignGridY,
		Iters:     alignIters,
		PopSize:   alignPop,
		Seed:      alignSeed,
	}, optimizer)
	if err != nil {
		return fmt.Errorf("offset search failed: %w", err)
	}
	elapsed := time.Since(start)

	larger := "first"
	if result.Larger == grid.PickSecond {
		larger = "second"
	}

	slog.Info("Offset search complete",
		"offset_x", result.OffsetX,
		"offset_y", result.OffsetY,
		"score", result.Score,
		"zero_offset_score", result.ZeroOffsetScore,
		"elapsed", elapsed,
	)

	fmt.Printf("Best offset: (%d, %d) within the %s image\n", result.OffsetX, result.OffsetY, larger)
	fmt.Printf("Score: %.6f (zero offset: %.6f)\n", result.Score, result.ZeroOffsetScore)

	return nil
}
