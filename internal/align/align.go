// Package align searches for the crop offset of the larger of two images
// that best matches the smaller one under block divergence.
//
// The smaller image (by pixel area, ties favoring the second) fixes the
// working resolution. A candidate offset (dx, dy) selects a window of that
// size inside the larger image; the cost of the candidate is the divergence
// between the two block-averaged grids. The mayfly optimizer explores the
// offset space.
package align

import (
	"image"
	"log/slog"
	"math"

	"github.com/cwbudde/blockdiff/internal/grid"
	"github.com/cwbudde/blockdiff/internal/opt"
)

// Config holds the search parameters.
type Config struct {
	XSegments int
	YSegments int
	Iters     int
	PopSize   int
	Seed      int64
}

// Result holds the outcome of an offset search.
type Result struct {
	// OffsetX, OffsetY locate the best-matching window inside the larger image.
	OffsetX int
	OffsetY int
	// Score is the divergence at the best offset.
	Score float64
	// ZeroOffsetScore is the divergence with the window at the origin,
	// kept for improvement tracking.
	ZeroOffsetScore float64
	// Larger reports which input supplied the search area.
	Larger grid.Pick
}

// Search runs the offset search. The two images may have different sizes;
// if they are identical in size the only window is at the origin and the
// search degenerates to a single comparison.
func Search(a, b *image.NRGBA, cfg Config, optimizer opt.Optimizer) (*Result, error) {
	pick, w, h := grid.SmallerImage(a, b)

	small, big := b, a
	larger := grid.PickFirst
	if pick == grid.PickFirst {
		small, big = a, b
		larger = grid.PickSecond
	}

	ref, err := grid.Average(small, cfg.XSegments, cfg.YSegments)
	if err != nil {
		return nil, err
	}

	bigBounds := big.Bounds()
	maxDX := bigBounds.Dx() - w
	maxDY := bigBounds.Dy() - h

	cost := func(params []float64) float64 {
		dx := clampInt(int(math.Round(params[0])), 0, maxDX)
		dy := clampInt(int(math.Round(params[1])), 0, maxDY)

		window := cropWindow(big, dx, dy, w, h)
		g, err := grid.Average(window, cfg.XSegments, cfg.YSegments)
		if err != nil {
			return math.MaxFloat64
		}
		return grid.Compare(ref, g)
	}

	zeroScore := cost([]float64{0, 0})

	if maxDX == 0 && maxDY == 0 {
		return &Result{
			Score:           zeroScore,
			ZeroOffsetScore: zeroScore,
			Larger:          larger,
		}, nil
	}

	slog.Info("Starting offset search",
		"window", w, "x_range", maxDX, "y_range", maxDY,
		"iters", cfg.Iters, "pop", cfg.PopSize)

	lower := []float64{0, 0}
	upper := []float64{float64(maxDX), float64(maxDY)}
	best, bestCost := optimizer.Run(cost, lower, upper, 2)

	result := &Result{
		OffsetX:         clampInt(int(math.Round(best[0])), 0, maxDX),
		OffsetY:         clampInt(int(math.Round(best[1])), 0, maxDY),
		Score:           bestCost,
		ZeroOffsetScore: zeroScore,
		Larger:          larger,
	}

	// The optimizer samples randomly; never report worse than the origin
	if zeroScore <= bestCost {
		result.OffsetX = 0
		result.OffsetY = 0
		result.Score = zeroScore
	}

	slog.Info("Offset search complete",
		"offset_x", result.OffsetX, "offset_y", result.OffsetY,
		"score", result.Score, "zero_offset_score", zeroScore)

	return result, nil
}

// cropWindow returns the w x h window of img at (dx, dy) as a sub-image.
func cropWindow(img *image.NRGBA, dx, dy, w, h int) *image.NRGBA {
	min := img.Bounds().Min
	r := image.Rect(min.X+dx, min.Y+dy, min.X+dx+w, min.Y+dy+h)
	return img.SubImage(r).(*image.NRGBA)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
