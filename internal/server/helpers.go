package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/cwbudde/blockdiff/internal/grid"
	"github.com/cwbudde/blockdiff/internal/store"
)

// previewScale is the edge length in pixels of one block in preview renders.
const previewScale = 16

// gridCacheKey derives a stable cache key from a source and its segment counts.
func gridCacheKey(source string, xSegments, ySegments int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%dx%d", source, xSegments, ySegments)))
	return hex.EncodeToString(sum[:16])
}

// cachedAverage computes the averaged grid for an image, reading through the
// store's grid cache when one is available. Cache failures fall back to
// recomputation; they never fail the job.
func cachedAverage(st store.Store, source string, img *image.NRGBA, xSegments, ySegments int) (grid.Grid, error) {
	if st == nil {
		return grid.Average(img, xSegments, ySegments)
	}

	key := gridCacheKey(source, xSegments, ySegments)
	if g, xs, ys, err := st.LoadGrid(key); err == nil && xs == xSegments && ys == ySegments {
		return g, nil
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Grid cache read failed, recomputing", "key", key, "error", err)
	}

	g, err := grid.Average(img, xSegments, ySegments)
	if err != nil {
		return nil, err
	}

	if err := st.SaveGrid(key, xSegments, ySegments, g); err != nil {
		slog.Warn("Failed to cache grid", "key", key, "error", err)
	}
	return g, nil
}
