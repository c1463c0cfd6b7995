package grid

// BlockAverage is the per-channel mean RGB value of one block.
type BlockAverage [3]uint8

// Grid is an ordered sequence of block averages for one image,
// row-major (outer loop y, inner loop x).
type Grid []BlockAverage

// Flatten returns the grid as a contiguous channel-byte slice
// (R,G,B repeated per block). This is the layout consumed by the
// lane-parallel comparator.
func (g Grid) Flatten() []uint8 {
	flat := make([]uint8, 0, len(g)*3)
	for _, b := range g {
		flat = append(flat, b[0], b[1], b[2])
	}
	return flat
}
