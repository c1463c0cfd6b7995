package grid

import "image"

// Average partitions an NRGBA raster into xSegments*ySegments rectangular
// blocks and computes the mean RGB value of each block.
//
// Block size is floor(W/xSegments) x floor(H/ySegments); the last column and
// last row absorb the remainder so the blocks cover the raster exactly. Sums
// are accumulated in uint64 (an 8-bit channel over millions of pixels stays
// far below overflow) and the mean is truncated to uint8. The alpha channel
// is read and discarded.
//
// The result is row-major: outer loop y, inner loop x.
//
// Segment counts of zero, or larger than the corresponding raster dimension
// (which would make a block empty), fail with *InvalidGridDimensionsError.
func Average(img *image.NRGBA, xSegments, ySegments int) (Grid, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if xSegments < 1 || ySegments < 1 || xSegments > width || ySegments > height {
		return nil, &InvalidGridDimensionsError{
			XSegments: xSegments,
			YSegments: ySegments,
			Width:     width,
			Height:    height,
		}
	}

	blockWidth := width / xSegments
	blockHeight := height / ySegments

	out := make(Grid, 0, xSegments*ySegments)

	for by := 0; by < ySegments; by++ {
		currentHeight := blockHeight
		if by == ySegments-1 {
			// Last row absorbs the remainder
			currentHeight = height - blockHeight*(ySegments-1)
		}
		y0 := by * blockHeight

		for bx := 0; bx < xSegments; bx++ {
			currentWidth := blockWidth
			if bx == xSegments-1 {
				currentWidth = width - blockWidth*(xSegments-1)
			}
			x0 := bx * blockWidth

			var sumR, sumG, sumB uint64

			for y := y0; y < y0+currentHeight; y++ {
				i := img.PixOffset(bounds.Min.X+x0, bounds.Min.Y+y)
				for x := 0; x < currentWidth; x++ {
					sumR += uint64(img.Pix[i+0])
					sumG += uint64(img.Pix[i+1])
					sumB += uint64(img.Pix[i+2])
					// alpha at i+3 is ignored
					i += 4
				}
			}

			count := uint64(currentWidth * currentHeight)
			out = append(out, BlockAverage{
				uint8(sumR / count),
				uint8(sumG / count),
				uint8(sumB / count),
			})
		}
	}

	return out, nil
}
