package grid

import (
	"image"
	"image/color"
	"math"
)

// Render paints an averaged grid as an image, one scale x scale square per
// block, in the grid's row-major order.
func Render(g Grid, xSegments, ySegments, scale int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, xSegments*scale, ySegments*scale))

	for by := 0; by < ySegments; by++ {
		for bx := 0; bx < xSegments; bx++ {
			avg := g[by*xSegments+bx]
			fillBlock(img, bx, by, scale, color.NRGBA{R: avg[0], G: avg[1], B: avg[2], A: 255})
		}
	}

	return img
}

// RenderDiff creates a false-color per-block difference image: black means
// no difference, red means high difference. Grids are zipped to the shorter
// length, matching the comparator; blocks past the shorter grid are blue.
func RenderDiff(a, b Grid, xSegments, ySegments, scale int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, xSegments*scale, ySegments*scale))

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for by := 0; by < ySegments; by++ {
		for bx := 0; bx < xSegments; bx++ {
			i := by*xSegments + bx

			var c color.NRGBA
			if i < n {
				dr := int(a[i][0]) - int(b[i][0])
				dg := int(a[i][1]) - int(b[i][1])
				db := int(a[i][2]) - int(b[i][2])

				diffMag := math.Sqrt(float64(dr*dr + dg*dg + db*db))

				// Max magnitude is sqrt(3)*255 ~ 441.7
				normalized := uint8(math.Min(255, diffMag/441.7*255))
				c = color.NRGBA{R: normalized, A: 255}
			} else {
				c = color.NRGBA{B: 128, A: 255}
			}

			fillBlock(img, bx, by, scale, c)
		}
	}

	return img
}

func fillBlock(img *image.NRGBA, bx, by, scale int, c color.NRGBA) {
	for y := by * scale; y < (by+1)*scale; y++ {
		for x := bx * scale; x < (bx+1)*scale; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}
