package grid

import "image"

// Pick identifies which of two images a dimension query selected.
type Pick int

const (
	PickFirst Pick = iota
	PickSecond
)

func (p Pick) String() string {
	switch p {
	case PickFirst:
		return "first"
	case PickSecond:
		return "second"
	default:
		return "unknown"
	}
}

// SmallerImage reports which of the two images covers fewer pixels, along
// with that image's width and height. On equal areas the second image is
// selected; callers needing a common working resolution rely on that
// tie-break.
func SmallerImage(a, b *image.NRGBA) (Pick, int, int) {
	aw, ah := a.Bounds().Dx(), a.Bounds().Dy()
	bw, bh := b.Bounds().Dx(), b.Bounds().Dy()

	if aw*ah < bw*bh {
		return PickFirst, aw, ah
	}
	return PickSecond, bw, bh
}
