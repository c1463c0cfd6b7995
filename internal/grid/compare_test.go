package grid

import (
	"errors"
	"image/color"
	"testing"
)

func TestCompare_Identical(t *testing.T) {
	img := randomNRGBA(100, 100, 42)

	g, err := Average(img, 10, 10)
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}

	if score := Compare(g, g); score != 0.0 {
		t.Errorf("Self-comparison should score exactly 0.0, got %f", score)
	}
}

func TestCompare_KnownDifference(t *testing.T) {
	// Two single-block grids differing by 10 per channel:
	// sum = 3 * 10^2 = 300, score = 300 / 3 = 100
	a := Grid{{100, 150, 200}}
	b := Grid{{110, 140, 210}}

	if score := Compare(a, b); score != 100.0 {
		t.Errorf("Expected score 100.0, got %f", score)
	}
}

func TestCompare_Symmetric(t *testing.T) {
	// The unnormalized variant is symmetric
	ga, err := Average(randomNRGBA(64, 64, 1), 8, 8)
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	gb, err := Average(randomNRGBA(64, 64, 2), 8, 8)
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}

	if Compare(ga, gb) != Compare(gb, ga) {
		t.Errorf("Compare is not symmetric: %f vs %f", Compare(ga, gb), Compare(gb, ga))
	}
}

func TestCompare_TruncatesToShorter(t *testing.T) {
	a := Grid{{10, 10, 10}, {20, 20, 20}}
	b := Grid{{10, 10, 10}, {20, 20, 20}, {250, 250, 250}}

	// The third block of b is ignored
	if score := Compare(a, b); score != 0.0 {
		t.Errorf("Expected 0.0 after truncation, got %f", score)
	}
}

func TestCompare_Empty(t *testing.T) {
	if score := Compare(Grid{}, Grid{}); score != 0.0 {
		t.Errorf("Empty grids should score 0.0, got %f", score)
	}
}

func TestCompareStrict_LengthMismatch(t *testing.T) {
	a := Grid{{1, 2, 3}}
	b := Grid{{1, 2, 3}, {4, 5, 6}}

	_, err := CompareStrict(a, b)
	if err == nil {
		t.Fatal("Expected error for unequal grids, got nil")
	}
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Expected LengthMismatchError, got %v", err)
	}

	score, err := CompareStrict(a, a)
	if err != nil {
		t.Fatalf("CompareStrict failed on equal grids: %v", err)
	}
	if score != 0.0 {
		t.Errorf("Expected 0.0, got %f", score)
	}
}

func TestCompare_LocalizedDifference(t *testing.T) {
	// Two 100x100 rasters, identical except one 10x10 region offset by 50
	// per channel. On a 10x10 grid exactly one block differs: its average
	// shifts by 50 per channel, contributing 3*50^2 = 7500 over 300
	// comparisons -> score 25. The score must be positive and well under
	// the single-block worst case of 2500.
	base := color.NRGBA{R: 100, G: 100, B: 100, A: 255}
	imgA := solidNRGBA(100, 100, base)
	imgB := solidNRGBA(100, 100, base)

	for y := 20; y < 30; y++ {
		for x := 40; x < 50; x++ {
			imgB.SetNRGBA(x, y, color.NRGBA{R: 150, G: 150, B: 150, A: 255})
		}
	}

	ga, err := Average(imgA, 10, 10)
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	gb, err := Average(imgB, 10, 10)
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}

	score := Compare(ga, gb)
	if score <= 0 {
		t.Errorf("Expected positive score, got %f", score)
	}
	if score >= 2500 {
		t.Errorf("Expected score < 2500, got %f", score)
	}
	if score != 25.0 {
		t.Errorf("Expected score 25.0, got %f", score)
	}
}
