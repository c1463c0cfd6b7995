package grid

// Scalar divergence between two averaged grids.
//
// The score is the unnormalized sum of squared per-channel differences,
// divided by the number of scalar comparisons performed (3 per paired
// block). The chi-square normalization by the expected value is deliberately
// not applied; the unnormalized form is symmetric and is the variant the
// vectorized comparator must match.

// Compare computes the divergence score between two averaged grids.
//
// Grids of different lengths are zipped position-by-position up to the
// shorter length; the tail of the longer grid is ignored. Callers that want
// unequal lengths to fail should use CompareStrict.
//
// The score is non-negative; 0 means the paired blocks are identical.
func Compare(a, b Grid) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		dr := int32(b[i][0]) - int32(a[i][0])
		dg := int32(b[i][1]) - int32(a[i][1])
		db := int32(b[i][2]) - int32(a[i][2])
		sum += float64(dr*dr + dg*dg + db*db)
	}

	return sum / float64(n*3)
}

// CompareStrict is Compare with the strictness flag engaged: grids of
// unequal length fail with *LengthMismatchError instead of being silently
// truncated.
func CompareStrict(a, b Grid) (float64, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{LenA: len(a), LenB: len(b)}
	}
	return Compare(a, b), nil
}
