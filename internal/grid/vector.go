package grid

import (
	"log/slog"

	"golang.org/x/sys/cpu"
)

// Lane-parallel divergence between two averaged grids.
//
// The comparator walks the flattened channel bytes of both grids and
// accumulates squared differences in independent float64 lanes, reducing to
// a single sum at the end. Lane accumulation changes the summation order
// relative to the sequential scalar path; equivalence with Compare is an
// explicit acceptance test (see vector_test.go), not an assumption. Every
// partial sum here is an integer far below 2^53, so in practice the lane
// and scalar paths agree bit-for-bit.

// LaneWidth is the number of channel bytes processed per lane group.
const LaneWidth = 4

// VectorBackend indicates which lane kernel is active.
type VectorBackend int

const (
	VectorBackendLanes4 VectorBackend = iota // one 4-wide lane group per step
	VectorBackendLanes8                      // two interleaved lane groups per step
)

func (b VectorBackend) String() string {
	switch b {
	case VectorBackendLanes4:
		return "lanes4"
	case VectorBackendLanes8:
		return "lanes8"
	default:
		return "unknown"
	}
}

// activeVectorBackend is selected at init from CPU features. Wide-issue
// cores keep eight independent accumulation chains busy; everything else
// gets the plain 4-lane kernel.
var activeVectorBackend VectorBackend

var laneKernel func(a, b []uint8) float64

func init() {
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		activeVectorBackend = VectorBackendLanes8
		laneKernel = sumSquaredLanes8
	} else {
		activeVectorBackend = VectorBackendLanes4
		laneKernel = sumSquaredLanes4
	}
	slog.Debug("comparator lane kernel initialized", "backend", activeVectorBackend.String())
}

// ActiveVectorBackend reports which lane kernel was selected at init.
func ActiveVectorBackend() VectorBackend {
	return activeVectorBackend
}

// SetVectorBackend overrides the lane kernel selection. Intended for
// benchmarks and for cross-validating both kernels in tests.
func SetVectorBackend(b VectorBackend) {
	activeVectorBackend = b
	switch b {
	case VectorBackendLanes8:
		laneKernel = sumSquaredLanes8
	default:
		laneKernel = sumSquaredLanes4
	}
}

// CompareVectorized computes the same divergence score as Compare using
// lane-parallel accumulation.
//
// Each grid's flattened channel-byte length (3 * block count) must be a
// multiple of LaneWidth; other lengths are rejected with
// *LaneAlignmentError rather than padded, since zero padding would have to
// be excluded from the divisor to keep the mean honest. Like Compare, the
// grids are zipped to the shorter flattened length.
func CompareVectorized(a, b Grid) (float64, error) {
	fa := a.Flatten()
	fb := b.Flatten()

	if len(fa)%LaneWidth != 0 {
		return 0, &LaneAlignmentError{Length: len(fa), LaneWidth: LaneWidth}
	}
	if len(fb)%LaneWidth != 0 {
		return 0, &LaneAlignmentError{Length: len(fb), LaneWidth: LaneWidth}
	}

	n := len(fa)
	if len(fb) < n {
		n = len(fb)
	}
	if n == 0 {
		return 0, nil
	}

	sum := laneKernel(fa[:n], fb[:n])
	return sum / float64(n), nil
}

// CompareStrictVectorized applies the strict length contract before the
// lane alignment check.
func CompareStrictVectorized(a, b Grid) (float64, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{LenA: len(a), LenB: len(b)}
	}
	return CompareVectorized(a, b)
}

// sumSquaredLanes4 accumulates squared byte differences in four float64
// lanes. len(a) == len(b) and must be a multiple of 4.
func sumSquaredLanes4(a, b []uint8) float64 {
	var l0, l1, l2, l3 float64

	for i := 0; i < len(a); i += 4 {
		d0 := int32(b[i+0]) - int32(a[i+0])
		d1 := int32(b[i+1]) - int32(a[i+1])
		d2 := int32(b[i+2]) - int32(a[i+2])
		d3 := int32(b[i+3]) - int32(a[i+3])

		l0 += float64(d0 * d0)
		l1 += float64(d1 * d1)
		l2 += float64(d2 * d2)
		l3 += float64(d3 * d3)
	}

	return l0 + l1 + l2 + l3
}

// sumSquaredLanes8 processes two interleaved 4-wide lane groups per step,
// falling back to single-group steps for the remainder. More independent
// accumulation chains expose instruction-level parallelism on cores with
// four or more ALUs.
func sumSquaredLanes8(a, b []uint8) float64 {
	var l0, l1, l2, l3, l4, l5, l6, l7 float64

	n8 := (len(a) / 8) * 8
	i := 0

	for ; i < n8; i += 8 {
		d0 := int32(b[i+0]) - int32(a[i+0])
		d1 := int32(b[i+1]) - int32(a[i+1])
		d2 := int32(b[i+2]) - int32(a[i+2])
		d3 := int32(b[i+3]) - int32(a[i+3])
		d4 := int32(b[i+4]) - int32(a[i+4])
		d5 := int32(b[i+5]) - int32(a[i+5])
		d6 := int32(b[i+6]) - int32(a[i+6])
		d7 := int32(b[i+7]) - int32(a[i+7])

		l0 += float64(d0 * d0)
		l1 += float64(d1 * d1)
		l2 += float64(d2 * d2)
		l3 += float64(d3 * d3)
		l4 += float64(d4 * d4)
		l5 += float64(d5 * d5)
		l6 += float64(d6 * d6)
		l7 += float64(d7 * d7)
	}

	// Remainder: one 4-wide group (input length is a multiple of 4)
	for ; i < len(a); i += 4 {
		d0 := int32(b[i+0]) - int32(a[i+0])
		d1 := int32(b[i+1]) - int32(a[i+1])
		d2 := int32(b[i+2]) - int32(a[i+2])
		d3 := int32(b[i+3]) - int32(a[i+3])

		l0 += float64(d0 * d0)
		l1 += float64(d1 * d1)
		l2 += float64(d2 * d2)
		l3 += float64(d3 * d3)
	}

	return (l0 + l4) + (l1 + l5) + (l2 + l6) + (l3 + l7)
}
