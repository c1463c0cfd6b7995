package grid

import "fmt"

// ErrInvalidGridDimensions is returned when segment counts would produce
// an empty block. Use errors.Is(err, ErrInvalidGridDimensions) to check.
var ErrInvalidGridDimensions = &InvalidGridDimensionsError{}

// InvalidGridDimensionsError reports segment counts that are zero or
// exceed the raster extent.
type InvalidGridDimensionsError struct {
	XSegments, YSegments int
	Width, Height        int
}

func (e *InvalidGridDimensionsError) Error() string {
	return fmt.Sprintf("invalid grid dimensions: %dx%d segments for %dx%d raster",
		e.XSegments, e.YSegments, e.Width, e.Height)
}

func (e *InvalidGridDimensionsError) Is(target error) bool {
	_, ok := target.(*InvalidGridDimensionsError)
	return ok
}

// ErrLengthMismatch is returned by the strict comparators when the two
// grids have different lengths.
var ErrLengthMismatch = &LengthMismatchError{}

// LengthMismatchError reports grids of unequal length passed to a strict
// comparator.
type LengthMismatchError struct {
	LenA, LenB int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("grid length mismatch: %d vs %d blocks", e.LenA, e.LenB)
}

func (e *LengthMismatchError) Is(target error) bool {
	_, ok := target.(*LengthMismatchError)
	return ok
}

// ErrLaneAlignment is returned by the vectorized comparator when a grid's
// flattened channel-byte length is not a multiple of the lane width.
var ErrLaneAlignment = &LaneAlignmentError{}

// LaneAlignmentError reports a flattened grid length incompatible with
// the comparator lane width.
type LaneAlignmentError struct {
	Length    int
	LaneWidth int
}

func (e *LaneAlignmentError) Error() string {
	return fmt.Sprintf("flattened grid length %d is not a multiple of lane width %d",
		e.Length, e.LaneWidth)
}

func (e *LaneAlignmentError) Is(target error) bool {
	_, ok := target.(*LaneAlignmentError)
	return ok
}
