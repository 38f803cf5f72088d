package common

import (
	"fmt"
)

// Box is an axis-aligned clipping volume with inclusive bounds.
type Box struct {
	Min [3]float32
	Max [3]float32
}

// NewBox builds a Box from per-axis bounds.
//
// Parameters:
//   - xMin, xMax, yMin, yMax, zMin, zMax: the inclusive bounds along each axis
//
// Returns:
//   - Box: the box
func NewBox(xMin, xMax, yMin, yMax, zMin, zMax float32) Box {
	return Box{
		Min: [3]float32{xMin, yMin, zMin},
		Max: [3]float32{xMax, yMax, zMax},
	}
}

// Validate checks that every min is strictly below its max.
//
// Returns:
//   - error: wraps ErrInvalidBounds naming the first bad axis, or nil
func (b Box) Validate() error {
	axes := [3]string{"x", "y", "z"}
	for i, axis := range axes {
		if !(b.Min[i] < b.Max[i]) {
			return fmt.Errorf("%w: %sMin (%v) must be smaller than %sMax (%v)", ErrInvalidBounds, axis, b.Min[i], axis, b.Max[i])
		}
	}
	return nil
}

// Contains reports whether the point lies inside the box, bounds included.
func (b Box) Contains(x, y, z float32) bool {
	return x >= b.Min[0] && x <= b.Max[0] &&
		y >= b.Min[1] && y <= b.Max[1] &&
		z >= b.Min[2] && z <= b.Max[2]
}
