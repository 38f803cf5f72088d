package common

import (
	"math"
)

// Sigmoid is the logistic function 1 / (1 + e^-v).
func Sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// Logit is the inverse of Sigmoid. Inputs are clamped away from 0 and 1 so the result stays finite.
func Logit(p float64) float64 {
	const eps = 1e-6
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}

// ClampByte converts v to a byte the way a clamped 8-bit array store does:
// values are clamped to [0, 255] and rounded half to even. NaN stores 0.
//
// Parameters:
//   - v: the value to store
//
// Returns:
//   - uint8: the stored byte
func ClampByte(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(v))
}
