package common

import (
	"math"

	"github.com/x448/float16"
)

// FloatToHalf converts a 32-bit float to the bit pattern of a 16-bit half float.
// The fraction is truncated rather than rounded, values below the half subnormal
// range flush toward zero and values past the half range saturate to infinity.
// This matches the unpackHalf2x16 decoding done by the splat shaders.
//
// Parameters:
//   - f: the float to convert
//
// Returns:
//   - uint16: the half float bits
func FloatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)

	sign := (bits >> 31) & 0x0001
	exp := (bits >> 23) & 0x00ff
	frac := bits & 0x007fffff

	var newExp uint32
	switch {
	case exp == 0:
		newExp = 0
	case exp < 113:
		newExp = 0
		frac |= 0x00800000
		frac >>= 113 - exp
		if frac&0x01000000 != 0 {
			newExp = 1
			frac = 0
		}
	case exp < 142:
		newExp = exp - 112
	default:
		newExp = 31
		frac = 0
	}

	return uint16((sign << 15) | (newExp << 10) | (frac >> 13))
}

// PackHalf2x16 packs two floats as halves into one word.
// x lands in the 16 least significant bits, y in the 16 most significant bits.
//
// Parameters:
//   - x: the value for the low half
//   - y: the value for the high half
//
// Returns:
//   - uint32: the packed word
func PackHalf2x16(x, y float32) uint32 {
	return uint32(FloatToHalf(x)) | uint32(FloatToHalf(y))<<16
}

// UnpackHalf2x16 is the inverse of PackHalf2x16.
//
// Parameters:
//   - w: the packed word
//
// Returns:
//   - float32: the low half decoded
//   - float32: the high half decoded
func UnpackHalf2x16(w uint32) (float32, float32) {
	return DecodeFloat16(uint16(w)), DecodeFloat16(uint16(w >> 16))
}

// DecodeFloat16 converts the bit pattern of a 16-bit half float to a 32-bit float.
// Subnormals decode as fraction/1024 * 2^-14, normals as (1 + fraction/1024) * 2^(exponent-15)
// and an all-ones exponent yields ±Inf or NaN.
//
// Parameters:
//   - h: the half float bits
//
// Returns:
//   - float32: the decoded value
func DecodeFloat16(h uint16) float32 {
	return float16.Frombits(h).Float32()
}
