package model

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Covariance builds the upper triangle of the 3D covariance Σ = (S·R)ᵀ(S·R) for a splat.
// S is diag(scale) and R is the rotation matrix of rot with its real part negated,
// which is the convention the splat shaders unpack against.
//
// Parameters:
//   - scale: the per-axis linear scale
//   - rot: the unit rotation as stored on the splat
//
// Returns:
//   - [6]float32: σ00, σ01, σ02, σ11, σ12, σ22
func Covariance(scale [3]float32, rot mgl32.Quat) [6]float32 {
	r := mgl32.Quat{W: -rot.W, V: rot.V}.Mat4().Mat3()
	m := mgl32.Diag3(mgl32.Vec3(scale)).Mul3(r)
	sigma := m.Transpose().Mul3(m)

	return [6]float32{
		sigma.At(0, 0), sigma.At(0, 1), sigma.At(0, 2),
		sigma.At(1, 1), sigma.At(1, 2),
		sigma.At(2, 2),
	}
}

// PackCovariance packs a covariance upper triangle into the three half2 words of the main buffer.
// Every entry is scaled by 4 before packing.
//
// Parameters:
//   - sigma: σ00, σ01, σ02, σ11, σ12, σ22
//
// Returns:
//   - [3]uint32: words 4, 5 and 6 of a packed splat
func PackCovariance(sigma [6]float32) [3]uint32 {
	return [3]uint32{
		common.PackHalf2x16(4*sigma[0], 4*sigma[1]),
		common.PackHalf2x16(4*sigma[2], 4*sigma[3]),
		common.PackHalf2x16(4*sigma[4], 4*sigma[5]),
	}
}

// UnpackCovariance reverses PackCovariance, including the factor of 4.
func UnpackCovariance(words [3]uint32) [6]float32 {
	var sigma [6]float32
	for i, w := range words {
		a, b := common.UnpackHalf2x16(w)
		sigma[2*i] = a / 4
		sigma[2*i+1] = b / 4
	}
	return sigma
}
