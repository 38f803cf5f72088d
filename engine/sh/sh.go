// Package sh evaluates the real spherical harmonics used for view dependent splat color.
//
// Coefficients use the 48-float splat layout: coefficient k of channel c lives at
// slot 3*k+c, with k=0 being the diffuse (dc) term.
package sh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Basis normalization constants per degree.
const (
	C0 = 0.28209479177387814
	C1 = 0.4886025119029199
)

var (
	C2 = [5]float32{
		1.0925484305920792,
		-1.0925484305920792,
		0.31539156525252005,
		-1.0925484305920792,
		0.5462742152960396,
	}

	C3 = [7]float32{
		-0.5900435899266435,
		2.890611442640554,
		-0.4570457994644658,
		0.3731763325901154,
		-0.4570457994644658,
		1.445305721320277,
		-0.5900435899266435,
	}
)

// MaxDegree is the highest supported SH degree.
const MaxDegree = 3

// Coefficients returns the number of coefficients per channel for a degree.
func Coefficients(degree int) int {
	return (degree + 1) * (degree + 1)
}

// DegreeForRest returns the degree whose higher order terms give rest floats over three channels,
// or -1 when no degree matches.
func DegreeForRest(rest int) int {
	for d := 0; d <= MaxDegree; d++ {
		if 3*(Coefficients(d)-1) == rest {
			return d
		}
	}
	return -1
}

// Eval evaluates the color of a splat seen along dir.
// The degree is clamped to what coeffs holds. The result is offset by 0.5 and
// clamped at zero, matching how splat shaders turn SH into color.
//
// Parameters:
//   - coeffs: the splat coefficients in the 48-float layout, possibly shorter
//   - degree: the requested degree, 0 to 3
//   - dir: the unit view direction from the camera to the splat
//
// Returns:
//   - [3]float32: the rgb color in [0, +inf)
func Eval(coeffs []float32, degree int, dir mgl32.Vec3) [3]float32 {
	degree = min(degree, MaxDegree)
	for degree > 0 && len(coeffs) < 3*Coefficients(degree) {
		degree--
	}
	if len(coeffs) < 3 {
		return [3]float32{}
	}

	x, y, z := dir[0], dir[1], dir[2]
	var basis [16]float32
	basis[0] = C0
	if degree > 0 {
		basis[1] = -C1 * y
		basis[2] = C1 * z
		basis[3] = -C1 * x
	}
	if degree > 1 {
		xx, yy, zz := x*x, y*y, z*z
		xy, yz, xz := x*y, y*z, x*z
		basis[4] = C2[0] * xy
		basis[5] = C2[1] * yz
		basis[6] = C2[2] * (2*zz - xx - yy)
		basis[7] = C2[3] * xz
		basis[8] = C2[4] * (xx - yy)

		if degree > 2 {
			basis[9] = C3[0] * y * (3*xx - yy)
			basis[10] = C3[1] * xy * z
			basis[11] = C3[2] * y * (4*zz - xx - yy)
			basis[12] = C3[3] * z * (2*zz - 3*xx - 3*yy)
			basis[13] = C3[4] * x * (4*zz - xx - yy)
			basis[14] = C3[5] * z * (xx - yy)
			basis[15] = C3[6] * x * (xx - 3*yy)
		}
	}

	var rgb [3]float32
	for k := 0; k < Coefficients(degree); k++ {
		for c := 0; c < 3; c++ {
			rgb[c] += basis[k] * coeffs[3*k+c]
		}
	}
	for c := range rgb {
		rgb[c] = max(rgb[c]+0.5, 0)
	}
	return rgb
}

// RGBToSH converts a color channel in [0, 1] to its dc coefficient.
func RGBToSH(v float32) float32 {
	return (v - 0.5) / C0
}

// SHToRGB converts a dc coefficient to its color channel, unclamped.
func SHToRGB(dc float32) float32 {
	return dc*C0 + 0.5
}
