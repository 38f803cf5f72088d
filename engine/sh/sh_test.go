package sh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestRGBRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.25, 0.5, 1} {
		assert.InDelta(t, v, SHToRGB(RGBToSH(v)), 1e-6)
	}
	assert.Equal(t, float32(0), RGBToSH(0.5))
}

func TestDegreeForRest(t *testing.T) {
	assert.Equal(t, 0, DegreeForRest(0))
	assert.Equal(t, 1, DegreeForRest(9))
	assert.Equal(t, 2, DegreeForRest(24))
	assert.Equal(t, 3, DegreeForRest(45))
	assert.Equal(t, -1, DegreeForRest(12))
}

func TestEvalDiffuseOnly(t *testing.T) {
	coeffs := make([]float32, 48)
	coeffs[0], coeffs[1], coeffs[2] = RGBToSH(0.2), RGBToSH(0.6), RGBToSH(0.9)

	for _, dir := range []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, -1}} {
		rgb := Eval(coeffs, 3, dir)
		assert.InDelta(t, 0.2, rgb[0], 1e-5)
		assert.InDelta(t, 0.6, rgb[1], 1e-5)
		assert.InDelta(t, 0.9, rgb[2], 1e-5)
	}
}

func TestEvalFirstDegreeIsViewDependent(t *testing.T) {
	coeffs := make([]float32, 12)
	// Red responds to the y term only.
	coeffs[3] = -1

	up := Eval(coeffs, 1, mgl32.Vec3{0, 1, 0})
	down := Eval(coeffs, 1, mgl32.Vec3{0, -1, 0})
	assert.InDelta(t, 0.5+C1, up[0], 1e-6)
	assert.InDelta(t, 0.5-C1, down[0], 1e-6)
	assert.InDelta(t, 0.5, up[1], 1e-6)
}

func TestEvalClampsDegreeToCoefficients(t *testing.T) {
	coeffs := make([]float32, 3)
	rgb := Eval(coeffs, 3, mgl32.Vec3{0, 0, 1})
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, rgb)

	assert.Equal(t, [3]float32{}, Eval(nil, 0, mgl32.Vec3{0, 0, 1}))
}

func TestEvalClampsAtZero(t *testing.T) {
	coeffs := []float32{-10, -10, -10}
	assert.Equal(t, [3]float32{0, 0, 0}, Eval(coeffs, 0, mgl32.Vec3{0, 0, 1}))
}
