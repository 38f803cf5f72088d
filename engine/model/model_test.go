package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRowMarshalLayout(t *testing.T) {
	r := Row{
		Position: [3]float32{1, -2, 3.5},
		Scale:    [3]float32{0.5, 1, 2},
		Color:    [4]uint8{10, 20, 30, 40},
		Rotation: [4]uint8{255, 128, 128, 128},
	}
	assert.Equal(t, RowLength, r.Size())

	buf := r.Marshal()
	require.Len(t, buf, RowLength)
	assert.Equal(t, []byte{10, 20, 30, 40}, buf[24:28])
	assert.Equal(t, []byte{255, 128, 128, 128}, buf[28:32])
	assert.Equal(t, math.Float32bits(3.5), uint32(buf[8])|uint32(buf[9])<<8|uint32(buf[10])<<16|uint32(buf[11])<<24)

	assert.Equal(t, r, UnmarshalRow(buf))
}

func TestQuantizeRotation(t *testing.T) {
	assert.Equal(t, [4]uint8{255, 128, 128, 128}, QuantizeRotation(mgl32.QuatIdent()))
	assert.Equal(t, [4]uint8{128, 0, 128, 128}, QuantizeRotation(mgl32.Quat{W: 0, V: mgl32.Vec3{-1, 0, 0}}))

	q := DequantizeRotation([4]uint8{255, 128, 128, 128})
	assert.InDelta(t, 1, q.W, 1e-6)
	assert.InDelta(t, 1, q.Len(), 1e-6)

	assert.Equal(t, mgl32.QuatIdent(), DequantizeRotation([4]uint8{128, 128, 128, 128}))
}

func TestQuantizeRotationRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		axis := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
		if axis.Len() < 1e-3 {
			continue
		}
		q := mgl32.QuatRotate(rng.Float32()*2*math.Pi, axis.Normalize())
		back := DequantizeRotation(QuantizeRotation(q))

		// Dequantization renormalizes, so allow a little more than one step.
		assert.InDelta(t, q.W, back.W, 2.0/128)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, q.V[k], back.V[k], 2.0/128)
		}
	}
}

func TestCovarianceIdentity(t *testing.T) {
	sigma := Covariance([3]float32{1, 2, 3}, mgl32.QuatIdent())
	assert.InDeltaSlice(t, []float32{1, 0, 0, 4, 0, 9}, sigma[:], 1e-6)

	words := PackCovariance(sigma)
	back := UnpackCovariance(words)
	assert.InDeltaSlice(t, sigma[:], back[:], 1e-3)
}

func TestCovarianceNegatedRealPart(t *testing.T) {
	// A quarter turn about Z swaps the x and y extents whichever way it turns.
	q := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})
	sigma := Covariance([3]float32{2, 1, 1}, q)
	assert.InDelta(t, 1, sigma[0], 1e-5)
	assert.InDelta(t, 4, sigma[3], 1e-5)
	assert.InDelta(t, 1, sigma[5], 1e-5)

	// At 45 degrees the off-diagonal sign exposes the negated real part:
	// the result is R·S²·Rᵀ rather than Rᵀ·S²·R.
	q = mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 0, 1})
	sigma = Covariance([3]float32{2, 1, 1}, q)
	assert.InDelta(t, 1.5, sigma[1], 1e-5)
}

func TestCovariancePositiveSemidefinite(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		scale := [3]float32{
			float32(math.Exp(rng.Float64()*6 - 4)),
			float32(math.Exp(rng.Float64()*6 - 4)),
			float32(math.Exp(rng.Float64()*6 - 4)),
		}
		q := mgl32.Quat{W: rng.Float32()*2 - 1, V: mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}}
		q = NormalizeRotation(q)

		s := UnpackCovariance(PackCovariance(Covariance(scale, q)))
		sym := mat.NewSymDense(3, []float64{
			float64(s[0]), float64(s[1]), float64(s[2]),
			float64(s[1]), float64(s[3]), float64(s[4]),
			float64(s[2]), float64(s[4]), float64(s[5]),
		})

		var eig mat.EigenSym
		require.True(t, eig.Factorize(sym, false))
		largest := 0.0
		for _, v := range eig.Values(nil) {
			largest = math.Max(largest, v)
		}
		for _, v := range eig.Values(nil) {
			assert.GreaterOrEqual(t, v, -1e-2*largest-1e-4, "scale=%v q=%v", scale, q)
		}
	}
}

func TestBandIndices(t *testing.T) {
	b := TierBands([4]int{2, 3, 0, 4})
	assert.Equal(t, BandIndices{1, 4, 4}, b)
	assert.Equal(t, 0, b.Band(0))
	assert.Equal(t, 0, b.Band(1))
	assert.Equal(t, 1, b.Band(2))
	assert.Equal(t, 1, b.Band(4))
	assert.Equal(t, 3, b.Band(5))
	assert.Equal(t, 2, b.FirstBanded())
	assert.Equal(t, 7, b.SHCount(9))

	assert.Equal(t, BandIndices{9, 9, 9}, UniformBands(10, 0))
	assert.Equal(t, BandIndices{-1, 9, 9}, UniformBands(10, 1))
	assert.Equal(t, BandIndices{-1, -1, -1}, UniformBands(10, 3))
	assert.Equal(t, 0, UniformBands(10, 0).SHCount(10))
	assert.Equal(t, 10, UniformBands(10, 3).SHCount(10))

	// Drop one band-0 splat and the first band-3 splat.
	compacted := b.Compact(9, func(i int) bool { return i != 0 && i != 5 })
	assert.Equal(t, BandIndices{0, 3, 3}, compacted)
}

func TestSHSlot(t *testing.T) {
	assert.Equal(t, 45, SHSlot(14, 15))
	assert.Equal(t, 3, SHSlot(0, 15))
	assert.Equal(t, 4, SHSlot(15, 15))
	assert.Equal(t, 47, SHSlot(44, 15))
	assert.Equal(t, 11, SHSlot(8, 3))
	assert.Equal(t, 26, SHSlot(23, 8))

	// Every rest coefficient of every band lands on a distinct slot.
	for band := 1; band <= 3; band++ {
		stride := SHStride(band)
		seen := map[int]bool{}
		for n := 0; n < 3*stride; n++ {
			slot := SHSlot(n, stride)
			assert.False(t, seen[slot])
			assert.Less(t, slot, SHFloatsPerSplat)
			seen[slot] = true
		}
	}
}
