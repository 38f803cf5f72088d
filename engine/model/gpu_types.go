package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUSplatSource is the canonical WGSL reader for the packed splat textures.
// It documents the layout GPUSplat and the SH buffers are packed into.
//
//go:embed assets/splat.wgsl
var GPUSplatSource string

const (
	// RowLength is the size in bytes of one intermediate/exported splat row.
	RowLength = 32

	// WordsPerSplat is the number of uint32 words a splat occupies in the main buffer.
	WordsPerSplat = 8

	// TexelsPerSplat is the number of rgba32uint texels a splat occupies in every packed texture.
	TexelsPerSplat = 2

	// SHWordsPerSplat is the number of uint32 words a splat occupies in each SH channel buffer.
	SHWordsPerSplat = 8

	// SHFloatsPerSplat is the number of SH floats decoded per banded splat: 3 dc + 15 terms x 3 channels.
	SHFloatsPerSplat = 48

	// DefaultTextureWidth is the texel width of every packed texture.
	DefaultTextureWidth = 2048
)

// Row is the 32-byte intermediate splat record produced by the decoders and consumed by the scene.
// The same layout is used by the raw export and by .splat files.
type Row struct {
	Position [3]float32 // offset  0: world space position (12 bytes)
	Scale    [3]float32 // offset 12: linear scale, always positive (12 bytes)
	Color    [4]uint8   // offset 24: rgb + opacity (4 bytes)
	Rotation [4]uint8   // offset 28: quaternion w, x, y, z quantized as v*128+128 (4 bytes)
}

// Size returns the size of the Row struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (r *Row) Size() int {
	return int(unsafe.Sizeof(*r))
}

// MarshalTo serializes the Row into dst, which must hold at least RowLength bytes.
//
// Parameters:
//   - dst: the destination buffer
func (r *Row) MarshalTo(dst []byte) {
	_ = dst[RowLength-1]
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(r.Position[0]))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(r.Position[1]))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(r.Position[2]))
	binary.LittleEndian.PutUint32(dst[12:16], math.Float32bits(r.Scale[0]))
	binary.LittleEndian.PutUint32(dst[16:20], math.Float32bits(r.Scale[1]))
	binary.LittleEndian.PutUint32(dst[20:24], math.Float32bits(r.Scale[2]))
	copy(dst[24:28], r.Color[:])
	copy(dst[28:32], r.Rotation[:])
}

// Marshal serializes the Row into a new buffer.
//
// Returns:
//   - []byte: 32-byte buffer
func (r *Row) Marshal() []byte {
	buf := make([]byte, RowLength)
	r.MarshalTo(buf)
	return buf
}

// UnmarshalRow reads a Row from the first RowLength bytes of src.
//
// Parameters:
//   - src: the source buffer
//
// Returns:
//   - Row: the decoded row
func UnmarshalRow(src []byte) Row {
	_ = src[RowLength-1]
	var r Row
	r.Position[0] = math.Float32frombits(binary.LittleEndian.Uint32(src[0:4]))
	r.Position[1] = math.Float32frombits(binary.LittleEndian.Uint32(src[4:8]))
	r.Position[2] = math.Float32frombits(binary.LittleEndian.Uint32(src[8:12]))
	r.Scale[0] = math.Float32frombits(binary.LittleEndian.Uint32(src[12:16]))
	r.Scale[1] = math.Float32frombits(binary.LittleEndian.Uint32(src[16:20]))
	r.Scale[2] = math.Float32frombits(binary.LittleEndian.Uint32(src[20:24]))
	copy(r.Color[:], src[24:28])
	copy(r.Rotation[:], src[28:32])
	return r
}

// QuantizeRotation stores a quaternion as four bytes in w, x, y, z order.
// Each component is mapped with v*128+128 and clamped, so w=1 stores 255.
//
// Parameters:
//   - q: the rotation
//
// Returns:
//   - [4]uint8: the quantized components
func QuantizeRotation(q mgl32.Quat) [4]uint8 {
	return [4]uint8{
		common.ClampByte(float64(q.W)*128 + 128),
		common.ClampByte(float64(q.V[0])*128 + 128),
		common.ClampByte(float64(q.V[1])*128 + 128),
		common.ClampByte(float64(q.V[2])*128 + 128),
	}
}

// DequantizeRotation is the inverse of QuantizeRotation followed by a normalization.
// A degenerate all-128 input yields the identity rotation.
//
// Parameters:
//   - b: the quantized components in w, x, y, z order
//
// Returns:
//   - mgl32.Quat: the unit rotation
func DequantizeRotation(b [4]uint8) mgl32.Quat {
	q := mgl32.Quat{
		W: (float32(b[0]) - 128) / 128,
		V: mgl32.Vec3{
			(float32(b[1]) - 128) / 128,
			(float32(b[2]) - 128) / 128,
			(float32(b[3]) - 128) / 128,
		},
	}
	return NormalizeRotation(q)
}

// NormalizeRotation returns q scaled to unit length, or the identity when q has no length.
func NormalizeRotation(q mgl32.Quat) mgl32.Quat {
	if q.Len() == 0 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}
