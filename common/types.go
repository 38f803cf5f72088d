// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds texel data for a texture binding pending GPU upload.
// This is primarily used in the BindGroupProvider to stage texture data before creating the GPU texture and bind group.
type TextureStagingData struct {
	// Pixels is the raw texel data, row-major, tightly packed.
	Pixels []byte
	// Width is the width of the texture in texels.
	Width uint32
	// Height is the height of the texture in texels.
	Height uint32
	// Format is the GPU texel format. The zero value is treated as RGBA8UnormSrgb.
	Format wgpu.TextureFormat
	// BytesPerTexel is the size of a single texel. The zero value is treated as 4.
	BytesPerTexel uint32
}

// BytesPerRow returns the row pitch of the staged texture.
//
// Returns:
//   - uint32: width times the texel size
func (t TextureStagingData) BytesPerRow() uint32 {
	return t.Width * Coalesce(t.BytesPerTexel, 4)
}
