package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// Texture bindings staged by Upload.
const (
	BindingMain = 0
	BindingSHR  = 1
	BindingSHG  = 2
	BindingSHB  = 3
)

// bytesPerTexel is the size of one rgba32uint texel.
const bytesPerTexel = 16

func (s *scene) staging(words []uint32, height int) common.TextureStagingData {
	return common.TextureStagingData{
		Pixels:        common.SliceToBytes(words),
		Width:         uint32(s.width),
		Height:        uint32(height),
		Format:        wgpu.TextureFormatRGBA32Uint,
		BytesPerTexel: bytesPerTexel,
	}
}

func (s *scene) Upload(r renderer.Renderer, provider bind_group_provider.BindGroupProvider) error {
	if s.count == 0 {
		return nil
	}

	if err := r.InitTextureView(provider, BindingMain, s.staging(s.data, s.height)); err != nil {
		return fmt.Errorf("upload main texture of %q: %w", s.name, err)
	}

	for c, binding := range [3]int{BindingSHR, BindingSHG, BindingSHB} {
		if s.sh[c] == nil {
			provider.ClearTextureView(binding)
			continue
		}
		if err := r.InitTextureView(provider, binding, s.staging(s.sh[c], s.shHeight)); err != nil {
			return fmt.Errorf("upload SH texture %d of %q: %w", c, s.name, err)
		}
	}
	return nil
}
