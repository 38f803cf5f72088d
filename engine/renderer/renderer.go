package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/bind_group_provider"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	deviceLabel          string
}

// Renderer is the texture upload seam between packed splat data and the GPU.
//
// A rendering pipeline owns the shaders and draw calls; the Renderer only turns staged
// texel data into texture views stored on a BindGroupProvider, keyed by binding.
type Renderer interface {
	// InitTextureView creates a 2D texture from the staging data, uploads the texels and stores
	// a view of it on the provider at the given binding, replacing any previous view.
	//
	// Parameters:
	//   - provider: the BindGroupProvider that receives the texture view
	//   - bindingKey: the binding index of the texture
	//   - stagingData: the texels with their dimensions and format
	//
	// Returns:
	//   - error: an error if the staging data is invalid or texture creation fails
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error

	// Release releases every GPU resource the renderer created.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new headless Renderer with the specified backend type.
// No surface is created, so the Renderer works without a window.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if no adapter or device could be acquired
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		deviceLabel: "Splat Upload Device",
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		b, err := newWGPURendererBackend(r.forceFallbackAdapter, r.deviceLabel)
		if err != nil {
			return nil, fmt.Errorf("renderer: %w", err)
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}
	return r, nil
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.InitTextureView(provider, bindingKey, stagingData)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Release()
}
