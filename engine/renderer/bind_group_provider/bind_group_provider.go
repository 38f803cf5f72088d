package bind_group_provider

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// textureViews holds the GPU texture views created for this provider, keyed by binding index.
	// They are populated by the Renderer during upload, not by user-creation, and must be
	// released when no longer needed.
	textureViews map[int]*wgpu.TextureView
}

// BindGroupProvider holds the GPU texture views a splat scene uploads, keyed by binding.
// A rendering pipeline builds its bind group from these views.
//
// Usage pattern:
//  1. Create a BindGroupProvider with a unique label
//  2. Call Scene.Upload(renderer, provider) to stage the packed textures
//  3. Read TextureView(binding) when creating the bind group for draw calls
//  4. Release the provider when the scene is discarded
type BindGroupProvider interface {
	// Release releases every texture view held by this provider and removes it from the map.
	Release()

	// Label returns the debug label for this provider.
	// Used for debugging and profiling purposes.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// TextureView returns the GPU texture view for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// TextureViews returns a map of all texture views associated with this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.TextureView: a map of texture views keyed by binding index
	TextureViews() map[int]*wgpu.TextureView

	// Bindings returns the binding indices that hold a texture view, in ascending order.
	//
	// Returns:
	//   - []int: the populated bindings
	Bindings() []int

	// SetTextureView sets the texture view for a specific binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view to associate with this binding
	SetTextureView(binding int, tv *wgpu.TextureView)

	// ClearTextureView releases and removes the texture view at a binding, if any.
	//
	// Parameters:
	//   - binding: the binding index
	ClearTextureView(binding int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the given label and options.
//
// Parameters:
//   - label: a debug label for the provider
//   - options: functional options to configure the provider
//
// Returns:
//   - BindGroupProvider: the newly created provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		textureViews: make(map[int]*wgpu.TextureView),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) TextureViews() map[int]*wgpu.TextureView {
	return p.textureViews
}

func (p *bindGroupProvider) Bindings() []int {
	bindings := make([]int, 0, len(p.textureViews))
	for b, tv := range p.textureViews {
		if tv != nil {
			bindings = append(bindings, b)
		}
	}
	sort.Ints(bindings)
	return bindings
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	if p.textureViews == nil {
		p.textureViews = make(map[int]*wgpu.TextureView)
	}
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) ClearTextureView(binding int) {
	if tv := p.textureViews[binding]; tv != nil {
		tv.Release()
	}
	delete(p.textureViews, binding)
}

func (p *bindGroupProvider) Release() {
	for i, tv := range p.textureViews {
		if tv != nil {
			tv.Release()
		}
		delete(p.textureViews, i)
	}
}
