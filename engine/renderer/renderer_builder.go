package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Useful on CI machines without a GPU.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithDeviceLabel sets the debug label of the GPU device.
//
// Parameters:
//   - label: the device label, defaults to "Splat Upload Device"
//
// Returns:
//   - RendererBuilderOption: a function that applies the label option to a renderer
func WithDeviceLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.deviceLabel = label
	}
}
