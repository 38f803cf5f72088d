package scene

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithWidth sets the texel width of the packed textures. Every splat takes two texels, so
// odd widths are rounded up to the next even number. Defaults to model.DefaultTextureWidth.
//
// Parameters:
//   - width: the texture width in texels (minimum 2)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWidth(width int) SceneBuilderOption {
	return func(s *scene) {
		width = max(width, 2)
		s.width = width + width%2
	}
}

// WithWorkers sets the number of worker goroutines used by the parallel packing loops.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithListener registers a change listener at construction.
//
// Parameters:
//   - fn: the listener
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithListener(fn func(Event)) SceneBuilderOption {
	return func(s *scene) {
		s.OnChange(fn)
	}
}
