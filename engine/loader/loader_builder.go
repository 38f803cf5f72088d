package loader

import (
	"net/http"

	"github.com/Carmen-Shannon/oxy-splat/engine/profiler"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithFormat is an option builder that sets the format transform applied to PLY splats.
// Unknown names make every load fail with ErrUnsupportedFormat.
//
// Parameters:
//   - format: FormatNone or FormatPolycam
//
// Returns:
//   - LoaderBuilderOption: a function that applies the format option to a loader
func WithFormat(format string) LoaderBuilderOption {
	return func(l *loader) {
		l.format = format
	}
}

// WithSphericalHarmonics is an option builder that toggles higher order SH decoding.
// When disabled every splat is loaded at band 0. Defaults to enabled.
//
// Parameters:
//   - enabled: whether SH are kept
//
// Returns:
//   - LoaderBuilderOption: a function that applies the SH option to a loader
func WithSphericalHarmonics(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.sh = enabled
	}
}

// WithQuantized is an option builder that forces the quantized PLY path. Without it the
// path is chosen by looking for tiered vertex elements in the header.
//
// Parameters:
//   - forced: whether every PLY is decoded as quantized
//
// Returns:
//   - LoaderBuilderOption: a function that applies the quantized option to a loader
func WithQuantized(forced bool) LoaderBuilderOption {
	return func(l *loader) {
		l.quantized = forced
	}
}

// WithProgress is an option builder that sets the transfer progress callback.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - LoaderBuilderOption: a function that applies the progress option to a loader
func WithProgress(fn ProgressFunc) LoaderBuilderOption {
	return func(l *loader) {
		l.progress = fn
	}
}

// WithProfiler is an option builder that records load stages on p.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - LoaderBuilderOption: a function that applies the profiler option to a loader
func WithProfiler(p *profiler.Profiler) LoaderBuilderOption {
	return func(l *loader) {
		l.profiler = p
	}
}

// WithWorkers is an option builder that sets the number of decode workers.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(n, 1)
	}
}

// WithHTTPClient is an option builder that sets the client used by LoadURL.
// Defaults to http.DefaultClient.
//
// Parameters:
//   - client: the HTTP client
//
// Returns:
//   - LoaderBuilderOption: a function that applies the client option to a loader
func WithHTTPClient(client *http.Client) LoaderBuilderOption {
	return func(l *loader) {
		if client != nil {
			l.client = client
		}
	}
}
