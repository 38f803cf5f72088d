package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
	"github.com/Carmen-Shannon/oxy-splat/engine/profiler"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
)

// Profiler stage names recorded by a load.
const (
	StageRead       = "read"
	StageDecompress = "decompress"
	StageDecode     = "decode"
	StagePack       = "pack"
)

// loader is the implementation of the Loader interface.
type loader struct {
	format    string
	sh        bool
	quantized bool
	progress  ProgressFunc
	profiler  *profiler.Profiler
	client    *http.Client

	workers int
	pool    worker.DynamicWorkerPool

	loading atomic.Bool

	ply   loaderBackend
	splat loaderBackend
}

// Loader reads scene files and hands the decoded splats to a Scene.
// It abstracts the file format (PLY, .splat, optionally zstd compressed) behind backends
// chosen by file extension.
//
// One load runs at a time per Loader. A failed load never touches the target scene.
type Loader interface {
	// Load reads a local scene file into s.
	//
	// Parameters:
	//   - ctx: cancels the read
	//   - path: the file path; .ply, .splat, with an optional .zst suffix
	//   - s: the scene receiving the splats
	//
	// Returns:
	//   - error: ErrLoadInProgress, an I/O error, or a wrapped decode sentinel
	Load(ctx context.Context, path string, s scene.Scene) error

	// LoadURL downloads a scene file into s. The backend is chosen from the URL path.
	//
	// Parameters:
	//   - ctx: cancels the request
	//   - rawURL: the address of the file
	//   - s: the scene receiving the splats
	//
	// Returns:
	//   - error: ErrLoadInProgress, a transport error, or a wrapped decode sentinel
	LoadURL(ctx context.Context, rawURL string, s scene.Scene) error

	// LoadReader reads a scene from a stream. name selects the backend by extension
	// and becomes the cloud name.
	//
	// Parameters:
	//   - ctx: cancels the read
	//   - name: the file name of the stream
	//   - r: the reader providing the file contents
	//   - size: the expected byte count, 0 when unknown
	//   - s: the scene receiving the splats
	//
	// Returns:
	//   - error: ErrLoadInProgress, a read error, or a wrapped decode sentinel
	LoadReader(ctx context.Context, name string, r io.Reader, size int64, s scene.Scene) error

	// LoadBytes decodes in-memory file contents into s.
	//
	// Parameters:
	//   - name: the file name of the contents
	//   - data: the file contents
	//   - s: the scene receiving the splats
	//
	// Returns:
	//   - error: ErrLoadInProgress or a wrapped decode sentinel
	LoadBytes(name string, data []byte, s scene.Scene) error

	// Decode turns file contents into a cloud without touching any scene.
	//
	// Parameters:
	//   - name: the file name of the contents
	//   - data: the file contents
	//
	// Returns:
	//   - *model.ImportedCloud: the decoded cloud
	//   - error: a wrapped decode sentinel
	Decode(name string, data []byte) (*model.ImportedCloud, error)

	// Loading reports whether a load is running.
	Loading() bool
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the configured loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		format:  FormatNone,
		sh:      true,
		client:  http.DefaultClient,
		workers: max(runtime.NumCPU()-1, 1),
		ply:     newPlyLoaderBackend(),
		splat:   newSplatLoaderBackend(),
	}

	for _, option := range options {
		option(l)
	}

	l.pool = worker.NewDynamicWorkerPool(l.workers, 256, 1*time.Second)
	return l
}

func (l *loader) Loading() bool {
	return l.loading.Load()
}

// begin claims the loading flag and checks the configured format before any I/O.
func (l *loader) begin() error {
	if !l.loading.CompareAndSwap(false, true) {
		return common.ErrLoadInProgress
	}
	if err := ValidateFormat(l.format); err != nil {
		l.loading.Store(false)
		return err
	}
	return nil
}

func (l *loader) Load(ctx context.Context, path string, s scene.Scene) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer l.loading.Store(false)

	f, size, err := openFile(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return l.load(ctx, filepath.Base(path), f, size, s)
}

func (l *loader) LoadURL(ctx context.Context, rawURL string, s scene.Scene) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer l.loading.Store(false)

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	body, size, err := openURL(ctx, l.client, rawURL)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer body.Close()

	return l.load(ctx, path.Base(u.Path), body, size, s)
}

func (l *loader) LoadReader(ctx context.Context, name string, r io.Reader, size int64, s scene.Scene) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer l.loading.Store(false)

	return l.load(ctx, name, r, size, s)
}

func (l *loader) LoadBytes(name string, data []byte, s scene.Scene) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer l.loading.Store(false)

	return l.apply(name, data, s)
}

// load reads the whole stream and applies it. The caller holds the loading flag.
func (l *loader) load(ctx context.Context, name string, r io.Reader, size int64, s scene.Scene) error {
	l.profiler.Begin(StageRead)
	data, err := readAll(ctx, r, size, l.progress)
	l.profiler.End()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	common.Logger().Debug("scene file read", "name", name, "bytes", len(data))
	return l.apply(name, data, s)
}

// apply decodes data and replaces the contents of s.
func (l *loader) apply(name string, data []byte, s scene.Scene) error {
	start := time.Now()
	cloud, err := l.Decode(name, data)
	if err != nil {
		return err
	}

	l.profiler.Begin(StagePack)
	err = s.SetCloud(cloud)
	l.profiler.End()
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}

	common.Logger().Info("scene loaded", "name", cloud.Name, "splats", cloud.Count,
		"banded", cloud.SHCount(), "elapsed", time.Since(start))
	return nil
}

func (l *loader) Decode(name string, data []byte) (*model.ImportedCloud, error) {
	if err := ValidateFormat(l.format); err != nil {
		return nil, err
	}

	l.profiler.Begin(StageDecompress)
	name, data, err := decompress(name, data)
	l.profiler.End()
	if err != nil {
		return nil, err
	}

	backend, err := l.resolveBackend(name, data)
	if err != nil {
		return nil, err
	}

	l.profiler.Begin(StageDecode)
	cloud, err := backend.Decode(strings.TrimSuffix(name, filepath.Ext(name)), data, decodeOptions{
		format:    l.format,
		sh:        l.sh,
		quantized: l.quantized,
		pool:      l.pool,
	})
	l.profiler.End()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return cloud, nil
}

// resolveBackend selects a backend from the file extension. Streams without a known
// extension are sniffed for the PLY magic line.
func (l *loader) resolveBackend(name string, data []byte) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".ply":
		return l.ply, nil
	case ".splat":
		return l.splat, nil
	}
	if bytes.HasPrefix(data, []byte(plyMagic)) {
		return l.ply, nil
	}
	return nil, fmt.Errorf("unsupported scene file %q: %w", name, common.ErrInvalidFormat)
}
