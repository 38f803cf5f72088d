package scene

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// packChunk is the smallest number of splats handed to a single worker when packing.
const packChunk = 2048

// Scene owns the decoded splats of one cloud and their packed GPU representation.
//
// The logical arrays (positions, rotations, scales) and the packed main buffer are kept
// consistent by every mutator: position words are rewritten on every move and the
// covariance words are recomputed whenever rotation or scale change.
//
// A Scene is single-owner. Mutators are not safe for concurrent use and must be serialized
// by the caller; slices returned by accessors are borrowed and must not be modified.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetData replaces the whole scene. rows holds consecutive 32-byte splat records and sh
	// holds 48 floats per banded splat as described by bands. Everything is validated before
	// anything is replaced, so a failed call leaves the previous state untouched.
	//
	// Parameters:
	//   - rows: the splat records, a multiple of model.RowLength bytes
	//   - sh: the SH floats of the banded splats, nil when no splat is banded
	//   - bands: the band boundaries over the splat order
	//
	// Returns:
	//   - error: ErrCorruptData when the inputs are inconsistent
	SetData(rows []byte, sh []float32, bands model.BandIndices) error

	// SetCloud is SetData for a decoded cloud.
	//
	// Parameters:
	//   - cloud: the decoded cloud
	//
	// Returns:
	//   - error: ErrCorruptData when the cloud is inconsistent
	SetCloud(cloud *model.ImportedCloud) error

	// Translate moves every splat by delta.
	//
	// Parameters:
	//   - delta: the offset to add to every position
	Translate(delta mgl32.Vec3)

	// Rotate rotates every splat about the origin. Positions are rotated, rotations are
	// left-multiplied by q and covariances are recomputed.
	//
	// Parameters:
	//   - q: the rotation, normalized before use
	Rotate(q mgl32.Quat)

	// Scale multiplies every position and every splat scale per axis and recomputes covariances.
	// Splat scales are multiplied by the magnitude of each factor so they stay positive.
	//
	// Parameters:
	//   - factor: the per-axis scale factor
	Scale(factor mgl32.Vec3)

	// LimitBox removes every splat outside the inclusive box, keeping the relative order of
	// the survivors. Parallel arrays, the packed buffer and the SH buffers are compacted in place.
	//
	// Parameters:
	//   - xMin, xMax, yMin, yMax, zMin, zMax: the box bounds
	//
	// Returns:
	//   - error: ErrInvalidBounds if any min is not smaller than its max
	LimitBox(xMin, xMax, yMin, yMax, zMin, zMax float32) error

	// BakeView replaces the rgb of every banded splat with its SH color seen from eye.
	// The SH data is kept, so baking again from another eye starts from the same terms.
	// Alpha and unbanded splats are left as is.
	//
	// Parameters:
	//   - eye: the viewer position in scene space
	BakeView(eye mgl32.Vec3)

	// OnChange registers a listener invoked synchronously after every mutation.
	//
	// Parameters:
	//   - fn: the listener
	//
	// Returns:
	//   - func(): cancels the registration, safe to call more than once
	OnChange(fn func(Event)) (cancel func())

	// Count returns the number of splats.
	Count() int

	// Width returns the texel width of the packed textures.
	Width() int

	// Height returns the texel height of the main texture, ceil(2*Count/Width).
	Height() int

	// SHHeight returns the texel height of each SH texture, 0 when no splat is banded.
	SHHeight() int

	// Data returns the packed main buffer, Width*Height*4 words.
	Data() []uint32

	// SH returns the packed SH buffer of color channel c (0 red, 1 green, 2 blue), or nil.
	SH(c int) []uint32

	// Positions returns 3 floats per splat.
	Positions() []float32

	// Rotations returns 4 floats per splat in w, x, y, z order.
	Rotations() []float32

	// Scales returns 3 floats per splat.
	Scales() []float32

	// Bands returns the band boundaries over the splat order.
	Bands() model.BandIndices

	// Bounds returns the axis aligned box enclosing every splat position.
	//
	// Returns:
	//   - common.Box: the bounds
	//   - bool: false when the scene is empty
	Bounds() (common.Box, bool)

	// Export writes every splat as a 32-byte row, the layout SetData and .splat files use.
	//
	// Parameters:
	//   - w: the destination
	//
	// Returns:
	//   - error: the first write error
	Export(w io.Writer) error

	// ExportPLY writes the scene as a plain binary PLY that the PLY loader reads back.
	// Higher order SH are written when every splat carries the same band level.
	//
	// Parameters:
	//   - w: the destination
	//
	// Returns:
	//   - error: the first write error
	ExportPLY(w io.Writer) error

	// Upload stages the packed textures on the provider: binding 0 is the main texture,
	// bindings 1 to 3 the red, green and blue SH textures when present. SH bindings left
	// over from a previous upload are cleared. An empty scene uploads nothing.
	//
	// Parameters:
	//   - r: the renderer performing the upload
	//   - provider: the BindGroupProvider receiving the texture views
	//
	// Returns:
	//   - error: the first upload error
	Upload(r renderer.Renderer, provider bind_group_provider.BindGroupProvider) error
}

// scene is the implementation of the Scene interface.
type scene struct {
	name  string
	width int

	count    int
	height   int
	shHeight int

	positions []float32
	rotations []float32
	scales    []float32
	data      []uint32
	sh        [3][]uint32
	bands     model.BandIndices

	listenersMu  sync.Mutex
	listeners    []listener
	nextListener uint64

	// pool runs the per-splat packing loops. Workers persist across calls and
	// exit when idle.
	pool    worker.DynamicWorkerPool
	workers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates an empty Scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:    name,
		width:   model.DefaultTextureWidth,
		workers: max(runtime.NumCPU()-1, 1),
		bands:   model.UniformBands(0, 0),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the pool after options so WithWorkers can override the default.
	s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	return s.name
}

// validateInput checks rows, SH and bands for consistency before anything is allocated.
func validateInput(rows []byte, sh []float32, bands model.BandIndices) (int, int, error) {
	if len(rows)%model.RowLength != 0 {
		return 0, 0, fmt.Errorf("row data is %d bytes, not a multiple of %d: %w", len(rows), model.RowLength, common.ErrCorruptData)
	}
	n := len(rows) / model.RowLength
	if bands[0] < -1 || bands[0] > bands[1] || bands[1] > bands[2] || int(bands[2]) > n-1 {
		return 0, 0, fmt.Errorf("band indices %v do not fit %d splats: %w", bands, n, common.ErrCorruptData)
	}
	shCount := bands.SHCount(n)
	if len(sh) != shCount*model.SHFloatsPerSplat {
		return 0, 0, fmt.Errorf("got %d SH floats for %d banded splats, want %d: %w",
			len(sh), shCount, shCount*model.SHFloatsPerSplat, common.ErrCorruptData)
	}
	return n, shCount, nil
}

func (s *scene) SetData(rows []byte, sh []float32, bands model.BandIndices) error {
	n, shCount, err := validateInput(rows, sh, bands)
	if err != nil {
		return err
	}

	height := common.CeilDiv(model.TexelsPerSplat*n, s.width)
	shHeight := common.CeilDiv(model.TexelsPerSplat*shCount, s.width)

	positions := make([]float32, 3*n)
	rotations := make([]float32, 4*n)
	scales := make([]float32, 3*n)
	data := make([]uint32, s.width*height*4)
	var shBufs [3][]uint32
	if shCount > 0 {
		for c := range shBufs {
			shBufs[c] = make([]uint32, s.width*shHeight*4)
		}
	}

	common.ParallelRange(s.pool, n, packChunk, func(start, end int) {
		for i := start; i < end; i++ {
			r := model.UnmarshalRow(rows[i*model.RowLength : (i+1)*model.RowLength])
			q := model.DequantizeRotation(r.Rotation)

			copy(positions[3*i:3*i+3], r.Position[:])
			copy(scales[3*i:3*i+3], r.Scale[:])
			rotations[4*i+0] = q.W
			rotations[4*i+1] = q.V[0]
			rotations[4*i+2] = q.V[1]
			rotations[4*i+3] = q.V[2]

			data[model.WordsPerSplat*i+7] = binary.LittleEndian.Uint32(r.Color[:])
			packSplat(data, positions, rotations, scales, i)
		}
	})

	if shCount > 0 {
		common.ParallelRange(s.pool, shCount, packChunk, func(start, end int) {
			for k := start; k < end; k++ {
				packSH(shBufs, k, sh[k*model.SHFloatsPerSplat:(k+1)*model.SHFloatsPerSplat])
			}
		})
	}

	s.count, s.height, s.shHeight = n, height, shHeight
	s.positions, s.rotations, s.scales = positions, rotations, scales
	s.data, s.sh, s.bands = data, shBufs, bands

	common.Logger().Info("scene data set", "scene", s.name, "splats", n, "banded", shCount, "height", height)
	s.emit(Event{Kind: EventDataSet, Count: n})
	return nil
}

func (s *scene) SetCloud(cloud *model.ImportedCloud) error {
	if cloud.Count*model.RowLength != len(cloud.Rows) {
		return fmt.Errorf("cloud %q declares %d splats but holds %d bytes: %w", cloud.Name, cloud.Count, len(cloud.Rows), common.ErrCorruptData)
	}
	return s.SetData(cloud.Rows, cloud.SH, cloud.Bands)
}

// packSplat writes the position and covariance words of splat i. The rgba word is left as is.
func packSplat(data []uint32, positions, rotations, scales []float32, i int) {
	w := data[model.WordsPerSplat*i : model.WordsPerSplat*(i+1)]
	w[0] = math.Float32bits(positions[3*i+0])
	w[1] = math.Float32bits(positions[3*i+1])
	w[2] = math.Float32bits(positions[3*i+2])
	w[3] = 0

	q := mgl32.Quat{W: rotations[4*i], V: mgl32.Vec3{rotations[4*i+1], rotations[4*i+2], rotations[4*i+3]}}
	cov := model.PackCovariance(model.Covariance([3]float32{scales[3*i], scales[3*i+1], scales[3*i+2]}, q))
	copy(w[4:7], cov[:])
}

// packSH writes the eight words per channel of banded splat k. Word j of channel c pairs
// coefficient 2j with coefficient 2j+1 of that channel.
func packSH(bufs [3][]uint32, k int, coeffs []float32) {
	for c := range 3 {
		dst := bufs[c][model.SHWordsPerSplat*k : model.SHWordsPerSplat*(k+1)]
		for j := range model.SHWordsPerSplat {
			dst[j] = common.PackHalf2x16(coeffs[6*j+c], coeffs[6*j+3+c])
		}
	}
}

// unpackSH is the inverse of packSH for banded splat k, at half precision.
func unpackSH(bufs [3][]uint32, k int) []float32 {
	coeffs := make([]float32, model.SHFloatsPerSplat)
	for c := range 3 {
		src := bufs[c][model.SHWordsPerSplat*k : model.SHWordsPerSplat*(k+1)]
		for j, w := range src {
			coeffs[6*j+c], coeffs[6*j+3+c] = common.UnpackHalf2x16(w)
		}
	}
	return coeffs
}

func (s *scene) Translate(delta mgl32.Vec3) {
	common.ParallelRange(s.pool, s.count, packChunk, func(start, end int) {
		for i := start; i < end; i++ {
			for a := range 3 {
				s.positions[3*i+a] += delta[a]
				s.data[model.WordsPerSplat*i+a] = math.Float32bits(s.positions[3*i+a])
			}
		}
	})
	s.emit(Event{Kind: EventTranslated, Count: s.count})
}

func (s *scene) Rotate(q mgl32.Quat) {
	q = model.NormalizeRotation(q)
	common.ParallelRange(s.pool, s.count, packChunk, func(start, end int) {
		for i := start; i < end; i++ {
			p := q.Rotate(mgl32.Vec3{s.positions[3*i], s.positions[3*i+1], s.positions[3*i+2]})
			copy(s.positions[3*i:3*i+3], p[:])

			r := mgl32.Quat{W: s.rotations[4*i], V: mgl32.Vec3{s.rotations[4*i+1], s.rotations[4*i+2], s.rotations[4*i+3]}}
			r = model.NormalizeRotation(q.Mul(r))
			s.rotations[4*i+0] = r.W
			s.rotations[4*i+1] = r.V[0]
			s.rotations[4*i+2] = r.V[1]
			s.rotations[4*i+3] = r.V[2]

			packSplat(s.data, s.positions, s.rotations, s.scales, i)
		}
	})
	s.emit(Event{Kind: EventRotated, Count: s.count})
}

func (s *scene) Scale(factor mgl32.Vec3) {
	abs := mgl32.Vec3{float32(math.Abs(float64(factor[0]))), float32(math.Abs(float64(factor[1]))), float32(math.Abs(float64(factor[2])))}
	common.ParallelRange(s.pool, s.count, packChunk, func(start, end int) {
		for i := start; i < end; i++ {
			for a := range 3 {
				s.positions[3*i+a] *= factor[a]
				s.scales[3*i+a] *= abs[a]
			}
			packSplat(s.data, s.positions, s.rotations, s.scales, i)
		}
	})
	s.emit(Event{Kind: EventScaled, Count: s.count})
}

func (s *scene) LimitBox(xMin, xMax, yMin, yMax, zMin, zMax float32) error {
	box := common.NewBox(xMin, xMax, yMin, yMax, zMin, zMax)
	if err := box.Validate(); err != nil {
		return err
	}

	keep := make([]bool, s.count)
	common.ParallelRange(s.pool, s.count, packChunk, func(start, end int) {
		for i := start; i < end; i++ {
			keep[i] = box.Contains(s.positions[3*i], s.positions[3*i+1], s.positions[3*i+2])
		}
	})

	first := s.bands.FirstBanded()
	write, shWrite := 0, 0
	for read := 0; read < s.count; read++ {
		if !keep[read] {
			continue
		}
		if read != write {
			copy(s.positions[3*write:3*write+3], s.positions[3*read:3*read+3])
			copy(s.rotations[4*write:4*write+4], s.rotations[4*read:4*read+4])
			copy(s.scales[3*write:3*write+3], s.scales[3*read:3*read+3])
			copy(s.data[model.WordsPerSplat*write:model.WordsPerSplat*(write+1)], s.data[model.WordsPerSplat*read:model.WordsPerSplat*(read+1)])
		}
		if read >= first {
			shRead := read - first
			if shRead != shWrite {
				for c := range s.sh {
					copy(s.sh[c][model.SHWordsPerSplat*shWrite:model.SHWordsPerSplat*(shWrite+1)],
						s.sh[c][model.SHWordsPerSplat*shRead:model.SHWordsPerSplat*(shRead+1)])
				}
			}
			shWrite++
		}
		write++
	}

	removed := s.count - write
	s.bands = s.bands.Compact(s.count, func(i int) bool { return keep[i] })
	s.count = write
	s.height = common.CeilDiv(model.TexelsPerSplat*write, s.width)
	s.shHeight = common.CeilDiv(model.TexelsPerSplat*shWrite, s.width)

	s.positions = s.positions[:3*write]
	s.rotations = s.rotations[:4*write]
	s.scales = s.scales[:3*write]
	s.data = truncateWords(s.data, model.WordsPerSplat*write, s.width*s.height*4)
	for c := range s.sh {
		if shWrite == 0 {
			s.sh[c] = nil
			continue
		}
		s.sh[c] = truncateWords(s.sh[c], model.SHWordsPerSplat*shWrite, s.width*s.shHeight*4)
	}

	common.Logger().Info("scene clipped", "scene", s.name, "kept", write, "removed", removed)
	s.emit(Event{Kind: EventClipped, Count: write, Removed: removed})
	return nil
}

// truncateWords zeroes buf past used and shortens it to size words.
func truncateWords(buf []uint32, used, size int) []uint32 {
	clear(buf[used:])
	return buf[:size]
}

func (s *scene) Count() int {
	return s.count
}

func (s *scene) Width() int {
	return s.width
}

func (s *scene) Height() int {
	return s.height
}

func (s *scene) SHHeight() int {
	return s.shHeight
}

func (s *scene) Data() []uint32 {
	return s.data
}

func (s *scene) SH(c int) []uint32 {
	if c < 0 || c >= len(s.sh) {
		return nil
	}
	return s.sh[c]
}

func (s *scene) Positions() []float32 {
	return s.positions
}

func (s *scene) Rotations() []float32 {
	return s.rotations
}

func (s *scene) Scales() []float32 {
	return s.scales
}

func (s *scene) Bands() model.BandIndices {
	return s.bands
}

func (s *scene) Bounds() (common.Box, bool) {
	if s.count == 0 {
		return common.Box{}, false
	}
	b := common.Box{
		Min: [3]float32{s.positions[0], s.positions[1], s.positions[2]},
		Max: [3]float32{s.positions[0], s.positions[1], s.positions[2]},
	}
	for i := 1; i < s.count; i++ {
		for a := range 3 {
			v := s.positions[3*i+a]
			b.Min[a] = min(b.Min[a], v)
			b.Max[a] = max(b.Max[a], v)
		}
	}
	return b, true
}
