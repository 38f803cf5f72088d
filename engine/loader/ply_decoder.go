package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
	"github.com/Carmen-Shannon/oxy-splat/engine/sh"
	"github.com/go-gl/mathgl/mgl32"
)

// Format transforms applied to decoded splats.
const (
	FormatNone    = ""
	FormatPolycam = "polycam"
)

// decodeChunk is the smallest number of rows handed to a single worker.
const decodeChunk = 4096

// polycamRotation turns a polycam capture upright: a quarter turn about X.
var polycamRotation = mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0})

// ValidateFormat reports whether format names a supported transform.
//
// Parameters:
//   - format: the transform name
//
// Returns:
//   - error: ErrUnsupportedFormat for unknown names
func ValidateFormat(format string) error {
	switch format {
	case FormatNone, FormatPolycam:
		return nil
	default:
		return fmt.Errorf("format %q: %w", format, common.ErrUnsupportedFormat)
	}
}

// scalarReader reads one attribute value from an element row.
type scalarReader func(row []byte) float32

// plainReader returns a reader converting the property's scalar type to float32.
func plainReader(p PlyProperty) scalarReader {
	off := p.Offset
	switch p.Type {
	case PlyTypeChar:
		return func(row []byte) float32 { return float32(int8(row[off])) }
	case PlyTypeUChar:
		return func(row []byte) float32 { return float32(row[off]) }
	case PlyTypeShort:
		return func(row []byte) float32 { return float32(int16(binary.LittleEndian.Uint16(row[off:]))) }
	case PlyTypeUShort:
		return func(row []byte) float32 { return float32(binary.LittleEndian.Uint16(row[off:])) }
	case PlyTypeInt:
		return func(row []byte) float32 { return float32(int32(binary.LittleEndian.Uint32(row[off:]))) }
	case PlyTypeUInt:
		return func(row []byte) float32 { return float32(binary.LittleEndian.Uint32(row[off:])) }
	case PlyTypeDouble:
		return func(row []byte) float32 { return float32(math.Float64frombits(binary.LittleEndian.Uint64(row[off:]))) }
	default:
		return func(row []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(row[off:])) }
	}
}

// halfReader returns a reader decoding a 16-bit property as a half float.
func halfReader(p PlyProperty) (scalarReader, error) {
	if p.Type != PlyTypeShort && p.Type != PlyTypeUShort {
		return nil, fmt.Errorf("property %q is %s, want a 16-bit half: %w", p.Name, p.Type, common.ErrUnsupportedType)
	}
	off := p.Offset
	return func(row []byte) float32 {
		return common.DecodeFloat16(binary.LittleEndian.Uint16(row[off:]))
	}, nil
}

// codebookReader returns a reader resolving a byte index through cb.
func codebookReader(p PlyProperty, cb *Codebook) (scalarReader, error) {
	if p.Type.Size() != 1 {
		return nil, fmt.Errorf("quantized property %q is %s, want a byte index: %w", p.Name, p.Type, common.ErrUnsupportedType)
	}
	off := p.Offset
	return func(row []byte) float32 { return cb.Values[row[off]] }, nil
}

// tierLayout describes how to decode one run of splats sharing a property layout and band level.
// Plain files have a single tier, quantized files four.
type tierLayout struct {
	name     string
	count    int
	stride   int
	data     []byte // count*stride bytes of rows
	band     int
	shStride int

	position [3]scalarReader
	scale    [3]scalarReader // log scale
	rotation [4]scalarReader // w, x, y, z
	dc       [3]scalarReader // nil when color comes from rgb
	rgb      [3]scalarReader
	opacity  scalarReader
	rest     []scalarReader
}

// sliceElement returns the rows of e at offset, checking they fit in data.
func sliceElement(e *PlyElement, data []byte, offset int) ([]byte, error) {
	if offset < 0 || offset > len(data) || e.Count > 0 && (e.Stride == 0 || e.Count > (len(data)-offset)/e.Stride) {
		return nil, fmt.Errorf("element %q declares %d rows of %d bytes, only %d bytes follow: %w",
			e.Name, e.Count, e.Stride, max(len(data)-offset, 0), common.ErrCorruptData)
	}
	return data[offset : offset+e.Size()], nil
}

func requireAll(e *PlyElement, names ...string) ([]PlyProperty, error) {
	props := make([]PlyProperty, len(names))
	for i, name := range names {
		p, err := e.Require(name)
		if err != nil {
			return nil, err
		}
		props[i] = p
	}
	return props, nil
}

func hasAll(e *PlyElement, names ...string) bool {
	for _, name := range names {
		if _, ok := e.Property(name); !ok {
			return false
		}
	}
	return true
}

// plainTier builds the layout of a plain PLY's vertex element.
//
// Parameters:
//   - h: the parsed header
//   - data: the file contents
//
// Returns:
//   - *tierLayout: the single tier of the file
//   - error: ErrCorruptData for missing properties, unsupported SH counts or truncated data
func plainTier(h *PlyHeader, data []byte) (*tierLayout, error) {
	e := h.Element(plyVertexElement)
	if e == nil {
		return nil, fmt.Errorf("no %q element: %w", plyVertexElement, common.ErrCorruptData)
	}
	offset, _ := h.ElementOffset(plyVertexElement)
	rows, err := sliceElement(e, data, offset)
	if err != nil {
		return nil, err
	}

	t := &tierLayout{name: e.Name, count: e.Count, stride: e.Stride, data: rows}

	pos, err := requireAll(e, "x", "y", "z")
	if err != nil {
		return nil, err
	}
	scale, err := requireAll(e, "scale_0", "scale_1", "scale_2")
	if err != nil {
		return nil, err
	}
	rot, err := requireAll(e, "rot_0", "rot_1", "rot_2", "rot_3")
	if err != nil {
		return nil, err
	}
	for i := range 3 {
		t.position[i] = plainReader(pos[i])
		t.scale[i] = plainReader(scale[i])
	}
	for i := range 4 {
		t.rotation[i] = plainReader(rot[i])
	}

	switch {
	case hasAll(e, "f_dc_0", "f_dc_1", "f_dc_2"):
		dc, _ := requireAll(e, "f_dc_0", "f_dc_1", "f_dc_2")
		for i := range 3 {
			t.dc[i] = plainReader(dc[i])
		}
	case hasAll(e, "red", "green", "blue"):
		rgb, _ := requireAll(e, "red", "green", "blue")
		for i := range 3 {
			t.rgb[i] = plainReader(rgb[i])
		}
	default:
		return nil, fmt.Errorf("element %q has neither f_dc_0..2 nor red/green/blue: %w", e.Name, common.ErrCorruptData)
	}
	opacity, err := e.Require("opacity")
	if err != nil {
		return nil, err
	}
	t.opacity = plainReader(opacity)

	restCount := e.CountPrefix("f_rest_")
	t.band = sh.DegreeForRest(restCount)
	if t.band < 0 {
		return nil, fmt.Errorf("element %q has %d f_rest properties, want 0, 9, 24 or 45: %w", e.Name, restCount, common.ErrCorruptData)
	}
	t.shStride = model.SHStride(t.band)
	t.rest = make([]scalarReader, restCount)
	for n := range restCount {
		p, err := e.Require("f_rest_" + strconv.Itoa(n))
		if err != nil {
			return nil, err
		}
		t.rest[n] = plainReader(p)
	}
	return t, nil
}

// quantizedTiers builds the four tier layouts of a quantized PLY, tier k carrying band k.
//
// Parameters:
//   - h: the parsed header
//   - data: the file contents
//
// Returns:
//   - []*tierLayout: the four tiers in file order
//   - error: ErrInvalidFormat, ErrUnsupportedType or ErrCorruptData describing the first problem found
func quantizedTiers(h *PlyHeader, data []byte) ([]*tierLayout, error) {
	layout, err := partitionQuantized(h)
	if err != nil {
		return nil, err
	}
	tierRows := make([][]byte, plyQuantizedTiers)
	for k, e := range layout.tiers {
		if tierRows[k], err = sliceElement(e, data, layout.tierOffsets[k]); err != nil {
			return nil, err
		}
	}
	cbs, err := readCodebooks(layout.codebook, data, layout.cbOffset)
	if err != nil {
		return nil, err
	}
	common.Logger().Debug("quantized layout", "tier_counts", layout.counts(), "codebooks", cbs.Names())

	scaling, err := cbs.Get(codebookScaling)
	if err != nil {
		return nil, err
	}
	rotRe, err := cbs.Get(codebookRotationRe)
	if err != nil {
		return nil, err
	}
	rotIm, err := cbs.Get(codebookRotationIm)
	if err != nil {
		return nil, err
	}
	featuresDC, err := cbs.Get(codebookFeaturesDC)
	if err != nil {
		return nil, err
	}
	opacity, err := cbs.Get(codebookOpacity)
	if err != nil {
		return nil, err
	}

	tiers := make([]*tierLayout, 0, plyQuantizedTiers)
	for k, e := range layout.tiers {
		t := &tierLayout{name: e.Name, count: e.Count, stride: e.Stride, data: tierRows[k], band: k, shStride: model.SHStride(k)}

		pos, err := requireAll(e, "x", "y", "z")
		if err != nil {
			return nil, err
		}
		for i, p := range pos {
			if t.position[i], err = halfReader(p); err != nil {
				return nil, err
			}
		}

		bindings := []struct {
			dst   *scalarReader
			name  string
			table *Codebook
		}{
			{&t.scale[0], "scale_0", scaling},
			{&t.scale[1], "scale_1", scaling},
			{&t.scale[2], "scale_2", scaling},
			{&t.rotation[0], "rot_0", rotRe},
			{&t.rotation[1], "rot_1", rotIm},
			{&t.rotation[2], "rot_2", rotIm},
			{&t.rotation[3], "rot_3", rotIm},
			{&t.dc[0], "f_dc_0", featuresDC},
			{&t.dc[1], "f_dc_1", featuresDC},
			{&t.dc[2], "f_dc_2", featuresDC},
			{&t.opacity, "opacity", opacity},
		}
		for _, b := range bindings {
			p, err := e.Require(b.name)
			if err != nil {
				return nil, err
			}
			if *b.dst, err = codebookReader(p, b.table); err != nil {
				return nil, err
			}
		}

		t.rest = make([]scalarReader, 3*t.shStride)
		for n := range t.rest {
			p, err := e.Require("f_rest_" + strconv.Itoa(n))
			if err != nil {
				return nil, err
			}
			cb, err := cbs.Get(codebookFeaturesRest + strconv.Itoa(n%t.shStride))
			if err != nil {
				return nil, err
			}
			if t.rest[n], err = codebookReader(p, cb); err != nil {
				return nil, err
			}
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

// decodeOptions carries the per-load settings of the decoder.
type decodeOptions struct {
	format    string
	sh        bool
	quantized bool // decode as quantized even without tiered elements
	pool      worker.DynamicWorkerPool
}

// decodeTiers runs the shared per-splat pipeline over every tier and assembles the cloud.
// All layouts are validated before this is called, so it only allocates and fills.
//
// Parameters:
//   - name: the name of the resulting cloud
//   - tiers: the tier layouts in splat order
//   - opts: the decode options
//
// Returns:
//   - *model.ImportedCloud: the decoded cloud
func decodeTiers(name string, tiers []*tierLayout, opts decodeOptions) *model.ImportedCloud {
	var counts [4]int
	total := 0
	for _, t := range tiers {
		total += t.count
		if opts.sh {
			counts[t.band] += t.count
		} else {
			counts[0] += t.count
		}
	}
	bands := model.TierBands(counts)
	shCount := bands.SHCount(total)

	cloud := &model.ImportedCloud{
		Name:  name,
		Count: total,
		Rows:  make([]byte, total*model.RowLength),
		Bands: bands,
	}
	if shCount > 0 {
		cloud.SH = make([]float32, shCount*model.SHFloatsPerSplat)
	}

	polycam := opts.format == FormatPolycam
	base, shBase := 0, 0
	for _, t := range tiers {
		withSH := opts.sh && t.band > 0
		tierBase, tierSHBase := base, shBase
		common.ParallelRange(opts.pool, t.count, decodeChunk, func(start, end int) {
			for i := start; i < end; i++ {
				var out []float32
				if withSH {
					at := (tierSHBase + i) * model.SHFloatsPerSplat
					out = cloud.SH[at : at+model.SHFloatsPerSplat]
				}
				at := (tierBase + i) * model.RowLength
				t.decodeSplat(t.data[i*t.stride:(i+1)*t.stride], cloud.Rows[at:at+model.RowLength], out, polycam)
			}
		})
		base += t.count
		if withSH {
			shBase += t.count
		}
	}
	return cloud
}

// decodeSplat decodes one row into its 32-byte record and, when sh is non-nil, its 48 SH floats.
func (t *tierLayout) decodeSplat(src, dst []byte, shOut []float32, polycam bool) {
	var r model.Row

	for i := range 3 {
		r.Position[i] = t.position[i](src)
		r.Scale[i] = float32(math.Exp(float64(t.scale[i](src))))
	}

	q := mgl32.Quat{
		W: t.rotation[0](src),
		V: mgl32.Vec3{t.rotation[1](src), t.rotation[2](src), t.rotation[3](src)},
	}
	if polycam {
		r.Position[1], r.Position[2] = -r.Position[2], r.Position[1]
		q = polycamRotation.Mul(q)
	}
	r.Rotation = model.QuantizeRotation(model.NormalizeRotation(q))

	var dc [3]float32
	for i := range 3 {
		if t.dc[i] != nil {
			dc[i] = t.dc[i](src)
			r.Color[i] = common.ClampByte(float64(sh.SHToRGB(dc[i])) * 255)
		} else {
			v := t.rgb[i](src)
			r.Color[i] = common.ClampByte(float64(v))
			dc[i] = sh.RGBToSH(float32(r.Color[i]) / 255)
		}
	}
	r.Color[3] = common.ClampByte(common.Sigmoid(float64(t.opacity(src))) * 255)
	r.MarshalTo(dst)

	if shOut == nil {
		return
	}
	copy(shOut[:3], dc[:])
	for n, read := range t.rest {
		shOut[model.SHSlot(n, t.shStride)] = read(src)
	}
}
