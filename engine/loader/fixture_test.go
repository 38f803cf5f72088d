package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// testColumn is one property of a fixture element.
type testColumn struct {
	typ  string
	name string
}

// testElement is an element of a fixture file with its already encoded rows.
type testElement struct {
	name  string
	count int
	cols  []testColumn
	rows  []byte
}

// buildPly assembles a binary little endian PLY from elements.
func buildPly(elements ...testElement) []byte {
	var b bytes.Buffer
	b.WriteString("ply\nformat binary_little_endian 1.0\ncomment fixture\n")
	for _, e := range elements {
		fmt.Fprintf(&b, "element %s %d\n", e.name, e.count)
		for _, c := range e.cols {
			fmt.Fprintf(&b, "property %s %s\n", c.typ, c.name)
		}
	}
	b.WriteString("end_header\n")
	for _, e := range elements {
		b.Write(e.rows)
	}
	return b.Bytes()
}

func floatColumns(names ...string) []testColumn {
	cols := make([]testColumn, len(names))
	for i, n := range names {
		cols[i] = testColumn{typ: "float", name: n}
	}
	return cols
}

func restNames(count int) []string {
	names := make([]string, count)
	for n := range names {
		names[n] = "f_rest_" + strconv.Itoa(n)
	}
	return names
}

// rowWriter encodes little endian scalars into a row buffer.
type rowWriter struct {
	bytes.Buffer
}

func (w *rowWriter) f32(values ...float32) *rowWriter {
	for _, v := range values {
		binary.Write(&w.Buffer, binary.LittleEndian, math.Float32bits(v))
	}
	return w
}

func (w *rowWriter) half(values ...float32) *rowWriter {
	for _, v := range values {
		binary.Write(&w.Buffer, binary.LittleEndian, common.FloatToHalf(v))
	}
	return w
}

func (w *rowWriter) u8(values ...uint8) *rowWriter {
	w.Write(values)
	return w
}

var plainNames = []string{
	"x", "y", "z",
	"f_dc_0", "f_dc_1", "f_dc_2",
	"opacity",
	"scale_0", "scale_1", "scale_2",
	"rot_0", "rot_1", "rot_2", "rot_3",
}

// plainVertex is one splat of a plain fixture in file units.
type plainVertex struct {
	pos     [3]float32
	dc      [3]float32
	opacity float32
	scale   [3]float32 // log scale
	rot     [4]float32
	rest    []float32
}

func unitVertex(x, y, z float32) plainVertex {
	return plainVertex{pos: [3]float32{x, y, z}, rot: [4]float32{1, 0, 0, 0}}
}

// plainPly builds a plain PLY whose vertices all carry restCount higher order terms.
func plainPly(restCount int, vertices ...plainVertex) []byte {
	names := append(append([]string{}, plainNames...), restNames(restCount)...)
	var w rowWriter
	for _, v := range vertices {
		w.f32(v.pos[:]...).f32(v.dc[:]...).f32(v.opacity).f32(v.scale[:]...).f32(v.rot[:]...)
		rest := make([]float32, restCount)
		copy(rest, v.rest)
		w.f32(rest...)
	}
	return buildPly(testElement{name: "vertex", count: len(vertices), cols: floatColumns(names...), rows: w.Bytes()})
}

var quantizedCodebooks = []string{
	"scaling", "rotation_re", "rotation_im", "features_dc", "opacity",
	"features_rest_0", "features_rest_1", "features_rest_2", "features_rest_3", "features_rest_4",
	"features_rest_5", "features_rest_6", "features_rest_7", "features_rest_8", "features_rest_9",
	"features_rest_10", "features_rest_11", "features_rest_12", "features_rest_13", "features_rest_14",
}

// codebookValue is the center stored at index i of every fixture codebook.
func codebookValue(i int) float32 {
	return float32(i) / 4
}

// quantizedPly builds a quantized PLY with one splat per tier. Splat k sits at (k+0.5, 0, 0),
// has identity rotation, unit scale and f_rest_n set to index n.
func quantizedPly() []byte {
	var elements []testElement
	for k := range 4 {
		stride := []int{0, 3, 8, 15}[k]
		cols := []testColumn{{"short", "x"}, {"short", "y"}, {"short", "z"}}
		for _, n := range []string{"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3", "f_dc_0", "f_dc_1", "f_dc_2", "opacity"} {
			cols = append(cols, testColumn{"uchar", n})
		}
		for _, n := range restNames(3 * stride) {
			cols = append(cols, testColumn{"uchar", n})
		}

		var w rowWriter
		w.half(float32(k)+0.5, 0, 0)
		w.u8(0, 0, 0) // scale index 0: log scale 0
		w.u8(4, 0, 0, 0)
		w.u8(0, 0, 0, 0)
		for n := range 3 * stride {
			w.u8(uint8(n))
		}
		elements = append(elements, testElement{name: "vertex_" + strconv.Itoa(k), count: 1, cols: cols, rows: w.Bytes()})
	}

	cbCols := make([]testColumn, len(quantizedCodebooks))
	for j, n := range quantizedCodebooks {
		cbCols[j] = testColumn{"short", n}
	}
	var w rowWriter
	for i := range CodebookSize {
		for range quantizedCodebooks {
			w.half(codebookValue(i))
		}
	}
	elements = append(elements, testElement{name: "codebook_centers", count: CodebookSize, cols: cbCols, rows: w.Bytes()})
	return buildPly(elements...)
}
