package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlyHeader(t *testing.T) {
	data := buildPly(
		testElement{name: "vertex", count: 2, cols: []testColumn{{"float", "x"}, {"uchar", "red"}, {"double", "d"}}, rows: make([]byte, 26)},
		testElement{name: "extra", count: 3, cols: []testColumn{{"ushort", "v"}}, rows: make([]byte, 6)},
	)

	h, err := ParsePlyHeader(data)
	require.NoError(t, err)
	assert.Equal(t, "binary_little_endian", h.Format)
	require.Len(t, h.Elements, 2)
	assert.Equal(t, len(data)-32, h.DataOffset)

	v := h.Element("vertex")
	require.NotNil(t, v)
	assert.Equal(t, 2, v.Count)
	assert.Equal(t, 13, v.Stride)
	assert.Equal(t, 26, v.Size())

	red, ok := v.Property("red")
	require.True(t, ok)
	assert.Equal(t, PlyProperty{Name: "red", Type: PlyTypeUChar, Offset: 4}, red)
	d, err := v.Require("d")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Offset)
	_, err = v.Require("missing")
	assert.True(t, errors.Is(err, common.ErrCorruptData))

	off, ok := h.ElementOffset("extra")
	require.True(t, ok)
	assert.Equal(t, h.DataOffset+26, off)
	_, ok = h.ElementOffset("nope")
	assert.False(t, ok)

	n, err := h.VertexCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, h.IsQuantized())
}

func TestParsePlyHeaderQuantized(t *testing.T) {
	h, err := ParsePlyHeader(quantizedPly())
	require.NoError(t, err)
	assert.True(t, h.IsQuantized())
	assert.Equal(t, 45, h.Element("vertex_3").CountPrefix("f_rest_"))
	_, err = h.VertexCount()
	assert.True(t, errors.Is(err, common.ErrCorruptData))
}

func TestParsePlyHeaderErrors(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"no terminator", "ply\nformat binary_little_endian 1.0\nelement vertex 1\n", common.ErrInvalidFormat},
		{"bad magic", "plx\nformat binary_little_endian 1.0\nend_header\n", common.ErrInvalidFormat},
		{"ascii", "ply\nformat ascii 1.0\nelement vertex 0\nend_header\n", common.ErrInvalidFormat},
		{"big endian", "ply\nformat binary_big_endian 1.0\nend_header\n", common.ErrInvalidFormat},
		{"missing format", "ply\nelement vertex 0\nend_header\n", common.ErrInvalidFormat},
		{"unknown keyword", "ply\nformat binary_little_endian 1.0\nbogus\nend_header\n", common.ErrInvalidFormat},
		{"orphan property", "ply\nformat binary_little_endian 1.0\nproperty float x\nend_header\n", common.ErrInvalidFormat},
		{"list property", "ply\nformat binary_little_endian 1.0\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n", common.ErrUnsupportedType},
		{"unknown type", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float128 x\nend_header\n", common.ErrUnsupportedType},
		{"bad count", "ply\nformat binary_little_endian 1.0\nelement vertex -4\nend_header\n", common.ErrCorruptData},
		{"terminator too far", "ply\ncomment " + strings.Repeat("a", plyHeaderWindow) + "\nend_header\n", common.ErrInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePlyHeader([]byte(tc.header))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestPlyTypeVocabulary(t *testing.T) {
	for token, size := range map[string]int{"char": 1, "uchar": 1, "short": 2, "ushort": 2, "int": 4, "uint": 4, "float": 4, "double": 8} {
		typ, err := ParsePlyType(token)
		require.NoError(t, err, token)
		assert.Equal(t, size, typ.Size(), token)
		assert.Equal(t, token, typ.String())
	}
}

func TestReadCodebooks(t *testing.T) {
	data := quantizedPly()
	h, err := ParsePlyHeader(data)
	require.NoError(t, err)
	layout, err := partitionQuantized(h)
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 1, 1, 1}, layout.counts())

	cbs, err := readCodebooks(layout.codebook, data, layout.cbOffset)
	require.NoError(t, err)
	assert.Equal(t, len(quantizedCodebooks), len(cbs))
	assert.Contains(t, cbs.Names(), "features_rest_14")

	v, err := cbs.Lookup("features_rest_3", 200)
	require.NoError(t, err)
	assert.Equal(t, codebookValue(200), v)

	_, err = cbs.Lookup("features_rest_15", 0)
	assert.True(t, errors.Is(err, common.ErrCorruptData))

	_, err = readCodebooks(layout.codebook, data[:len(data)-1], layout.cbOffset)
	assert.True(t, errors.Is(err, common.ErrCorruptData))
}

func TestPartitionQuantizedErrors(t *testing.T) {
	tier := func(k int) testElement {
		return testElement{name: "vertex_" + string(rune('0'+k)), count: 0, cols: []testColumn{{"short", "x"}}}
	}
	codebook := func(count int, typ string) testElement {
		return testElement{name: "codebook_centers", count: count, cols: []testColumn{{typ, "scaling"}}, rows: make([]byte, count*4)}
	}

	cases := []struct {
		name     string
		elements []testElement
		want     error
	}{
		{"three tiers", []testElement{tier(0), tier(1), tier(2), codebook(256, "short")}, common.ErrInvalidFormat},
		{"five tiers", []testElement{tier(0), tier(1), tier(2), tier(3), tier(4), codebook(256, "short")}, common.ErrInvalidFormat},
		{"no codebook", []testElement{tier(0), tier(1), tier(2), tier(3)}, common.ErrInvalidFormat},
		{"short codebook", []testElement{tier(0), tier(1), tier(2), tier(3), codebook(255, "short")}, common.ErrInvalidFormat},
		{"float codebook", []testElement{tier(0), tier(1), tier(2), tier(3), codebook(256, "float")}, common.ErrUnsupportedType},
		{"truncated tier", []testElement{{name: "vertex_0", count: 5, cols: []testColumn{{"short", "x"}}}, tier(1), tier(2), tier(3), codebook(256, "short")}, common.ErrCorruptData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := buildPly(tc.elements...)
			h, err := ParsePlyHeader(data)
			require.NoError(t, err)
			_, err = quantizedTiers(h, data)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestHugeElementCountRejected(t *testing.T) {
	// Count times stride wraps around int, which would put the codebook offset before the data.
	header := "ply\nformat binary_little_endian 1.0\n" +
		"element vertex_0 6917529027641081856\nproperty short x\nproperty short y\n" +
		"element vertex_1 0\nproperty short x\n" +
		"element vertex_2 0\nproperty short x\n" +
		"element vertex_3 0\nproperty short x\n" +
		"element codebook_centers 256\nproperty short scaling\n" +
		"end_header\n"
	data := append([]byte(header), make([]byte, 512)...)

	_, err := ParsePlyHeader(data)
	assert.True(t, errors.Is(err, common.ErrCorruptData), "got %v", err)

	require.NotPanics(t, func() {
		_, err = NewLoader().Decode("q.ply", data)
	})
	assert.True(t, errors.Is(err, common.ErrCorruptData), "got %v", err)
}

func TestReadCodebooksRejectsBadOffsets(t *testing.T) {
	data := quantizedPly()
	h, err := ParsePlyHeader(data)
	require.NoError(t, err)
	el := h.Element("codebook_centers")
	require.NotNil(t, el)

	for _, offset := range []int{-1, -len(data), len(data) + 1} {
		require.NotPanics(t, func() {
			_, err = readCodebooks(el, data, offset)
		})
		assert.True(t, errors.Is(err, common.ErrCorruptData), "offset %d: got %v", offset, err)
	}
}

func TestSliceElementRejectsBadOffsets(t *testing.T) {
	e := &PlyElement{Name: "vertex", Count: 0, Stride: 4}
	for _, offset := range []int{-1, 9} {
		_, err := sliceElement(e, make([]byte, 8), offset)
		assert.True(t, errors.Is(err, common.ErrCorruptData), "offset %d: got %v", offset, err)
	}
	rows, err := sliceElement(e, make([]byte, 8), 8)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
