package loader

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

const (
	// plyHeaderWindow is how far into a file the header terminator is searched for.
	plyHeaderWindow = 10 * 1024

	plyMagic          = "ply\n"
	plyHeaderEnd      = "end_header\n"
	plyBinaryLE       = "binary_little_endian"
	plyVertexElement  = "vertex"
	plyTierPrefix     = "vertex_"
	plyCodebookName   = "codebook_centers"
	plyQuantizedTiers = 4
)

// PlyType is the closed vocabulary of scalar property types a splat PLY may declare.
type PlyType int

const (
	PlyTypeChar PlyType = iota
	PlyTypeUChar
	PlyTypeShort
	PlyTypeUShort
	PlyTypeInt
	PlyTypeUInt
	PlyTypeFloat
	PlyTypeDouble
)

var plyTypeNames = map[string]PlyType{
	"char":   PlyTypeChar,
	"uchar":  PlyTypeUChar,
	"short":  PlyTypeShort,
	"ushort": PlyTypeUShort,
	"int":    PlyTypeInt,
	"uint":   PlyTypeUInt,
	"float":  PlyTypeFloat,
	"double": PlyTypeDouble,
}

// ParsePlyType resolves a header type token.
//
// Parameters:
//   - token: the type token as written in a property line
//
// Returns:
//   - PlyType: the scalar type
//   - error: ErrUnsupportedType if the token is not in the vocabulary
func ParsePlyType(token string) (PlyType, error) {
	t, ok := plyTypeNames[token]
	if !ok {
		return 0, fmt.Errorf("property type %q: %w", token, common.ErrUnsupportedType)
	}
	return t, nil
}

// Size returns the width of the type in bytes.
func (t PlyType) Size() int {
	switch t {
	case PlyTypeChar, PlyTypeUChar:
		return 1
	case PlyTypeShort, PlyTypeUShort:
		return 2
	case PlyTypeDouble:
		return 8
	default:
		return 4
	}
}

func (t PlyType) String() string {
	for name, v := range plyTypeNames {
		if v == t {
			return name
		}
	}
	return "unknown"
}

// PlyProperty describes one scalar property of an element row.
type PlyProperty struct {
	Name   string
	Type   PlyType
	Offset int // byte offset within the element row
}

// PlyElement is one element declaration with its ordered properties.
// Elements are immutable once parsed.
type PlyElement struct {
	Name       string
	Count      int
	Properties []PlyProperty
	Stride     int // bytes per row, the sum of all property widths

	byName map[string]int
}

// Property looks up a property by name.
//
// Parameters:
//   - name: the property name
//
// Returns:
//   - PlyProperty: the property
//   - bool: false when the element has no such property
func (e *PlyElement) Property(name string) (PlyProperty, bool) {
	i, ok := e.byName[name]
	if !ok {
		return PlyProperty{}, false
	}
	return e.Properties[i], true
}

// Require looks up a property that must be present.
//
// Parameters:
//   - name: the property name
//
// Returns:
//   - PlyProperty: the property
//   - error: ErrCorruptData when the property is missing
func (e *PlyElement) Require(name string) (PlyProperty, error) {
	p, ok := e.Property(name)
	if !ok {
		return PlyProperty{}, fmt.Errorf("element %q has no property %q: %w", e.Name, name, common.ErrCorruptData)
	}
	return p, nil
}

// CountPrefix returns the number of properties whose name starts with prefix.
func (e *PlyElement) CountPrefix(prefix string) int {
	n := 0
	for _, p := range e.Properties {
		if strings.HasPrefix(p.Name, prefix) {
			n++
		}
	}
	return n
}

// Size returns the number of data bytes the element occupies.
func (e *PlyElement) Size() int {
	return e.Count * e.Stride
}

func (e *PlyElement) addProperty(typ PlyType, name string) {
	e.byName[name] = len(e.Properties)
	e.Properties = append(e.Properties, PlyProperty{Name: name, Type: typ, Offset: e.Stride})
	e.Stride += typ.Size()
}

// PlyHeader is the parsed header of a binary little endian PLY file.
type PlyHeader struct {
	Format     string
	Elements   []*PlyElement
	DataOffset int // byte offset of the first element row, just past the terminator
}

// Element returns the element with the given name, or nil.
func (h *PlyHeader) Element(name string) *PlyElement {
	for _, e := range h.Elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ElementOffset returns the byte offset of the first row of the named element.
// Element data is laid out back to back in declaration order.
//
// Parameters:
//   - name: the element name
//
// Returns:
//   - int: the absolute byte offset
//   - bool: false when the element is not declared
func (h *PlyHeader) ElementOffset(name string) (int, bool) {
	offset := h.DataOffset
	for _, e := range h.Elements {
		if e.Name == name {
			return offset, true
		}
		offset += e.Size()
	}
	return 0, false
}

// VertexCount returns the declared row count of the plain vertex element.
//
// Returns:
//   - int: the vertex count
//   - error: ErrCorruptData when no vertex element is declared
func (h *PlyHeader) VertexCount() (int, error) {
	e := h.Element(plyVertexElement)
	if e == nil {
		return 0, fmt.Errorf("no %q element: %w", plyVertexElement, common.ErrCorruptData)
	}
	return e.Count, nil
}

// IsQuantized reports whether the header declares tiered vertex elements.
func (h *PlyHeader) IsQuantized() bool {
	for _, e := range h.Elements {
		if strings.HasPrefix(e.Name, plyTierPrefix) {
			return true
		}
	}
	return false
}

// ParsePlyHeader parses the text header at the start of data.
// Only the first 10 KiB are searched for the terminator line.
//
// Parameters:
//   - data: the file contents
//
// Returns:
//   - *PlyHeader: the parsed header
//   - error: ErrInvalidFormat, ErrUnsupportedType or ErrCorruptData describing the first problem found
func ParsePlyHeader(data []byte) (*PlyHeader, error) {
	window := data[:min(len(data), plyHeaderWindow)]
	end := bytes.Index(window, []byte(plyHeaderEnd))
	if end < 0 {
		return nil, fmt.Errorf("header terminator not found in the first %d bytes: %w", plyHeaderWindow, common.ErrInvalidFormat)
	}
	if !bytes.HasPrefix(data, []byte(plyMagic)) {
		return nil, fmt.Errorf("bad magic: %w", common.ErrInvalidFormat)
	}

	h := &PlyHeader{DataOffset: end + len(plyHeaderEnd)}
	var current *PlyElement

	lines := strings.Split(string(window[len(plyMagic):end]), "\n")
	for n, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lineNo := n + 2

		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: malformed format line: %w", lineNo, common.ErrInvalidFormat)
			}
			h.Format = fields[1]
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: malformed element line %q: %w", lineNo, line, common.ErrInvalidFormat)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("line %d: bad element count %q: %w", lineNo, fields[2], common.ErrCorruptData)
			}
			current = &PlyElement{Name: fields[1], Count: count, byName: make(map[string]int)}
			h.Elements = append(h.Elements, current)
		case "property":
			if current == nil {
				return nil, fmt.Errorf("line %d: property outside of an element: %w", lineNo, common.ErrInvalidFormat)
			}
			if len(fields) >= 2 && fields[1] == "list" {
				return nil, fmt.Errorf("line %d: list properties: %w", lineNo, common.ErrUnsupportedType)
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: malformed property line %q: %w", lineNo, line, common.ErrInvalidFormat)
			}
			typ, err := ParsePlyType(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.addProperty(typ, fields[2])
		default:
			return nil, fmt.Errorf("line %d: unknown header keyword %q: %w", lineNo, fields[0], common.ErrInvalidFormat)
		}
	}

	if h.Format != plyBinaryLE {
		return nil, fmt.Errorf("format %q, only %s is supported: %w", h.Format, plyBinaryLE, common.ErrInvalidFormat)
	}

	// Element sizes and offsets are plain int arithmetic from here on.
	total := h.DataOffset
	for _, e := range h.Elements {
		if e.Stride > 0 && e.Count > (math.MaxInt-total)/e.Stride {
			return nil, fmt.Errorf("element %q declares %d rows of %d bytes: %w", e.Name, e.Count, e.Stride, common.ErrCorruptData)
		}
		total += e.Size()
	}
	return h, nil
}
