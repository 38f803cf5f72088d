package loader

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// CodebookSize is the number of centers in every codebook.
const CodebookSize = 256

// Codebook names referenced by the quantized decoder.
const (
	codebookScaling      = "scaling"
	codebookRotationRe   = "rotation_re"
	codebookRotationIm   = "rotation_im"
	codebookFeaturesDC   = "features_dc"
	codebookOpacity      = "opacity"
	codebookFeaturesRest = "features_rest_"
)

// Codebook is a named table of decoded half float centers indexed by a byte.
type Codebook struct {
	Name   string
	Values [CodebookSize]float32
}

// CodebookTable maps codebook names to their tables.
type CodebookTable map[string]*Codebook

// Get returns the named codebook.
//
// Parameters:
//   - name: the codebook name
//
// Returns:
//   - *Codebook: the codebook
//   - error: ErrCorruptData when the table has no such codebook
func (t CodebookTable) Get(name string) (*Codebook, error) {
	cb, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("no codebook %q: %w", name, common.ErrCorruptData)
	}
	return cb, nil
}

// Lookup resolves a quantized index through the named codebook.
//
// Parameters:
//   - name: the codebook name
//   - index: the quantized byte
//
// Returns:
//   - float32: the decoded center
//   - error: ErrCorruptData when the table has no such codebook
func (t CodebookTable) Lookup(name string, index uint8) (float32, error) {
	cb, err := t.Get(name)
	if err != nil {
		return 0, err
	}
	return cb.Values[index], nil
}

// Names returns the codebook names in sorted order.
func (t CodebookTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// quantizedLayout is the partition of a quantized header into its tiers and codebook section.
type quantizedLayout struct {
	tiers       [plyQuantizedTiers]*PlyElement
	tierOffsets [plyQuantizedTiers]int
	codebook    *PlyElement
	cbOffset    int
}

// partitionQuantized locates the four vertex tiers and the codebook element of a quantized header.
//
// Parameters:
//   - h: the parsed header
//
// Returns:
//   - *quantizedLayout: the tiers and codebook with their data offsets
//   - error: ErrInvalidFormat when tiers or the codebook section are missing or malformed
func partitionQuantized(h *PlyHeader) (*quantizedLayout, error) {
	l := &quantizedLayout{}
	found := 0
	for _, e := range h.Elements {
		if !strings.HasPrefix(e.Name, plyTierPrefix) {
			continue
		}
		if found == plyQuantizedTiers {
			return nil, fmt.Errorf("more than %d vertex tiers: %w", plyQuantizedTiers, common.ErrInvalidFormat)
		}
		offset, _ := h.ElementOffset(e.Name)
		l.tiers[found] = e
		l.tierOffsets[found] = offset
		found++
	}
	if found < plyQuantizedTiers {
		return nil, fmt.Errorf("found %d of %d vertex tiers: %w", found, plyQuantizedTiers, common.ErrInvalidFormat)
	}

	l.codebook = h.Element(plyCodebookName)
	if l.codebook == nil {
		return nil, fmt.Errorf("no %s section: %w", plyCodebookName, common.ErrInvalidFormat)
	}
	if l.codebook.Count != CodebookSize {
		return nil, fmt.Errorf("%s declares %d rows, want %d: %w", plyCodebookName, l.codebook.Count, CodebookSize, common.ErrInvalidFormat)
	}
	l.cbOffset, _ = h.ElementOffset(plyCodebookName)
	return l, nil
}

// counts returns the splat count of each tier.
func (l *quantizedLayout) counts() [plyQuantizedTiers]int {
	var c [plyQuantizedTiers]int
	for i, t := range l.tiers {
		c[i] = t.Count
	}
	return c
}

// readCodebooks decodes the codebook element. Each of the 256 rows holds one 16-bit
// half per codebook, so the value of codebook j at index i sits at row i, column j.
//
// Parameters:
//   - el: the codebook element
//   - data: the file contents
//   - offset: the absolute byte offset of the codebook rows
//
// Returns:
//   - CodebookTable: the decoded codebooks keyed by property name
//   - error: ErrUnsupportedType for non 16-bit columns, ErrCorruptData when data is truncated
func readCodebooks(el *PlyElement, data []byte, offset int) (CodebookTable, error) {
	for _, p := range el.Properties {
		if p.Type != PlyTypeShort && p.Type != PlyTypeUShort {
			return nil, fmt.Errorf("codebook %q is %s, want a 16-bit type: %w", p.Name, p.Type, common.ErrUnsupportedType)
		}
	}
	if offset < 0 || offset > len(data) || el.Size() > len(data)-offset {
		return nil, fmt.Errorf("codebook section needs %d bytes at offset %d, file has %d: %w",
			el.Size(), offset, len(data), common.ErrCorruptData)
	}

	table := make(CodebookTable, len(el.Properties))
	for _, p := range el.Properties {
		cb := &Codebook{Name: p.Name}
		for i := range CodebookSize {
			at := offset + i*el.Stride + p.Offset
			cb.Values[i] = common.DecodeFloat16(binary.LittleEndian.Uint16(data[at : at+2]))
		}
		table[p.Name] = cb
	}
	return table, nil
}
