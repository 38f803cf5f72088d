package model

// ImportedCloud holds a decoded splat cloud as produced by a loader backend.
// Rows and SH are owned by the cloud until handed to a scene.
type ImportedCloud struct {
	// Name identifies the source the cloud was decoded from.
	Name string

	// Count is the number of splats.
	Count int

	// Rows holds Count consecutive Row records, RowLength bytes each.
	Rows []byte

	// SH holds SHFloatsPerSplat floats per banded splat: the three dc values followed by
	// 15 terms x 3 channels, term-major (slot 3+3*term+channel). Nil when no splat has SH.
	SH []float32

	// Bands marks where the SH band levels change across the splat order.
	Bands BandIndices
}

// SHCount returns the number of splats carrying higher order SH.
func (c *ImportedCloud) SHCount() int {
	return c.Bands.SHCount(c.Count)
}

// BandIndices holds the last splat index having 0, 1 and 2 SH bands, or -1 when there is none.
// Splats are ordered by ascending band level.
type BandIndices [3]int32

// UniformBands returns the indices for count splats that all carry the same band level.
//
// Parameters:
//   - count: the number of splats
//   - band: the band level shared by all splats, 0 to 3
//
// Returns:
//   - BandIndices: the band boundaries
func UniformBands(count, band int) BandIndices {
	var b BandIndices
	for i := range b {
		if i < band {
			b[i] = -1
		} else {
			b[i] = int32(count - 1)
		}
	}
	return b
}

// TierBands returns the indices for four consecutive tiers of the given sizes, tier k carrying band k.
//
// Parameters:
//   - counts: the splat count of each tier
//
// Returns:
//   - BandIndices: the band boundaries
func TierBands(counts [4]int) BandIndices {
	return BandIndices{
		int32(counts[0] - 1),
		int32(counts[0] + counts[1] - 1),
		int32(counts[0] + counts[1] + counts[2] - 1),
	}
}

// Band returns the SH band level of the splat at index i.
func (b BandIndices) Band(i int) int {
	switch {
	case int32(i) <= b[0]:
		return 0
	case int32(i) <= b[1]:
		return 1
	case int32(i) <= b[2]:
		return 2
	default:
		return 3
	}
}

// FirstBanded returns the index of the first splat with at least one SH band.
func (b BandIndices) FirstBanded() int {
	return int(b[0]) + 1
}

// SHCount returns how many of count splats carry at least one SH band.
func (b BandIndices) SHCount(count int) int {
	return max(count-b.FirstBanded(), 0)
}

// Compact rebuilds the indices after splats were removed. keep reports whether the
// splat at an old index survived.
//
// Parameters:
//   - count: the splat count before compaction
//   - keep: reports whether the splat at an old index survived
//
// Returns:
//   - BandIndices: the band boundaries over the survivors
func (b BandIndices) Compact(count int, keep func(i int) bool) BandIndices {
	var perBand [4]int
	for i := 0; i < count; i++ {
		if keep(i) {
			perBand[b.Band(i)]++
		}
	}
	return TierBands(perBand)
}

// SHStride returns the number of higher order terms per channel stored for a band level.
func SHStride(band int) int {
	switch band {
	case 1:
		return 3
	case 2:
		return 8
	case 3:
		return 15
	default:
		return 0
	}
}

// SHSlot returns the float slot within a 48-float SH record for raw rest coefficient n.
// Rest coefficients are stored channel-major in the file, stride terms per channel.
//
// Parameters:
//   - n: the rest coefficient index, 0 to 3*stride-1
//   - stride: the terms per channel of the splat's band level
//
// Returns:
//   - int: the slot, 3+3*term+channel
func SHSlot(n, stride int) int {
	return 3 + (n%stride)*3 + n/stride
}
