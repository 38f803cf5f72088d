package loader

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
)

// plyLoaderBackend decodes binary little endian PLY files, plain or quantized.
type plyLoaderBackend struct{}

var _ loaderBackend = &plyLoaderBackend{}

func newPlyLoaderBackend() *plyLoaderBackend {
	return &plyLoaderBackend{}
}

func (b *plyLoaderBackend) Decode(name string, data []byte, opts decodeOptions) (*model.ImportedCloud, error) {
	h, err := ParsePlyHeader(data)
	if err != nil {
		return nil, err
	}

	quantized := opts.quantized || h.IsQuantized()
	var tiers []*tierLayout
	if quantized {
		tiers, err = quantizedTiers(h, data)
	} else {
		var t *tierLayout
		if t, err = plainTier(h, data); err == nil {
			tiers = []*tierLayout{t}
		}
	}
	if err != nil {
		return nil, err
	}

	common.Logger().Debug("ply layout resolved", "name", name, "quantized", quantized, "tiers", len(tiers), "header_bytes", h.DataOffset)
	return decodeTiers(name, tiers, opts), nil
}
