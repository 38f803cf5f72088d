package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
)

// splatLoaderBackend reads .splat files: bare 32-byte rows with no header and no SH.
type splatLoaderBackend struct{}

var _ loaderBackend = &splatLoaderBackend{}

func newSplatLoaderBackend() *splatLoaderBackend {
	return &splatLoaderBackend{}
}

func (b *splatLoaderBackend) Decode(name string, data []byte, _ decodeOptions) (*model.ImportedCloud, error) {
	if len(data)%model.RowLength != 0 {
		return nil, fmt.Errorf("splat file %q is %d bytes, not a multiple of %d: %w", name, len(data), model.RowLength, common.ErrCorruptData)
	}
	n := len(data) / model.RowLength
	rows := make([]byte, len(data))
	copy(rows, data)
	return &model.ImportedCloud{
		Name:  name,
		Count: n,
		Rows:  rows,
		Bands: model.UniformBands(n, 0),
	}, nil
}
