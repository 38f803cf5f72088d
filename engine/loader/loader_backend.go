package loader

import (
	"github.com/Carmen-Shannon/oxy-splat/engine/model"
)

// loaderBackend decodes one scene file format into an ImportedCloud.
// Concrete implementations (plyLoaderBackend, splatLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Decode turns the complete, decompressed file contents into a cloud.
	// Every layout check happens before the cloud is allocated.
	//
	// Parameters:
	//   - name: the name given to the cloud
	//   - data: the file contents
	//   - opts: the per-load decode options
	//
	// Returns:
	//   - *model.ImportedCloud: the decoded cloud
	//   - error: a wrapped sentinel from common describing the first problem found
	Decode(name string, data []byte, opts decodeOptions) (*model.ImportedCloud, error)
}
