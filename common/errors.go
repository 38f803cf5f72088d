package common

import "errors"

// Error taxonomy shared by the loader and the scene. Callers match with errors.Is;
// the returned errors wrap these with the offending detail.
var (
	// ErrInvalidFormat reports a bad magic signature or a missing header terminator.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrUnsupportedType reports a property scalar type outside the PLY type vocabulary.
	ErrUnsupportedType = errors.New("unsupported property type")

	// ErrUnsupportedFormat reports an unknown format transform name.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptData reports a missing required property, truncated data or a bad codebook reference.
	ErrCorruptData = errors.New("corrupt data")

	// ErrInvalidBounds reports a clipping box whose min is not strictly below its max.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrLoadInProgress is returned when a loader is asked to load while a load is running.
	ErrLoadInProgress = errors.New("load already in progress")
)
