package optimize

import "errors"

// Per-image failures are local: the image is left untouched and the reason
// lands in the run report. Only a document that cannot be parsed at all
// aborts a run, and that happens before this package is reached.
var (
	// ErrUnsupported marks a filter chain the pipeline does not recompress.
	ErrUnsupported = errors.New("optimize: unsupported image encoding")
	// ErrDecode marks exhaustion of every decode strategy.
	ErrDecode = errors.New("optimize: all decode strategies failed")
	// ErrEncode marks a recompression failure.
	ErrEncode = errors.New("optimize: recompression failed")
	// ErrInsufficientGain marks a replacement that saves less than the
	// policy's minimum fraction.
	ErrInsufficientGain = errors.New("optimize: insufficient size gain")
)
