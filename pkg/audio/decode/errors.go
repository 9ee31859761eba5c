// ABOUTME: Sentinel errors for the decode package
// ABOUTME: Distinguishes format, layout and seekability failures
package decode

import "errors"

var (
	ErrUnsupportedFormat   = errors.New("decode: unsupported audio format")
	ErrInvalidFile         = errors.New("decode: not a valid audio file")
	ErrUnsupportedBitDepth = errors.New("decode: unsupported bit depth")
	ErrNotSeekable         = errors.New("decode: stream does not support random access")
)
