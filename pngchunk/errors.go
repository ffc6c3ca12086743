package pngchunk

import (
	"errors"
	"fmt"
)

// Error kinds. A *FormatError matches its kind with errors.Is.
var (
	ErrBadMagic           = errors.New("png: bad signature")
	ErrUnsupportedFeature = errors.New("png: unsupported feature")
	ErrMalformedChunk     = errors.New("png: malformed chunk")
	ErrTruncatedInput     = errors.New("png: truncated input")
	ErrChecksumMismatch   = errors.New("png: checksum mismatch")
)

// FormatError describes why a PNG stream was rejected.
type FormatError struct {
	Kind   error  // one of the Err* values above
	Chunk  string // chunk type, empty outside a chunk
	Detail string
}

func (e *FormatError) Error() string {
	if e.Chunk != "" {
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Chunk, e.Detail)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
}

func (e *FormatError) Unwrap() error { return e.Kind }

func formatErr(kind error, chunk, format string, args ...interface{}) error {
	return &FormatError{Kind: kind, Chunk: chunk, Detail: fmt.Sprintf(format, args...)}
}
