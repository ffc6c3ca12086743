// Package format detects the file types pdfshrink reads and writes: PDF
// documents and the PNG and JPEG images used for import and extraction.
package format

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format represents a supported file format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PDF indicates a PDF document.
	PDF
	// PNG indicates a PNG image.
	PNG
	// JPEG indicates a baseline or progressive JPEG image.
	JPEG
)

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case PDF:
		return ".pdf"
	case PNG:
		return ".png"
	case JPEG:
		return ".jpg"
	default:
		return ""
	}
}

// IsImage reports whether f is an image format.
func (f Format) IsImage() bool {
	return f == PNG || f == JPEG
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return PDF
	case ".png":
		return PNG
	case ".jpg", ".jpeg", ".jpe":
		return JPEG
	default:
		return Unknown
	}
}

// DetectFromMagic checks leading bytes to determine format. PDF headers
// may be preceded by junk, as readers tolerate up to 1024 bytes of it.
func DetectFromMagic(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, pdfMagic) {
		return PDF
	}
	return Unknown
}

// DetectFromReader inspects the first bytes of r.
func DetectFromReader(r io.ReaderAt) (Format, error) {
	magic := make([]byte, 1024)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	return DetectFromMagic(magic[:n]), nil
}

// DetectFile detects the format of the file at path from its content,
// falling back to the extension when the content is not recognized.
func DetectFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Unknown, err
	}
	defer f.Close()

	got, err := DetectFromReader(f)
	if err != nil {
		return Unknown, err
	}
	if got == Unknown {
		return Detect(path), nil
	}
	return got, nil
}
