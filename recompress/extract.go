package recompress

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/pdfshrink/docmodel"
)

// extractor writes images to a directory, giving each a unique file name.
type extractor struct {
	dir  string
	used map[string]bool
}

func newExtractor(dir string) *extractor {
	return &extractor{dir: dir, used: make(map[string]bool)}
}

// fileBase turns a file key into a file name without extension. A key
// already used by another image gets the object number appended.
func (x *extractor) fileBase(img *docmodel.Image, key string) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, key)
	if base == "" || base == "." || base == ".." {
		base = "image"
	}
	if x.used[base] {
		base = fmt.Sprintf("%s-%d", base, img.ID)
	}
	x.used[base] = true
	return base
}

// write stores img as <key>.jpg when it is a plain DCT stream and as
// <key>.png otherwise. It returns the written path.
func (x *extractor) write(img *docmodel.Image, key string) (string, error) {
	base := filepath.Join(x.dir, x.fileBase(img, key))

	if img.Format == docmodel.FormatJPEG && len(img.Filters) == 1 {
		data, err := img.Raw()
		if err != nil {
			return "", err
		}
		path := base + ".jpg"
		return path, os.WriteFile(path, data, 0o644)
	}

	decoded, err := img.Decode()
	if err != nil {
		return "", codecError("decode", err)
	}
	path := base + ".png"
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, decoded); err != nil {
		f.Close()
		return "", codecError("png encode", err)
	}
	return path, f.Close()
}
