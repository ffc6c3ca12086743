package recompress

import (
	"bytes"
	"fmt"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/format"
	"github.com/tsawler/pdfshrink/pngchunk"
)

// ImportFile is a replacement image found in an import directory.
type ImportFile struct {
	Path   string
	Format format.Format
}

// ScanImportDir maps the base names (without extension) of the PNG and
// JPEG files in dir to those files. Names are NFC-normalized so that
// decomposed file names match resource names. When two files share a base
// name the first in directory order wins.
func ScanImportDir(dir string) (map[string]ImportFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("import directory: %w", err)
	}
	files := make(map[string]ImportFile)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		f := format.Detect(name)
		if !f.IsImage() {
			continue
		}
		base := norm.NFC.String(strings.TrimSuffix(name, filepath.Ext(name)))
		if _, dup := files[base]; dup {
			continue
		}
		files[base] = ImportFile{Path: filepath.Join(dir, name), Format: f}
	}
	return files, nil
}

// matchImport returns the import file for a resource name.
func matchImport(files map[string]ImportFile, name string) (ImportFile, bool) {
	f, ok := files[norm.NFC.String(name)]
	return f, ok
}

// loadImport reads f as replacement data. PNG data is taken over without
// re-encoding; JPEG data is embedded as-is after reading its header.
func loadImport(f ImportFile, strict bool, sink diag.Sink) (*docmodel.Replacement, error) {
	actual, err := format.DetectFile(f.Path)
	if err != nil {
		return nil, err
	}
	switch actual {
	case format.PNG:
		img, err := pngchunk.DecodeFile(f.Path, pngchunk.Options{Strict: strict, Sink: sink})
		if err != nil {
			return nil, err
		}
		return img.Replacement(), nil
	case format.JPEG:
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		cs := "DeviceRGB"
		switch cfg.ColorModel {
		case color.GrayModel:
			cs = "DeviceGray"
		case color.CMYKModel:
			cs = "DeviceCMYK"
		}
		return &docmodel.Replacement{
			Width:            cfg.Width,
			Height:           cfg.Height,
			BitsPerComponent: 8,
			ColorSpace:       cs,
			Filter:           "DCTDecode",
			Data:             data,
		}, nil
	}
	return nil, fmt.Errorf("%s: %v content is not an importable image", f.Path, actual)
}
