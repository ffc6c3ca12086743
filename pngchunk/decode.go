package pngchunk

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/docmodel"
)

// Signature is the eight-byte PNG file header.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ColorType is the IHDR color type. Its bits are flags.
type ColorType uint8

const (
	FlagPalette ColorType = 1
	FlagColor   ColorType = 2
	FlagAlpha   ColorType = 4

	Grayscale      ColorType = 0
	TrueColor      ColorType = FlagColor
	IndexedColor   ColorType = FlagColor | FlagPalette
	GrayscaleAlpha ColorType = FlagAlpha
	TrueColorAlpha ColorType = FlagColor | FlagAlpha
)

// RGB is one palette entry.
type RGB struct {
	R, G, B uint8
}

// Image is a decoded PNG header plus its still-compressed pixel data.
type Image struct {
	Width     int
	Height    int
	BitDepth  int
	ColorType ColorType
	// Palette holds the PLTE entries followed by one black entry.
	Palette []RGB
	// Data is the concatenation of all IDAT payloads: a zlib stream of
	// PNG-filtered rows.
	Data []byte
	// Mismatches lists, in order, the chunk types whose stored CRC did
	// not match.
	Mismatches []string
}

// Options controls decoding.
type Options struct {
	// Strict makes a CRC mismatch on a critical chunk fatal. Ancillary
	// chunks are always advisory.
	Strict bool
	// Sink receives ChecksumMismatch diagnostics.
	Sink diag.Sink
	// Name identifies the stream in diagnostics.
	Name string
}

// Colors returns the number of samples per pixel in the IDAT data.
func (img *Image) Colors() int {
	if img.ColorType&FlagPalette != 0 || img.ColorType&FlagColor == 0 {
		return 1
	}
	return 3
}

// ColorSpace returns the PDF color space family for the image.
func (img *Image) ColorSpace() string {
	switch {
	case img.ColorType&FlagPalette != 0:
		return "Indexed"
	case img.ColorType&FlagColor != 0:
		return "DeviceRGB"
	}
	return "DeviceGray"
}

// Replacement describes the image as a Flate-compressed PDF image with the
// PNG predictor, reusing the IDAT data as-is.
func (img *Image) Replacement() *docmodel.Replacement {
	r := &docmodel.Replacement{
		Width:            img.Width,
		Height:           img.Height,
		BitsPerComponent: img.BitDepth,
		ColorSpace:       img.ColorSpace(),
		Filter:           "FlateDecode",
		DecodeParms: map[string]int{
			"Predictor":        15,
			"Colors":           img.Colors(),
			"BitsPerComponent": img.BitDepth,
			"Columns":          img.Width,
		},
		Data: img.Data,
	}
	if img.ColorType&FlagPalette != 0 {
		r.Palette = make([]byte, 0, 3*len(img.Palette))
		for _, c := range img.Palette {
			r.Palette = append(r.Palette, c.R, c.G, c.B)
		}
	}
	return r
}

// DecodeFile decodes the PNG file at path.
func DecodeFile(path string, opts Options) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	img, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode reads a PNG stream up to and including IEND. On error no image is
// returned.
func Decode(r io.Reader, opts Options) (*Image, error) {
	d := &decoder{r: NewReader(r), opts: opts, sink: diag.OrDiscard(opts.Sink)}
	return d.decode()
}

type decoder struct {
	r    *Reader
	opts Options
	sink diag.Sink

	img      Image
	idat     bytes.Buffer
	seenIHDR bool
	seenIDAT bool
	seenPLTE bool
}

func (d *decoder) decode() (*Image, error) {
	magic, err := d.r.ReadBytes(len(Signature))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, Signature) {
		return nil, formatErr(ErrBadMagic, "", "got % x", magic)
	}

	for {
		length, err := d.r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if length > maxChunkLength {
			return nil, formatErr(ErrMalformedChunk, "", "chunk length %d too large", length)
		}
		d.r.ResetCRC()
		typ, err := d.r.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		chunk := string(typ)
		payload, err := d.r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		computed := d.r.CRC()
		stored, err := d.r.ReadChecksum()
		if err != nil {
			return nil, err
		}
		if stored != computed {
			if err := d.mismatch(chunk, stored, computed); err != nil {
				return nil, err
			}
		}

		if !d.seenIHDR && chunk != "IHDR" {
			return nil, formatErr(ErrMalformedChunk, chunk, "first chunk must be IHDR")
		}
		switch chunk {
		case "IHDR":
			err = d.header(payload)
		case "PLTE":
			err = d.palette(payload)
		case "IDAT":
			d.idat.Write(payload)
			d.seenIDAT = true
		case "IEND":
			return d.finish()
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *decoder) mismatch(chunk string, stored, computed uint32) error {
	d.img.Mismatches = append(d.img.Mismatches, chunk)
	msg := fmt.Sprintf("%s chunk CRC is %08x, computed %08x", chunk, stored, computed)
	if d.opts.Strict && isCritical(chunk) {
		return formatErr(ErrChecksumMismatch, chunk, "stored %08x, computed %08x", stored, computed)
	}
	d.sink.Report(diag.Event{Kind: diag.ChecksumMismatch, Resource: d.opts.Name, Message: msg})
	return nil
}

// isCritical reports whether the chunk type marks a critical chunk
// (uppercase first letter).
func isCritical(chunk string) bool {
	return len(chunk) == 4 && chunk[0] >= 'A' && chunk[0] <= 'Z'
}

func (d *decoder) header(p []byte) error {
	if d.seenIHDR {
		return formatErr(ErrMalformedChunk, "IHDR", "duplicate header")
	}
	if len(p) != 13 {
		return formatErr(ErrUnsupportedFeature, "IHDR", "length %d, want 13", len(p))
	}
	hr := NewReader(bytes.NewReader(p))
	width, _ := hr.ReadUint32()
	height, _ := hr.ReadUint32()
	depth, _ := hr.ReadUint8()
	colorType, _ := hr.ReadUint8()
	compression, _ := hr.ReadUint8()
	filter, _ := hr.ReadUint8()
	interlace, _ := hr.ReadUint8()

	if width == 0 || height == 0 || width > maxChunkLength || height > maxChunkLength {
		return formatErr(ErrMalformedChunk, "IHDR", "invalid dimensions %dx%d", width, height)
	}
	if compression != 0 {
		return formatErr(ErrUnsupportedFeature, "IHDR", "compression method %d", compression)
	}
	if filter != 0 {
		return formatErr(ErrUnsupportedFeature, "IHDR", "filter method %d", filter)
	}
	if interlace != 0 {
		return formatErr(ErrUnsupportedFeature, "IHDR", "interlaced images need recompression")
	}
	ct := ColorType(colorType)
	if ct&FlagAlpha != 0 {
		return formatErr(ErrUnsupportedFeature, "IHDR", "embedded alpha channel needs recompression")
	}
	if !validDepth(ct, depth) {
		return formatErr(ErrUnsupportedFeature, "IHDR", "bit depth %d with color type %d", depth, colorType)
	}

	d.img.Width = int(width)
	d.img.Height = int(height)
	d.img.BitDepth = int(depth)
	d.img.ColorType = ct
	d.seenIHDR = true
	return nil
}

func validDepth(ct ColorType, depth uint8) bool {
	switch ct {
	case Grayscale:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case IndexedColor:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case TrueColor:
		return depth == 8 || depth == 16
	}
	return false
}

func (d *decoder) palette(p []byte) error {
	if d.seenPLTE {
		return formatErr(ErrMalformedChunk, "PLTE", "duplicate palette")
	}
	if len(p) > 256*3 || len(p)%3 != 0 {
		return formatErr(ErrMalformedChunk, "PLTE", "length %d", len(p))
	}
	if d.seenIDAT {
		return formatErr(ErrMalformedChunk, "PLTE", "palette after image data")
	}
	pal := make([]RGB, 0, len(p)/3+1)
	for i := 0; i < len(p); i += 3 {
		pal = append(pal, RGB{p[i], p[i+1], p[i+2]})
	}
	// One extra black entry; PDF lookup tables are indexed up to hival.
	pal = append(pal, RGB{})
	d.img.Palette = pal
	d.seenPLTE = true
	return nil
}

func (d *decoder) finish() (*Image, error) {
	if !d.seenIDAT {
		return nil, formatErr(ErrMalformedChunk, "IEND", "no image data")
	}
	if d.img.ColorType&FlagPalette != 0 && !d.seenPLTE {
		return nil, formatErr(ErrMalformedChunk, "IEND", "indexed image without palette")
	}
	img := d.img
	img.Data = append([]byte(nil), d.idat.Bytes()...)
	return &img, nil
}
