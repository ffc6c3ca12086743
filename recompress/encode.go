package recompress

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/internal/filters"
)

// Encoder turns a raster into replacement image data.
type Encoder interface {
	Encode(img image.Image) (*docmodel.Replacement, error)
}

// JPEGEncoder writes baseline JPEG (DCTDecode).
type JPEGEncoder struct {
	// Quality is in [0, 1].
	Quality float64
}

// Encode implements Encoder. Only *image.Gray is written with one
// component.
func (e JPEGEncoder) Encode(img image.Image) (*docmodel.Replacement, error) {
	q := int(math.Round(e.Quality * 100))
	q = min(max(q, 1), 100)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, codecError("jpeg encode", err)
	}
	cs := "DeviceRGB"
	if _, ok := img.(*image.Gray); ok {
		cs = "DeviceGray"
	}
	b := img.Bounds()
	return &docmodel.Replacement{
		Width:            b.Dx(),
		Height:           b.Dy(),
		BitsPerComponent: 8,
		ColorSpace:       cs,
		Filter:           "DCTDecode",
		Data:             buf.Bytes(),
	}, nil
}

// PNGEncoder writes lossless 8-bit samples compressed with Flate after
// per-row adaptive PNG filtering (predictor 15).
type PNGEncoder struct{}

// Encode implements Encoder. Gray images keep one channel; all others are
// written as RGB with alpha dropped.
func (PNGEncoder) Encode(img image.Image) (*docmodel.Replacement, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	colors, cs := 3, "DeviceRGB"
	var pix []byte
	switch m := img.(type) {
	case *image.Gray:
		colors, cs = 1, "DeviceGray"
		pix = make([]byte, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := m.PixOffset(b.Min.X, y)
			pix = append(pix, m.Pix[off:off+w]...)
		}
	case *image.RGBA:
		pix = make([]byte, 0, 3*w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, y):]
			for x := 0; x < w; x++ {
				pix = append(pix, row[4*x], row[4*x+1], row[4*x+2])
			}
		}
	default:
		if isGray(img) {
			colors, cs = 1, "DeviceGray"
		}
		pix = make([]byte, 0, colors*w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if colors == 1 {
					pix = append(pix, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
					continue
				}
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				pix = append(pix, c.R, c.G, c.B)
			}
		}
	}

	parms := map[string]int{
		"Predictor":        15,
		"Colors":           colors,
		"BitsPerComponent": 8,
		"Columns":          w,
	}
	data, err := filters.FlateEncode(pix, flateParams(parms))
	if err != nil {
		return nil, codecError("flate encode", err)
	}
	return &docmodel.Replacement{
		Width:            w,
		Height:           h,
		BitsPerComponent: 8,
		ColorSpace:       cs,
		Filter:           "FlateDecode",
		DecodeParms:      parms,
		Data:             data,
	}, nil
}

func flateParams(parms map[string]int) filters.Params {
	p := make(filters.Params, len(parms))
	for k, v := range parms {
		p[k] = v
	}
	return p
}
