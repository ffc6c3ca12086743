package reader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/internal/pdftest"
)

func rawImage(dict core.Dict, data []byte) *core.Stream {
	d := core.Dict{"Type": core.Name("XObject"), "Subtype": core.Name("Image")}
	for k, v := range dict {
		d[k] = v
	}
	return &core.Stream{Dict: d, Data: data}
}

func size(w, h int) core.Dict {
	return core.Dict{"Width": core.Int(w), "Height": core.Int(h)}
}

func with(d core.Dict, kv ...interface{}) core.Dict {
	for i := 0; i < len(kv); i += 2 {
		d[kv[i].(string)] = kv[i+1].(core.Object)
	}
	return d
}

// TestDecodeImageColorSpaces tests sample conversion per color space
func TestDecodeImageColorSpaces(t *testing.T) {
	tests := []struct {
		name   string
		stream *core.Stream
		x, y   int
		want   color.RGBA
	}{
		{
			"gray 8", rawImage(with(size(2, 1), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceGray")), []byte{10, 200}),
			1, 0, color.RGBA{200, 200, 200, 255},
		},
		{
			"gray 1", rawImage(with(size(9, 1), "BitsPerComponent", core.Int(1), "ColorSpace", core.Name("DeviceGray")), []byte{0x80, 0x80}),
			8, 0, color.RGBA{255, 255, 255, 255},
		},
		{
			"gray 4", rawImage(with(size(2, 1), "BitsPerComponent", core.Int(4), "ColorSpace", core.Name("G")), []byte{0x0f}),
			1, 0, color.RGBA{255, 255, 255, 255},
		},
		{
			"rgb", rawImage(with(size(1, 2), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceRGB")), []byte{1, 2, 3, 4, 5, 6}),
			0, 1, color.RGBA{4, 5, 6, 255},
		},
		{
			"cmyk white", rawImage(with(size(1, 1), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceCMYK")), []byte{0, 0, 0, 0}),
			0, 0, color.RGBA{255, 255, 255, 255},
		},
		{
			"indexed", rawImage(with(size(2, 1), "BitsPerComponent", core.Int(8),
				"ColorSpace", core.Array{core.Name("Indexed"), core.Name("DeviceRGB"), core.Int(1), core.String("\x00\x00\x00\xff\x00\x00")}),
				[]byte{0, 1}),
			1, 0, color.RGBA{255, 0, 0, 255},
		},
		{
			"indexed out of range", rawImage(with(size(1, 1), "BitsPerComponent", core.Int(8),
				"ColorSpace", core.Array{core.Name("Indexed"), core.Name("DeviceRGB"), core.Int(0), core.String("\xff\xff\xff")}),
				[]byte{7}),
			0, 0, color.RGBA{0, 0, 0, 255},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := newTestReader().DecodeImage(tt.stream)
			if err != nil {
				t.Fatal(err)
			}
			got := color.RGBAModel.Convert(img.At(tt.x, tt.y)).(color.RGBA)
			if got != tt.want {
				t.Errorf("At(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func newTestReader() *Reader {
	b := pdftest.New()
	data := b.Bytes(b.Document("<<>>"))
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		panic(err)
	}
	return r
}

func TestDecodeImageErrors(t *testing.T) {
	tests := []struct {
		name        string
		stream      *core.Stream
		unsupported bool
	}{
		{"short data", rawImage(with(size(4, 4), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceRGB")), []byte{1, 2, 3}), false},
		{"bpc 3", rawImage(with(size(1, 1), "BitsPerComponent", core.Int(3)), []byte{0}), true},
		{"jpx", rawImage(with(size(1, 1), "Filter", core.Name("JPXDecode")), []byte{0}), true},
		{"separation", rawImage(with(size(1, 1), "BitsPerComponent", core.Int(8), "ColorSpace", core.Array{core.Name("Separation"), core.Name("Spot")}), []byte{0}), true},
		{"no width", rawImage(core.Dict{"Height": core.Int(1)}, nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestReader().DecodeImage(tt.stream)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrUnsupportedImage); got != tt.unsupported {
				t.Errorf("errors.Is(ErrUnsupportedImage) = %v for %v", got, err)
			}
		})
	}
}

// TestDecodeImageFromFile tests Flate and DCT images stored in a file
func TestDecodeImageFromFile(t *testing.T) {
	b := pdftest.New()
	flate := b.Add(pdftest.GrayImage(16, 8))
	dct := b.Add(pdftest.JPEGImage(24, 16))
	data := b.Bytes(b.Document(fmt.Sprintf("<</XObject <</Im1 %d 0 R /Im2 %d 0 R>>>>", flate, dct), "/Im1 Do /Im2 Do"))
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		num          int
		w, h         int
		colorSpace   string
		filter       string
		wantExactPix bool
	}{
		{flate, 16, 8, "DeviceGray", "FlateDecode", true},
		{dct, 24, 16, "DeviceGray", "DCTDecode", false},
	} {
		obj, err := r.GetObject(tc.num)
		if err != nil {
			t.Fatal(err)
		}
		stream := obj.(*core.Stream)
		if !IsImage(stream) {
			t.Errorf("object %d is not an image", tc.num)
		}
		info, err := r.ImageInfo(stream)
		if err != nil {
			t.Fatal(err)
		}
		if info.Width != tc.w || info.Height != tc.h || info.ColorSpace != tc.colorSpace || info.Filters[0] != tc.filter {
			t.Errorf("ImageInfo = %+v", info)
		}
		if info.Length != int64(len(stream.Data)) {
			t.Errorf("Length = %d, want %d", info.Length, len(stream.Data))
		}
		img, err := r.DecodeImage(stream)
		if err != nil {
			t.Fatal(err)
		}
		if img.Bounds() != image.Rect(0, 0, tc.w, tc.h) {
			t.Errorf("bounds = %v", img.Bounds())
		}
		if tc.wantExactPix {
			want := pdftest.Gradient(tc.w, tc.h)
			if got := img.(*image.Gray); string(got.Pix) != string(want.Pix) {
				t.Error("decoded samples differ from the source gradient")
			}
		}
	}
}

func TestImageMask(t *testing.T) {
	s := rawImage(with(size(8, 1), "ImageMask", core.Bool(true)), []byte{0x0f})
	r := newTestReader()
	info, err := r.ImageInfo(s)
	if err != nil || !info.ImageMask || info.BitsPerComponent != 1 {
		t.Fatalf("ImageInfo = %+v, %v", info, err)
	}
	img, err := r.DecodeImage(s)
	if err != nil {
		t.Fatal(err)
	}
	if g := img.(*image.Gray); g.Pix[0] != 0 || g.Pix[7] != 255 {
		t.Errorf("pix = %v", g.Pix)
	}
}

// TestDecodeArray tests that /Decode ranges are applied to the samples
func TestDecodeArray(t *testing.T) {
	inverted := core.Array{core.Int(1), core.Int(0)}
	tests := []struct {
		name   string
		stream *core.Stream
		x      int
		want   color.RGBA
	}{
		{
			"inverted gray", rawImage(with(size(2, 1), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceGray"), "Decode", inverted), []byte{0, 255}),
			0, color.RGBA{255, 255, 255, 255},
		},
		{
			"inverted gray 1 bit", rawImage(with(size(8, 1), "BitsPerComponent", core.Int(1), "ColorSpace", core.Name("DeviceGray"), "Decode", inverted), []byte{0x80}),
			0, color.RGBA{0, 0, 0, 255},
		},
		{
			"narrowed rgb", rawImage(with(size(1, 1), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceRGB"),
				"Decode", core.Array{core.Int(0), core.Real(0.5), core.Int(1), core.Int(0), core.Int(0), core.Int(1)}), []byte{255, 255, 0}),
			0, color.RGBA{128, 0, 0, 255},
		},
		{
			"inverted palette", rawImage(with(size(2, 1), "BitsPerComponent", core.Int(1),
				"ColorSpace", core.Array{core.Name("Indexed"), core.Name("DeviceRGB"), core.Int(1), core.String("\x00\x00\x00\xff\x00\x00")},
				"Decode", inverted), []byte{0x00}),
			0, color.RGBA{255, 0, 0, 255},
		},
		{
			"wrong length ignored", rawImage(with(size(1, 1), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceGray"),
				"Decode", core.Array{core.Int(1), core.Int(0), core.Int(0), core.Int(1)}), []byte{40}),
			0, color.RGBA{40, 40, 40, 255},
		},
	}
	r := newTestReader()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := r.DecodeImage(tc.stream)
			if err != nil {
				t.Fatal(err)
			}
			if got := color.RGBAModel.Convert(img.At(tc.x, 0)).(color.RGBA); got != tc.want {
				t.Errorf("At(%d, 0) = %v, want %v", tc.x, got, tc.want)
			}
		})
	}
}

func TestDecodeArrayJPEG(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
	s := rawImage(with(size(8, 8), "BitsPerComponent", core.Int(8), "ColorSpace", core.Name("DeviceGray"),
		"Filter", core.Name("DCTDecode"), "Decode", core.Array{core.Int(1), core.Int(0)}), buf.Bytes())
	img, err := newTestReader().DecodeImage(s)
	if err != nil {
		t.Fatal(err)
	}
	if g := img.(*image.Gray); g.Pix[0] < 250 {
		t.Errorf("inverted JPEG sample = %d, want about 255", g.Pix[0])
	}
}
