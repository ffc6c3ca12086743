package reader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/tsawler/pdfshrink/core"
)

// ErrUnsupportedImage is returned for images whose samples cannot be
// converted (JPX, JBIG2, unusual color spaces or bit depths).
var ErrUnsupportedImage = errors.New("unsupported image")

// ImageInfo describes an image XObject without decoding it.
type ImageInfo struct {
	Width            int
	Height           int
	BitsPerComponent int
	// ColorSpace is the family name: DeviceGray, DeviceRGB, DeviceCMYK,
	// Indexed, or the array head for anything else.
	ColorSpace string
	Filters    []string
	Length     int64 // encoded bytes
	ImageMask  bool
}

// IsImage reports whether stream is an image XObject.
func IsImage(stream *core.Stream) bool {
	subtype, _ := stream.Dict.GetName("Subtype")
	return subtype == "Image"
}

// ImageInfo reads the dimensions and encoding of an image XObject.
func (r *Reader) ImageInfo(stream *core.Stream) (ImageInfo, error) {
	dict := stream.Dict
	width, err := r.intEntry(dict, "Width")
	if err != nil {
		return ImageInfo{}, err
	}
	height, err := r.intEntry(dict, "Height")
	if err != nil {
		return ImageInfo{}, err
	}
	if width <= 0 || height <= 0 {
		return ImageInfo{}, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	info := ImageInfo{
		Width:            width,
		Height:           height,
		BitsPerComponent: 8,
		ColorSpace:       "DeviceGray",
		Filters:          stream.Filters(),
		Length:           int64(len(stream.Data)),
	}
	if mask, ok := dict.GetBool("ImageMask"); ok && bool(mask) {
		info.ImageMask = true
		info.BitsPerComponent = 1
		return info, nil
	}
	if bpc, err := r.intEntry(dict, "BitsPerComponent"); err == nil {
		info.BitsPerComponent = bpc
	} else if isCCITT(info.Filters) {
		info.BitsPerComponent = 1
	}
	if csObj := dict.Get("ColorSpace"); csObj != nil {
		cs, err := r.parseColorSpace(csObj)
		if err != nil {
			return ImageInfo{}, err
		}
		info.ColorSpace = cs.family
	} else if lastFilter(info.Filters) == "DCTDecode" {
		info.ColorSpace = "DeviceRGB"
	}
	return info, nil
}

func (r *Reader) intEntry(dict core.Dict, key string) (int, error) {
	obj, err := r.Resolve(dict.Get(key))
	if err != nil {
		return 0, err
	}
	n, ok := core.Number(obj)
	if !ok {
		return 0, fmt.Errorf("image /%s is %T", key, obj)
	}
	return int(n), nil
}

func lastFilter(filters []string) string {
	if len(filters) == 0 {
		return ""
	}
	switch f := filters[len(filters)-1]; f {
	case "DCT":
		return "DCTDecode"
	case "CCF":
		return "CCITTFaxDecode"
	default:
		return f
	}
}

func isCCITT(filters []string) bool {
	return lastFilter(filters) == "CCITTFaxDecode"
}

// colorSpace is a parsed image color space.
type colorSpace struct {
	family     string
	components int
	// Indexed only.
	base   *colorSpace
	hival  int
	lookup []byte
}

// parseColorSpace resolves obj and recognises the color spaces an image
// can use.
func (r *Reader) parseColorSpace(obj core.Object) (*colorSpace, error) {
	resolved, err := r.ResolveDeep(obj)
	if err != nil {
		return nil, fmt.Errorf("color space: %w", err)
	}

	switch v := resolved.(type) {
	case core.Name:
		return deviceSpace(string(v))
	case core.Array:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty color space array")
		}
		name, _ := v.GetName(0)
		switch name {
		case "Indexed", "I":
			return r.indexedSpace(v)
		case "ICCBased":
			stream, ok := v.Get(1).(*core.Stream)
			if !ok {
				return nil, fmt.Errorf("ICCBased without profile stream")
			}
			n, _ := stream.Dict.GetInt("N")
			switch n {
			case 1:
				return &colorSpace{family: "DeviceGray", components: 1}, nil
			case 3:
				return &colorSpace{family: "DeviceRGB", components: 3}, nil
			case 4:
				return &colorSpace{family: "DeviceCMYK", components: 4}, nil
			}
			if alt := stream.Dict.Get("Alternate"); alt != nil {
				return r.parseColorSpace(alt)
			}
			return nil, fmt.Errorf("ICCBased with /N %d", n)
		case "CalGray", "CalRGB", "CalCMYK":
			return deviceSpace(string(name))
		}
		return &colorSpace{family: string(name)}, nil
	}
	return nil, fmt.Errorf("invalid color space type %T", resolved)
}

func deviceSpace(name string) (*colorSpace, error) {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return &colorSpace{family: "DeviceGray", components: 1}, nil
	case "DeviceRGB", "RGB", "CalRGB":
		return &colorSpace{family: "DeviceRGB", components: 3}, nil
	case "DeviceCMYK", "CMYK", "CalCMYK":
		return &colorSpace{family: "DeviceCMYK", components: 4}, nil
	}
	// Named resources (e.g. /CS0) cannot be looked up from here.
	return &colorSpace{family: name}, nil
}

func (r *Reader) indexedSpace(v core.Array) (*colorSpace, error) {
	if len(v) != 4 {
		return nil, fmt.Errorf("Indexed color space has %d entries", len(v))
	}
	base, err := r.parseColorSpace(v[1])
	if err != nil {
		return nil, err
	}
	if base.components == 0 || base.family == "Indexed" {
		return nil, fmt.Errorf("%w: Indexed over %s", ErrUnsupportedImage, base.family)
	}
	hival, ok := core.Number(v[2])
	if !ok || hival < 0 || hival > 255 {
		return nil, fmt.Errorf("invalid Indexed hival %v", v[2])
	}
	var lookup []byte
	switch t := v[3].(type) {
	case core.String:
		lookup = []byte(t)
	case *core.Stream:
		if lookup, err = t.Decode(); err != nil {
			return nil, fmt.Errorf("Indexed lookup: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid Indexed lookup %T", v[3])
	}
	return &colorSpace{family: "Indexed", components: 1, base: base, hival: int(hival), lookup: lookup}, nil
}

// DecodeImage converts an image XObject to an image.Image. JPEG data is
// decoded by image/jpeg; everything else is unpacked from the filtered
// samples. A /Decode array is applied, so the result holds the colors the
// image is painted with.
func (r *Reader) DecodeImage(stream *core.Stream) (image.Image, error) {
	info, err := r.ImageInfo(stream)
	if err != nil {
		return nil, err
	}

	switch lastFilter(info.Filters) {
	case "DCTDecode":
		data, err := stream.Decode()
		if err != nil {
			return nil, err
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode JPEG: %w", err)
		}
		return r.decodeJPEGRanges(stream.Dict, img)
	case "JPXDecode", "JBIG2Decode":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, lastFilter(info.Filters))
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image stream: %w", err)
	}

	cs := &colorSpace{family: "DeviceGray", components: 1}
	if !info.ImageMask {
		if csObj := stream.Dict.Get("ColorSpace"); csObj != nil {
			if cs, err = r.parseColorSpace(csObj); err != nil {
				return nil, err
			}
		}
	}
	s := samples{data: data, width: info.Width, bpc: info.BitsPerComponent, comps: cs.components}
	s.decode = r.decodeArray(stream.Dict, cs.components)
	if err := s.check(info.Height); err != nil {
		return nil, err
	}

	switch cs.family {
	case "DeviceGray":
		return s.gray(info.Height), nil
	case "DeviceRGB":
		return s.rgb(info.Height), nil
	case "DeviceCMYK":
		return s.cmyk(info.Height), nil
	case "Indexed":
		return s.paletted(info.Height, cs), nil
	}
	return nil, fmt.Errorf("%w: color space %s", ErrUnsupportedImage, cs.family)
}

// decodeArray returns the /Decode ranges for n components, or nil when
// the entry is absent or malformed.
func (r *Reader) decodeArray(dict core.Dict, n int) []float64 {
	if dict.Get("Decode") == nil || n == 0 {
		return nil
	}
	obj, err := r.ResolveDeep(dict.Get("Decode"))
	if err != nil {
		return nil
	}
	arr, ok := obj.(core.Array)
	if !ok || len(arr) != 2*n {
		return nil
	}
	v, err := arr.Numbers()
	if err != nil {
		return nil
	}
	return v
}

// decodeJPEGRanges applies /Decode to a decoded JPEG. image/jpeg already
// undoes the Adobe CMYK inversion, so a CMYK JPEG with /Decode is
// rejected rather than guessed at.
func (r *Reader) decodeJPEGRanges(dict core.Dict, img image.Image) (image.Image, error) {
	switch m := img.(type) {
	case *image.Gray:
		decode := r.decodeArray(dict, 1)
		if decode == nil {
			return img, nil
		}
		out := image.NewGray(m.Bounds())
		for i, v := range m.Pix {
			out.Pix[i] = mapSample(int(v), 255, decode[0], decode[1])
		}
		return out, nil
	case *image.CMYK:
		if r.decodeArray(dict, 4) != nil {
			return nil, fmt.Errorf("%w: CMYK JPEG with /Decode", ErrUnsupportedImage)
		}
		return img, nil
	}
	decode := r.decodeArray(dict, 3)
	if decode == nil {
		return img, nil
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			out.SetRGBA(x, y, color.RGBA{
				R: mapSample(int(c.R), 255, decode[0], decode[1]),
				G: mapSample(int(c.G), 255, decode[2], decode[3]),
				B: mapSample(int(c.B), 255, decode[4], decode[5]),
				A: 255,
			})
		}
	}
	return out, nil
}

// mapSample maps v in [0, top] onto [dmin, dmax] and scales the result,
// clamped to [0, 1], to a byte.
func mapSample(v, top int, dmin, dmax float64) uint8 {
	f := dmin + float64(v)*(dmax-dmin)/float64(top)
	f = math.Min(math.Max(f, 0), 1)
	return uint8(math.Round(f * 255))
}

// samples unpacks rows of packed components. Rows start on byte
// boundaries.
type samples struct {
	data  []byte
	width int
	bpc   int
	comps int
	// decode holds /Decode ranges, two per component; nil for the default.
	decode []float64
}

func (s samples) rowBytes() int {
	return (s.width*s.comps*s.bpc + 7) / 8
}

func (s samples) check(height int) error {
	switch s.bpc {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: %d bits per component", ErrUnsupportedImage, s.bpc)
	}
	if s.comps == 0 {
		return fmt.Errorf("%w: unknown component count", ErrUnsupportedImage)
	}
	if need := s.rowBytes() * height; len(s.data) < need {
		return fmt.Errorf("insufficient data: got %d, expected %d", len(s.data), need)
	}
	return nil
}

// raw returns the i-th component of row y unscaled.
func (s samples) raw(y, i int) int {
	row := s.data[y*s.rowBytes():]
	switch s.bpc {
	case 8:
		return int(row[i])
	case 16:
		return int(row[2*i])<<8 | int(row[2*i+1])
	}
	bit := i * s.bpc
	shift := 8 - s.bpc - bit%8
	return int(row[bit/8]>>shift) & (1<<s.bpc - 1)
}

// at returns the i-th component of row y scaled to 0-255.
func (s samples) at(y, i int) uint8 {
	v := s.raw(y, i)
	if s.decode != nil {
		c := i % s.comps
		return mapSample(v, 1<<s.bpc-1, s.decode[2*c], s.decode[2*c+1])
	}
	switch s.bpc {
	case 8:
		return uint8(v)
	case 16:
		return uint8(v >> 8)
	}
	return uint8(v * 255 / (1<<s.bpc - 1))
}

func (s samples) gray(height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < s.width; x++ {
			img.Pix[y*img.Stride+x] = s.at(y, x)
		}
	}
	return img
}

func (s samples) rgb(height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < s.width; x++ {
			o := y*img.Stride + 4*x
			img.Pix[o+0] = s.at(y, 3*x)
			img.Pix[o+1] = s.at(y, 3*x+1)
			img.Pix[o+2] = s.at(y, 3*x+2)
			img.Pix[o+3] = 255
		}
	}
	return img
}

func (s samples) cmyk(height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < s.width; x++ {
			r, g, b := color.CMYKToRGB(s.at(y, 4*x), s.at(y, 4*x+1), s.at(y, 4*x+2), s.at(y, 4*x+3))
			o := y*img.Stride + 4*x
			img.Pix[o+0], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, 255
		}
	}
	return img
}

// paletted maps indices through the lookup table. Indices above hival,
// and entries the table is too short for, are black.
func (s samples) paletted(height int, cs *colorSpace) *image.Paletted {
	n := cs.base.components
	pal := make(color.Palette, cs.hival+1)
	for i := range pal {
		entry := make([]uint8, n)
		if (i+1)*n <= len(cs.lookup) {
			copy(entry, cs.lookup[i*n:])
		}
		switch n {
		case 1:
			pal[i] = color.Gray{Y: entry[0]}
		case 3:
			pal[i] = color.RGBA{R: entry[0], G: entry[1], B: entry[2], A: 255}
		case 4:
			r, g, b := color.CMYKToRGB(entry[0], entry[1], entry[2], entry[3])
			pal[i] = color.RGBA{R: r, G: g, B: b, A: 255}
		}
	}
	if len(pal) < 256 {
		if n == 1 {
			pal = append(pal, color.Gray{})
		} else {
			pal = append(pal, color.RGBA{A: 255})
		}
	}

	img := image.NewPaletted(image.Rect(0, 0, s.width, height), pal)
	for y := 0; y < height; y++ {
		for x := 0; x < s.width; x++ {
			idx := s.raw(y, x)
			if s.decode != nil {
				f := s.decode[0] + float64(idx)*(s.decode[1]-s.decode[0])/float64(int(1)<<s.bpc-1)
				idx = max(int(math.Round(f)), 0)
			}
			if idx > cs.hival {
				idx = len(pal) - 1
			}
			img.Pix[y*img.Stride+x] = uint8(idx)
		}
	}
	return img
}
