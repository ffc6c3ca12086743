// Package docmodel describes the document model consumed by the analysis
// and recompression passes: ordered pages, their resource scopes, and the
// image and form XObjects those scopes bind.
//
// [XObject] is a closed variant. Callers dispatch with a type switch over
// [*Image] and [*Form]:
//
//	switch x := obj.(type) {
//	case *docmodel.Image:
//	    ...
//	case *docmodel.Form:
//	    ...
//	}
package docmodel

import (
	"image"

	"github.com/tsawler/pdfshrink/model"
)

// Document is an ordered list of pages.
type Document interface {
	Pages() ([]Page, error)
}

// Page is one page of a document.
type Page interface {
	// Index is the zero-based position of the page in the document.
	Index() int
	// Resources returns the page's resource scope. It may be empty but is
	// never nil when err is nil.
	Resources() (Resources, error)
	// Content returns the concatenated, decoded content streams.
	Content() ([]byte, error)
	MediaBox() (model.BBox, error)
	// UserUnit is the size of one default user space unit in 1/72 inch.
	UserUnit() float64
}

// Resources binds XObject names to images and forms.
type Resources interface {
	// Names lists the bound XObject names in sorted order.
	Names() []string
	// Lookup returns the XObject bound to name.
	Lookup(name string) (XObject, error)
	// Replace substitutes new data for the image bound to name.
	Replace(name string, r *Replacement) error
}

// XObject is either an *Image or a *Form.
type XObject interface {
	xobject()
}

// Format tags the encoding family of an image.
type Format string

const (
	FormatJPEG  Format = "jpg"
	FormatPNG   Format = "png"
	FormatTIFF  Format = "tiff"
	FormatJPX   Format = "jpx"
	FormatJBIG2 Format = "jb2"
)

// Recompressible reports whether images of this format can be re-encoded.
func (f Format) Recompressible() bool {
	return f == FormatJPEG || f == FormatPNG
}

// FormatFromFilters derives the format tag from a filter chain. The last
// filter decides; a chain without an image codec is lossless.
func FormatFromFilters(filters []string) Format {
	if len(filters) == 0 {
		return FormatPNG
	}
	switch filters[len(filters)-1] {
	case "DCTDecode", "DCT":
		return FormatJPEG
	case "JPXDecode":
		return FormatJPX
	case "CCITTFaxDecode", "CCF":
		return FormatTIFF
	case "JBIG2Decode":
		return FormatJBIG2
	}
	return FormatPNG
}

// Image is an image XObject.
type Image struct {
	Name             string
	ID               int // object number; 0 for direct objects
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string // family name, e.g. DeviceRGB or Indexed
	Filters          []string
	Length           int64 // encoded byte length
	Format           Format
	// ImageMask marks a 1-bit stencil painted in the current fill color.
	ImageMask bool

	decode func() (image.Image, error)
	raw    func() ([]byte, error)
}

func (*Image) xobject() {}

// NewImage wires the data accessors of an image. Either may be nil.
func NewImage(img Image, decode func() (image.Image, error), raw func() ([]byte, error)) *Image {
	img.decode = decode
	img.raw = raw
	return &img
}

// Decode returns the image samples.
func (i *Image) Decode() (image.Image, error) {
	if i.decode == nil {
		return nil, ErrNoData
	}
	return i.decode()
}

// Raw returns the encoded stream bytes.
func (i *Image) Raw() ([]byte, error) {
	if i.raw == nil {
		return nil, ErrNoData
	}
	return i.raw()
}

// Form is a form XObject: a reusable block of content.
type Form struct {
	Name      string
	ID        int
	Matrix    model.Matrix
	HasMatrix bool
	// Resources is nil when the form has no resource dictionary of its own.
	Resources Resources

	content func() ([]byte, error)
}

func (*Form) xobject() {}

// NewForm wires the content accessor of a form.
func NewForm(f Form, content func() ([]byte, error)) *Form {
	f.content = content
	return &f
}

// Content returns the form's decoded content stream.
func (f *Form) Content() ([]byte, error) {
	if f.content == nil {
		return nil, ErrNoData
	}
	return f.content()
}

// Replacement is new image data for an existing image binding.
type Replacement struct {
	Width            int
	Height           int
	BitsPerComponent int
	// ColorSpace is a name (DeviceGray, DeviceRGB, DeviceCMYK) unless
	// Palette is set, in which case an Indexed space over DeviceRGB is
	// written with Palette as its lookup table.
	ColorSpace  string
	Palette     []byte
	Filter      string
	DecodeParms map[string]int
	Data        []byte
}

// PaletteEntries returns the number of RGB triples in Palette.
func (r *Replacement) PaletteEntries() int {
	return len(r.Palette) / 3
}
