// Package memdoc is an in-memory docmodel implementation for tests.
package memdoc

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/model"
)

// Document is a list of pages.
type Document struct {
	PageList []*Page
}

// NewDocument numbers the pages in order.
func NewDocument(pages ...*Page) *Document {
	for i, p := range pages {
		p.Number = i
	}
	return &Document{PageList: pages}
}

// Pages implements docmodel.Document.
func (d *Document) Pages() ([]docmodel.Page, error) {
	out := make([]docmodel.Page, len(d.PageList))
	for i, p := range d.PageList {
		out[i] = p
	}
	return out, nil
}

// Page is a single page with literal content.
type Page struct {
	Number  int
	Res     *Resources
	Stream  string
	Box     model.BBox
	Unit    float64
	ReadErr error
}

// NewPage returns a US Letter page.
func NewPage(res *Resources, content string) *Page {
	return &Page{Res: res, Stream: content, Box: model.BBox{Width: 612, Height: 792}}
}

func (p *Page) Index() int { return p.Number }

func (p *Page) Resources() (docmodel.Resources, error) {
	if p.Res == nil {
		return NewResources(), nil
	}
	return p.Res, nil
}

func (p *Page) Content() ([]byte, error) {
	if p.ReadErr != nil {
		return nil, p.ReadErr
	}
	return []byte(p.Stream), nil
}

func (p *Page) MediaBox() (model.BBox, error) { return p.Box, nil }

func (p *Page) UserUnit() float64 {
	if p.Unit == 0 {
		return 1
	}
	return p.Unit
}

// Resources maps names to XObjects and records replacements.
type Resources struct {
	Objects  map[string]docmodel.XObject
	Replaced map[string]*docmodel.Replacement
	// FailReplace makes Replace return an error.
	FailReplace error
}

// NewResources returns an empty scope.
func NewResources() *Resources {
	return &Resources{
		Objects:  make(map[string]docmodel.XObject),
		Replaced: make(map[string]*docmodel.Replacement),
	}
}

// Add binds name and returns r for chaining.
func (r *Resources) Add(name string, x docmodel.XObject) *Resources {
	r.Objects[name] = x
	return r
}

func (r *Resources) Names() []string {
	names := make([]string, 0, len(r.Objects))
	for n := range r.Objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Resources) Lookup(name string) (docmodel.XObject, error) {
	x, ok := r.Objects[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, docmodel.ErrNotFound)
	}
	return x, nil
}

func (r *Resources) Replace(name string, rep *docmodel.Replacement) error {
	if r.FailReplace != nil {
		return r.FailReplace
	}
	x, ok := r.Objects[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, docmodel.ErrNotFound)
	}
	img, ok := x.(*docmodel.Image)
	if !ok {
		return fmt.Errorf("%s: %w", name, docmodel.ErrNotImage)
	}
	r.Replaced[name] = rep
	// Later lookups see the new image, as a real document would.
	r.Objects[name] = docmodel.NewImage(docmodel.Image{
		Name:             name,
		ID:               img.ID,
		Width:            rep.Width,
		Height:           rep.Height,
		BitsPerComponent: rep.BitsPerComponent,
		ColorSpace:       rep.ColorSpace,
		Filters:          []string{rep.Filter},
		Length:           int64(len(rep.Data)),
		Format:           docmodel.FormatFromFilters([]string{rep.Filter}),
	}, nil, func() ([]byte, error) { return rep.Data, nil })
	return nil
}

// Image returns a gray image XObject whose samples form a gradient.
func Image(name string, id, width, height int, format docmodel.Format) *docmodel.Image {
	filter := "FlateDecode"
	if format == docmodel.FormatJPEG {
		filter = "DCTDecode"
	}
	raw := make([]byte, width*height)
	return docmodel.NewImage(docmodel.Image{
		Name:             name,
		ID:               id,
		Width:            width,
		Height:           height,
		BitsPerComponent: 8,
		ColorSpace:       "DeviceGray",
		Filters:          []string{filter},
		Length:           int64(len(raw)),
		Format:           format,
	}, func() (image.Image, error) {
		img := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (width + height))})
			}
		}
		return img, nil
	}, func() ([]byte, error) { return raw, nil })
}

// Form returns a form XObject. A nil matrix means the form has none; a
// nil res means it has no resources of its own.
func Form(name string, id int, matrix *model.Matrix, res *Resources, content string) *docmodel.Form {
	f := docmodel.Form{Name: name, ID: id}
	if matrix != nil {
		f.Matrix, f.HasMatrix = *matrix, true
	}
	if res != nil {
		f.Resources = res
	}
	return docmodel.NewForm(f, func() ([]byte, error) { return []byte(content), nil })
}
