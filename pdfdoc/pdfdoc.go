package pdfdoc

import (
	"fmt"
	"image"
	"io"
	"os"
	"sort"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/model"
	"github.com/tsawler/pdfshrink/pages"
	"github.com/tsawler/pdfshrink/reader"
	"github.com/tsawler/pdfshrink/writer"
)

// Document is a PDF file opened for analysis and image replacement.
type Document struct {
	r      *reader.Reader
	pages  []docmodel.Page
	staged map[int]*core.Stream
}

var _ docmodel.Document = (*Document)(nil)

// Open opens the PDF file at path.
func Open(path string) (*Document, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, err
	}
	return &Document{r: r, staged: make(map[int]*core.Stream)}, nil
}

// New reads a PDF of the given size from src.
func New(src io.ReaderAt, size int64) (*Document, error) {
	r, err := reader.NewReader(src, size)
	if err != nil {
		return nil, err
	}
	return &Document{r: r, staged: make(map[int]*core.Stream)}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.r.Close()
}

// Reader exposes the underlying object reader.
func (d *Document) Reader() *reader.Reader { return d.r }

// Pages implements docmodel.Document.
func (d *Document) Pages() ([]docmodel.Page, error) {
	if d.pages != nil {
		return d.pages, nil
	}
	list, err := d.r.Pages()
	if err != nil {
		return nil, err
	}
	out := make([]docmodel.Page, len(list))
	for i, p := range list {
		out[i] = &Page{doc: d, page: p}
	}
	d.pages = out
	return out, nil
}

// Modified reports whether any image has been replaced.
func (d *Document) Modified() bool { return len(d.staged) > 0 }

// Save writes the document. Without replacements the original bytes are
// copied unchanged.
func (d *Document) Save(w io.Writer) error {
	n, err := io.Copy(w, d.r.Source())
	if err != nil {
		return fmt.Errorf("copy original: %w", err)
	}
	if !d.Modified() {
		return nil
	}

	xref := d.r.XRefTable()
	u := &writer.Update{
		Prev:       xref.Offset,
		Size:       d.r.NumObjects(),
		Trailer:    d.r.Trailer(),
		XRefStream: xref.IsStream,
	}
	nums := make([]int, 0, len(d.staged))
	for num := range d.staged {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		gen := 0
		if e, ok := xref.Get(num); ok && !e.Compressed {
			gen = e.Generation
		}
		u.Add(core.IndirectRef{Number: num, Generation: gen}, d.staged[num])
	}
	if _, err := u.WriteTo(w, n); err != nil {
		return fmt.Errorf("write update: %w", err)
	}
	return nil
}

// SaveFile writes the document to path.
func (d *Document) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// stream returns the staged replacement for num or the stored object.
func (d *Document) stream(num int) (*core.Stream, error) {
	if s, ok := d.staged[num]; ok {
		return s, nil
	}
	obj, err := d.r.GetObject(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is %T, not a stream", num, obj)
	}
	return s, nil
}

// Page implements docmodel.Page.
type Page struct {
	doc  *Document
	page *pages.Page
}

func (p *Page) Index() int { return p.page.Index() }

func (p *Page) Content() ([]byte, error) { return p.page.Content() }

func (p *Page) MediaBox() (model.BBox, error) { return p.page.MediaBox() }

func (p *Page) UserUnit() float64 { return p.page.UserUnit() }

func (p *Page) Resources() (docmodel.Resources, error) {
	dict, err := p.page.Resources()
	if err != nil {
		return nil, err
	}
	res, err := p.doc.resources(dict)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Document) resources(dict core.Dict) (*Resources, error) {
	xobjects, err := d.r.ResolveDict(dict.Get("XObject"))
	if err != nil {
		return nil, fmt.Errorf("XObject dictionary: %w", err)
	}
	return &Resources{doc: d, xobjects: xobjects}, nil
}

// Resources implements docmodel.Resources over an /XObject dictionary.
type Resources struct {
	doc      *Document
	xobjects core.Dict
}

// Names returns the XObject names in sorted order.
func (r *Resources) Names() []string {
	return r.xobjects.Keys()
}

func (r *Resources) ref(name string) (core.IndirectRef, error) {
	obj := r.xobjects.Get(name)
	if obj == nil {
		return core.IndirectRef{}, fmt.Errorf("%s: %w", name, docmodel.ErrNotFound)
	}
	ref, ok := obj.(core.IndirectRef)
	if !ok {
		return core.IndirectRef{}, fmt.Errorf("%s: XObject is a direct %T", name, obj)
	}
	return ref, nil
}

// Lookup implements docmodel.Resources.
func (r *Resources) Lookup(name string) (docmodel.XObject, error) {
	ref, err := r.ref(name)
	if err != nil {
		return nil, err
	}
	stream, err := r.doc.stream(ref.Number)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	subtype, _ := stream.Dict.GetName("Subtype")
	switch subtype {
	case "Image":
		return r.doc.image(name, ref.Number, stream)
	case "Form":
		return r.doc.form(name, ref.Number, stream)
	}
	return nil, fmt.Errorf("%s: XObject subtype %q: %w", name, subtype, docmodel.ErrNotFound)
}

func (d *Document) image(name string, num int, stream *core.Stream) (*docmodel.Image, error) {
	info, err := d.r.ImageInfo(stream)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return docmodel.NewImage(docmodel.Image{
		Name:             name,
		ID:               num,
		Width:            info.Width,
		Height:           info.Height,
		BitsPerComponent: info.BitsPerComponent,
		ColorSpace:       info.ColorSpace,
		Filters:          info.Filters,
		Length:           info.Length,
		Format:           docmodel.FormatFromFilters(info.Filters),
		ImageMask:        info.ImageMask,
	}, func() (image.Image, error) {
		return d.r.DecodeImage(stream)
	}, func() ([]byte, error) {
		return stream.Data, nil
	}), nil
}

func (d *Document) form(name string, num int, stream *core.Stream) (*docmodel.Form, error) {
	f := docmodel.Form{Name: name, ID: num}
	if arr, err := d.r.ResolveDeep(stream.Dict.Get("Matrix")); err == nil {
		if a, ok := arr.(core.Array); ok {
			if v, err := a.Numbers(); err == nil {
				f.Matrix, f.HasMatrix = model.NewMatrix(v)
			}
		}
	}
	if resObj := stream.Dict.Get("Resources"); resObj != nil {
		dict, err := d.r.ResolveDict(resObj)
		if err != nil {
			return nil, fmt.Errorf("%s: form resources: %w", name, err)
		}
		if dict != nil {
			res, err := d.resources(dict)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			f.Resources = res
		}
	}
	return docmodel.NewForm(f, stream.Decode), nil
}

// keptEntries survive a replacement. Entries describing the old samples
// (Decode, color key masks, filters) do not.
var keptEntries = []string{"SMask", "Intent", "Interpolate", "Metadata", "OC", "Name", "StructParent"}

// Replace implements docmodel.Resources. The new stream takes the old
// object number; nothing is written until Save.
func (r *Resources) Replace(name string, rep *docmodel.Replacement) error {
	ref, err := r.ref(name)
	if err != nil {
		return err
	}
	old, err := r.doc.stream(ref.Number)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if subtype, _ := old.Dict.GetName("Subtype"); subtype != "Image" {
		return fmt.Errorf("%s: %w", name, docmodel.ErrNotImage)
	}

	dict := core.Dict{
		"Type":             core.Name("XObject"),
		"Subtype":          core.Name("Image"),
		"Width":            core.Int(rep.Width),
		"Height":           core.Int(rep.Height),
		"BitsPerComponent": core.Int(rep.BitsPerComponent),
		"ColorSpace":       colorSpaceObject(rep),
	}
	if rep.Filter != "" {
		dict["Filter"] = core.Name(rep.Filter)
	}
	if len(rep.DecodeParms) > 0 {
		parms := core.Dict{}
		for k, v := range rep.DecodeParms {
			parms[k] = core.Int(v)
		}
		dict["DecodeParms"] = parms
	}
	for _, key := range keptEntries {
		if v := old.Dict.Get(key); v != nil {
			dict[key] = v
		}
	}
	if m, ok := old.Dict.Get("Mask").(core.IndirectRef); ok {
		dict["Mask"] = m
	}

	r.doc.staged[ref.Number] = &core.Stream{Dict: dict, Data: rep.Data}
	return nil
}

// colorSpaceObject builds [/Indexed /DeviceRGB hival <lookup>] for
// palette replacements and a plain name otherwise.
func colorSpaceObject(rep *docmodel.Replacement) core.Object {
	if len(rep.Palette) == 0 {
		return core.Name(rep.ColorSpace)
	}
	hival := rep.PaletteEntries() - 1
	if hival > 255 {
		hival = 255
	}
	return core.Array{core.Name("Indexed"), core.Name("DeviceRGB"), core.Int(hival), core.String(rep.Palette)}
}
