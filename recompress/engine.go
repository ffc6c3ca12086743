package recompress

import (
	"fmt"
	"strings"

	"github.com/tsawler/pdfshrink/config"
	"github.com/tsawler/pdfshrink/contentstream"
	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/logging"
	"github.com/tsawler/pdfshrink/report"
	"github.com/tsawler/pdfshrink/resolution"
)

// Engine applies extraction, import and shrinking to a document.
type Engine struct {
	Config config.Config
	Sink   diag.Sink
	// Resizer defaults to AreaAverage.
	Resizer Resizer
	// JPEG and PNG default to JPEGEncoder with Config.JPEGQuality and
	// PNGEncoder.
	JPEG Encoder
	PNG  Encoder
	// MaxDepth caps form nesting; zero means contentstream.DefaultMaxDepth.
	MaxDepth int
}

// Result summarizes a run.
type Result struct {
	// Images has one entry per physical image, in the order first found.
	Images    []report.ImageStat
	Shrunk    int
	Imported  int
	Extracted int
	Skipped   int
	Failed    int

	BytesBefore int64
	BytesAfter  int64
}

// binding is one name under which an image is reachable.
type binding struct {
	page int // zero-based
	res  docmodel.Resources
	name string
}

// physical is one image object with all of its bindings.
type physical struct {
	img      *docmodel.Image
	bindings []binding
}

type run struct {
	e       *Engine
	sink    diag.Sink
	m       *resolution.Map
	imports map[string]ImportFile
	extract *extractor
	result  Result
}

// Run processes every image of doc against the resolution map m. Pages are
// visited in order, names within a scope in sorted order. Only failures to
// enumerate the document or read the import directory are returned;
// per-image problems become diagnostics.
func (e *Engine) Run(doc docmodel.Document, m *resolution.Map) (*Result, error) {
	if err := e.Config.Validate(); err != nil {
		return nil, err
	}
	r := &run{e: e, sink: diag.OrDiscard(e.Sink), m: m}
	if e.Config.ImportDirectory != "" && !e.Config.ReportOnly {
		files, err := ScanImportDir(e.Config.ImportDirectory)
		if err != nil {
			return nil, err
		}
		r.imports = files
	}
	if e.Config.Extract {
		r.extract = newExtractor(e.Config.ExtractDirectory)
	}

	images, err := r.collect(doc)
	if err != nil {
		return nil, err
	}
	for _, p := range images {
		r.process(p)
	}
	r.result.BytesBefore, r.result.BytesAfter = report.Totals(r.result.Images)
	return &r.result, nil
}

// collect gathers the image bindings reachable from every page, merging
// bindings of the same object.
func (r *run) collect(doc docmodel.Document) ([]*physical, error) {
	pages, err := doc.Pages()
	if err != nil {
		return nil, fmt.Errorf("pages: %w", err)
	}
	maxDepth := r.e.MaxDepth
	if maxDepth <= 0 {
		maxDepth = contentstream.DefaultMaxDepth
	}

	var out []*physical
	byID := make(map[int]*physical)
	add := func(b binding, img *docmodel.Image) {
		if img.ID != 0 {
			if p, ok := byID[img.ID]; ok {
				for _, seen := range p.bindings {
					if seen.page == b.page && seen.name == b.name && seen.res == b.res {
						return
					}
				}
				p.bindings = append(p.bindings, b)
				return
			}
		}
		p := &physical{img: img, bindings: []binding{b}}
		if img.ID != 0 {
			byID[img.ID] = p
		}
		out = append(out, p)
	}

	var scan func(page int, res docmodel.Resources, depth int, forms map[int]bool)
	scan = func(page int, res docmodel.Resources, depth int, forms map[int]bool) {
		for _, name := range res.Names() {
			x, err := res.Lookup(name)
			if err != nil {
				r.sink.Report(diag.Event{Kind: diag.ContentError, Page: page + 1, Resource: name, Message: err.Error()})
				continue
			}
			switch x := x.(type) {
			case *docmodel.Image:
				add(binding{page: page, res: res, name: name}, x)
			case *docmodel.Form:
				if x.Resources == nil || depth+1 > maxDepth || (x.ID != 0 && forms[x.ID]) {
					continue
				}
				if x.ID != 0 {
					forms[x.ID] = true
				}
				scan(page, x.Resources, depth+1, forms)
			}
		}
	}

	for _, p := range pages {
		res, err := p.Resources()
		if err != nil {
			return nil, fmt.Errorf("page %d resources: %w", p.Index()+1, err)
		}
		scan(p.Index(), res, 0, make(map[int]bool))
	}
	return out, nil
}

// dpi returns the smallest resolution recorded for any binding of p.
func (r *run) dpi(p *physical) (float64, bool) {
	best, found := 0.0, false
	for _, b := range p.bindings {
		v, err := r.m.Lookup(resolution.KeyFor(r.e.Config.KeyScope, b.page, b.name))
		if err != nil {
			continue
		}
		if !found || v < best {
			best, found = v, true
		}
	}
	return best, found
}

func (r *run) report(kind diag.Kind, b binding, format string, args ...interface{}) {
	r.sink.Report(diag.Event{Kind: kind, Page: b.page + 1, Resource: b.name, Message: fmt.Sprintf(format, args...)})
}

func (r *run) process(p *physical) {
	first := p.bindings[0]
	img := p.img
	cfg := r.e.Config
	log := logging.Logger().With("page", first.page+1, "resource", first.name)

	stat := report.ImageStat{
		Page:         first.page + 1,
		Name:         first.name,
		Key:          resolution.KeyFor(cfg.KeyScope, first.page, first.name),
		Width:        img.Width,
		Height:       img.Height,
		Format:       string(img.Format),
		Filters:      img.Filters,
		Length:       img.Length,
		BitsPerPixel: report.BitsPerPixel(img.Length, img.Width, img.Height),
		Outcome:      report.Kept,
	}
	defer func() { r.result.Images = append(r.result.Images, stat) }()

	if len(p.bindings) > 1 {
		var names []string
		seen := make(map[string]bool)
		for _, b := range p.bindings {
			if k := resolution.KeyFor(resolution.ScopePage, b.page, b.name); !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
		r.report(diag.SharedImage, first, "object %d is bound as %s", img.ID, strings.Join(names, ", "))
	}

	dpi, painted := r.dpi(p)
	stat.DPI = dpi

	if r.extract != nil {
		path, err := r.extract.write(img, r.fileKey(first))
		if err != nil {
			r.report(diag.CodecFailure, first, "extract: %v", err)
		} else {
			r.result.Extracted++
			r.report(diag.ImageExtracted, first, "written to %s", path)
		}
	}
	if cfg.ReportOnly {
		return
	}

	if f, ok := r.importFor(p); ok {
		rep, err := loadImport(f, cfg.StrictChecksums, r.sink)
		if err != nil {
			r.fail(&stat, first, "import", err)
			return
		}
		if !r.replace(&stat, p, rep, "import") {
			return
		}
		stat.Outcome = report.Imported
		r.result.Imported++
		r.report(diag.ImageImported, first, "imported %s as %dx%d %s", f.Path, rep.Width, rep.Height, rep.ColorSpace)
		return
	}

	if cfg.SkipShrink {
		return
	}
	if !painted {
		stat.Outcome = report.Skipped
		r.result.Skipped++
		r.report(diag.ResolutionLookupMiss, first, "no resolution recorded for %s; image is never painted", stat.Key)
		return
	}
	if !ShouldShrink(dpi, cfg.ResolutionThreshold) {
		return
	}
	if !img.Format.Recompressible() {
		stat.Outcome = report.Skipped
		r.result.Skipped++
		r.report(diag.UnsupportedImage, first, "%.0f dpi but %s images cannot be re-encoded", dpi, img.Format)
		return
	}
	if img.ImageMask {
		stat.Outcome = report.Skipped
		r.result.Skipped++
		r.report(diag.UnsupportedImage, first, "%.0f dpi but stencil masks are not resampled", dpi)
		return
	}

	w, h := NewDimensions(img.Width, img.Height, dpi, cfg.TargetResolution)
	log.Debug("resizing image", "from", fmt.Sprintf("%dx%d", img.Width, img.Height), "to", fmt.Sprintf("%dx%d", w, h), "dpi", dpi)
	rep, err := r.shrink(img, w, h)
	if err != nil {
		r.fail(&stat, first, "shrink", err)
		return
	}
	if !r.replace(&stat, p, rep, "shrink") {
		return
	}
	stat.Outcome = report.Shrunk
	r.result.Shrunk++
	r.report(diag.ImageShrunk, first, "%dx%d -> %dx%d at %.0f dpi, %d -> %d bytes",
		img.Width, img.Height, w, h, dpi, img.Length, len(rep.Data))
}

// fileKey is the base file name for the image bound as b: its resolution
// key, with page-scoped keys written "<page>-<name>".
func (r *run) fileKey(b binding) string {
	return strings.ReplaceAll(resolution.KeyFor(r.e.Config.KeyScope, b.page, b.name), "/", "-")
}

// importFor finds the import file for p. For each binding the name
// extraction gives a colliding image, "<key>-<id>", is tried before the
// plain key.
func (r *run) importFor(p *physical) (ImportFile, bool) {
	if r.imports == nil {
		return ImportFile{}, false
	}
	for _, b := range p.bindings {
		key := r.fileKey(b)
		if p.img.ID != 0 {
			if f, ok := matchImport(r.imports, fmt.Sprintf("%s-%d", key, p.img.ID)); ok {
				return f, true
			}
		}
		if f, ok := matchImport(r.imports, key); ok {
			return f, true
		}
	}
	return ImportFile{}, false
}

func (r *run) shrink(img *docmodel.Image, w, h int) (*docmodel.Replacement, error) {
	src, err := img.Decode()
	if err != nil {
		return nil, codecError("decode", err)
	}
	resizer := r.e.Resizer
	if resizer == nil {
		resizer = AreaAverage{}
	}
	small, err := resizer.Resize(src, w, h)
	if err != nil {
		return nil, codecError("resize", err)
	}

	var enc Encoder
	if img.Format == docmodel.FormatJPEG {
		enc = r.e.JPEG
		if enc == nil {
			enc = JPEGEncoder{Quality: r.e.Config.JPEGQuality}
		}
	} else {
		enc = r.e.PNG
		if enc == nil {
			enc = PNGEncoder{}
		}
	}
	return enc.Encode(small)
}

// replace substitutes rep under every binding of p.
func (r *run) replace(stat *report.ImageStat, p *physical, rep *docmodel.Replacement, op string) bool {
	for _, b := range p.bindings {
		if err := b.res.Replace(b.name, rep); err != nil {
			r.fail(stat, b, op, fmt.Errorf("replace: %w", err))
			return false
		}
	}
	stat.NewWidth, stat.NewHeight = rep.Width, rep.Height
	stat.NewLength = int64(len(rep.Data))
	return true
}

func (r *run) fail(stat *report.ImageStat, b binding, op string, err error) {
	stat.Outcome = report.Failed
	r.result.Failed++
	r.report(diag.CodecFailure, b, "%s: %v; keeping original", op, err)
}
