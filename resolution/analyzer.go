package resolution

import (
	"fmt"
	"math"

	"github.com/tsawler/pdfshrink/contentstream"
	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/logging"
)

// Analyzer walks every page of a document and builds a resolution Map.
type Analyzer struct {
	Scope Scope
	Sink  diag.Sink
	// MaxDepth caps form nesting; zero uses the walker's default.
	MaxDepth int
}

// Analyze visits the pages in order. It returns the finished map and every
// occurrence that contributed to it. It never modifies the document.
func (a *Analyzer) Analyze(doc docmodel.Document) (*Map, []contentstream.Occurrence, error) {
	pages, err := doc.Pages()
	if err != nil {
		return nil, nil, fmt.Errorf("pages: %w", err)
	}

	sink := diag.OrDiscard(a.Sink)
	log := logging.Logger()
	m := NewMap()
	var occurrences []contentstream.Occurrence

	w := &contentstream.Walker{
		Sink:     sink,
		MaxDepth: a.MaxDepth,
		OnImage: func(o contentstream.Occurrence) {
			page := o.PageIndex + 1
			if o.XScale == 0 || o.YScale == 0 || o.PixelWidth <= 0 || o.PixelHeight <= 0 {
				sink.Report(diag.Event{
					Kind: diag.ContentError, Page: page, Resource: o.Name,
					Message: fmt.Sprintf("degenerate placement %gx%g pt for %dx%d px", o.XScale, o.YScale, o.PixelWidth, o.PixelHeight),
				})
				return
			}

			dpiX, dpiY, dpi := Compute(o)
			if math.IsInf(dpi, 0) || math.IsNaN(dpi) {
				sink.Report(diag.Event{
					Kind: diag.ContentError, Page: page, Resource: o.Name,
					Message: fmt.Sprintf("placement %gx%g pt gives no finite resolution", o.XScale, o.YScale),
				})
				return
			}
			log.Debug("image placement",
				"page", page,
				"resource", o.Name,
				"pixels", fmt.Sprintf("%dx%d", o.PixelWidth, o.PixelHeight),
				"inches", fmt.Sprintf("%.3gx%.3g", o.XScale/PointsPerInch, o.YScale/PointsPerInch),
				"dpi", dpi)

			if IsNonSquare(dpiX, dpiY) {
				sink.Report(diag.Event{
					Kind: diag.NonSquareResolution, Page: page, Resource: o.Name,
					Message: fmt.Sprintf("resolution is not square: %.1f x %.1f dpi", dpiX, dpiY),
				})
			}

			key := KeyFor(a.Scope, o.PageIndex, o.Name)
			if prev, seen := m.Observe(key, dpi); seen {
				sink.Report(diag.Event{
					Kind: diag.ImageReused, Page: page, Resource: o.Name,
					Message: fmt.Sprintf("reused at %.1f dpi, previously %.1f dpi", dpi, prev),
				})
			}
			occurrences = append(occurrences, o)
		},
	}

	for _, p := range pages {
		if err := w.Walk(p); err != nil {
			return nil, nil, err
		}
	}
	return m, occurrences, nil
}
