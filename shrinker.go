package pdfshrink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsawler/pdfshrink/config"
	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/format"
	"github.com/tsawler/pdfshrink/logging"
	"github.com/tsawler/pdfshrink/pdfdoc"
	"github.com/tsawler/pdfshrink/recompress"
	"github.com/tsawler/pdfshrink/report"
	"github.com/tsawler/pdfshrink/resolution"
)

// Shrinker provides a fluent interface for analysing and shrinking the
// images of a PDF. Each configuration method returns a new Shrinker, so a
// configured value can be reused as a template.
type Shrinker struct {
	// Source
	filename string

	// Lifecycle
	doc       *pdfdoc.Document
	ownsDoc   bool // true if we opened the document and should close it
	docOpened bool

	options options
}

// Result is the outcome of Run.
type Result struct {
	recompress.Result
	// Output is the written file; empty in report-only mode.
	Output string
	// RunID identifies the run in the history database, when one is kept.
	RunID string
}

// clone creates a shallow copy of the Shrinker with a copy of options.
func (s *Shrinker) clone() *Shrinker {
	return &Shrinker{
		filename:  s.filename,
		doc:       s.doc,
		ownsDoc:   s.ownsDoc,
		docOpened: s.docOpened,
		options:   s.options.clone(),
	}
}

// ensureDoc opens the document if not already open.
func (s *Shrinker) ensureDoc() error {
	if s.docOpened {
		return nil
	}
	if s.filename == "" {
		return fmt.Errorf("no filename specified")
	}
	f, err := format.DetectFile(s.filename)
	if err != nil {
		return err
	}
	if f != format.PDF {
		return fmt.Errorf("unsupported file format: %s", f)
	}
	doc, err := pdfdoc.Open(s.filename)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	s.doc = doc
	s.ownsDoc = true
	s.docOpened = true
	return nil
}

// Close releases the document if this Shrinker opened it. It is safe to
// call Close multiple times.
func (s *Shrinker) Close() error {
	if s.ownsDoc && s.doc != nil {
		err := s.doc.Close()
		s.doc = nil
		s.ownsDoc = false
		s.docOpened = false
		return err
	}
	return nil
}

// ============================================================================
// Configuration Methods (return new Shrinker instance)
// ============================================================================

// TargetResolution sets the DPI shrunk images are resampled to.
func (s *Shrinker) TargetResolution(dpi float64) *Shrinker {
	n := s.clone()
	n.options.config.TargetResolution = dpi
	return n
}

// Threshold sets the DPI above which images are shrunk.
func (s *Shrinker) Threshold(dpi float64) *Shrinker {
	n := s.clone()
	n.options.config.ResolutionThreshold = dpi
	return n
}

// Quality sets the JPEG quality, from 0 to 1.
func (s *Shrinker) Quality(q float64) *Shrinker {
	n := s.clone()
	n.options.config.JPEGQuality = q
	return n
}

// Extract writes every image to dir during the run.
func (s *Shrinker) Extract(dir string) *Shrinker {
	n := s.clone()
	n.options.config.Extract = true
	n.options.config.ExtractDirectory = dir
	return n
}

// Import substitutes images from dir whose base names match resource
// names.
func (s *Shrinker) Import(dir string) *Shrinker {
	n := s.clone()
	n.options.config.ImportDirectory = dir
	return n
}

// ReportOnly makes Run collect statistics without writing anything.
func (s *Shrinker) ReportOnly() *Shrinker {
	n := s.clone()
	n.options.config.ReportOnly = true
	return n
}

// Scope selects how resolution keys are formed.
//
// Example:
//
//	pdfshrink.Open("doc.pdf").Scope(resolution.ScopePage).Run("")
func (s *Shrinker) Scope(scope resolution.Scope) *Shrinker {
	n := s.clone()
	n.options.config.KeyScope = scope
	return n
}

// StrictChecksums rejects imported PNGs whose critical chunks fail their
// CRC.
func (s *Shrinker) StrictChecksums() *Shrinker {
	n := s.clone()
	n.options.config.StrictChecksums = true
	return n
}

// History records runs in the SQLite database at path.
func (s *Shrinker) History(path string) *Shrinker {
	n := s.clone()
	n.options.config.HistoryPath = path
	return n
}

// MaxDepth caps form nesting.
func (s *Shrinker) MaxDepth(depth int) *Shrinker {
	n := s.clone()
	n.options.maxDepth = depth
	return n
}

// Diagnostics forwards every diagnostic to sink, progress events included.
// The returned warnings are unaffected.
func (s *Shrinker) Diagnostics(sink diag.Sink) *Shrinker {
	n := s.clone()
	n.options.sink = sink
	return n
}

// WithConfig replaces the whole configuration.
func (s *Shrinker) WithConfig(cfg config.Config) *Shrinker {
	n := s.clone()
	n.options.config = cfg
	return n
}

// Config returns the effective configuration.
func (s *Shrinker) Config() config.Config {
	return s.options.config
}

// ============================================================================
// Terminal Operations
// ============================================================================

// PageCount returns the number of pages.
func (s *Shrinker) PageCount() (int, error) {
	if err := s.ensureDoc(); err != nil {
		return 0, err
	}
	defer s.Close()
	pages, err := s.doc.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// Analyze computes the effective resolution of every painted image.
//
// Example:
//
//	m, _, err := pdfshrink.Open("doc.pdf").Analyze()
//	for _, key := range m.Keys() {
//	    dpi, _ := m.Lookup(key)
//	    fmt.Printf("%s: %.0f dpi\n", key, dpi)
//	}
func (s *Shrinker) Analyze() (*resolution.Map, []Warning, error) {
	if err := s.options.config.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.ensureDoc(); err != nil {
		return nil, nil, err
	}
	defer s.Close()
	sink := &warningSink{}
	m, err := s.analyze(sink)
	if err != nil {
		return nil, sink.warnings, err
	}
	return m, sink.warnings, nil
}

func (s *Shrinker) analyze(sink *warningSink) (*resolution.Map, error) {
	a := &resolution.Analyzer{
		Scope:    s.options.config.KeyScope,
		Sink:     s.sinkFor(sink),
		MaxDepth: s.options.maxDepth,
	}
	m, occurrences, err := a.Analyze(s.doc)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("analysis finished", "file", s.filename, "placements", len(occurrences), "images", m.Len())
	return m, nil
}

// Stats returns per-image statistics without changing the document. Images
// are written out when extraction is configured.
func (s *Shrinker) Stats() ([]report.ImageStat, []Warning, error) {
	result, warnings, err := s.ReportOnly().Run("")
	if err != nil {
		return nil, warnings, err
	}
	return result.Images, warnings, nil
}

// Run analyses the document, applies import, extraction and shrinking, and
// writes the result to output (DefaultOutput when empty). In report-only
// mode nothing is written.
func (s *Shrinker) Run(output string) (*Result, []Warning, error) {
	cfg := s.options.config
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if !cfg.ReportOnly {
		if output == "" && s.filename == "" {
			return nil, nil, fmt.Errorf("no output path")
		}
		if output == "" {
			output = DefaultOutput(s.filename)
		}
		if samePath(output, s.filename) {
			return nil, nil, fmt.Errorf("output %s would overwrite the input", output)
		}
	}
	if err := s.ensureDoc(); err != nil {
		return nil, nil, err
	}
	defer s.Close()

	sink := &warningSink{}
	m, err := s.analyze(sink)
	if err != nil {
		return nil, sink.warnings, err
	}

	engine := &recompress.Engine{Config: cfg, Sink: s.sinkFor(sink), MaxDepth: s.options.maxDepth}
	res, err := engine.Run(s.doc, m)
	if err != nil {
		return nil, sink.warnings, err
	}
	result := &Result{Result: *res}

	if !cfg.ReportOnly {
		if err := s.doc.SaveFile(output); err != nil {
			return result, sink.warnings, fmt.Errorf("write %s: %w", output, err)
		}
		result.Output = output
		logging.Logger().Info("document written", "file", output,
			"shrunk", res.Shrunk, "imported", res.Imported, "before", res.BytesBefore, "after", res.BytesAfter)
	}

	if cfg.HistoryPath != "" {
		id, err := s.record(result)
		if err != nil {
			return result, sink.warnings, err
		}
		result.RunID = id
	}
	return result, sink.warnings, nil
}

func (s *Shrinker) record(result *Result) (string, error) {
	cfg := s.options.config
	h, err := report.OpenHistory(cfg.HistoryPath)
	if err != nil {
		return "", err
	}
	defer h.Close()

	run := &report.Run{
		Input:            s.filename,
		Output:           result.Output,
		TargetResolution: cfg.TargetResolution,
		Threshold:        cfg.ResolutionThreshold,
		Quality:          cfg.JPEGQuality,
		BytesBefore:      result.BytesBefore,
		BytesAfter:       result.BytesAfter,
	}
	for _, st := range result.Images {
		run.Images = append(run.Images, report.Row(st))
	}
	return h.Record(run)
}

func (s *Shrinker) sinkFor(w *warningSink) diag.Sink {
	if s.options.sink == nil {
		return w
	}
	return diag.Multi{w, s.options.sink}
}

// samePath reports whether a and b name the same file.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if fa, err := os.Stat(a); err == nil {
		if fb, err := os.Stat(b); err == nil {
			return os.SameFile(fa, fb)
		}
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
