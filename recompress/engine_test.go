package recompress

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tsawler/pdfshrink/config"
	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/internal/memdoc"
	"github.com/tsawler/pdfshrink/model"
	"github.com/tsawler/pdfshrink/report"
	"github.com/tsawler/pdfshrink/resolution"
)

func analyze(t *testing.T, doc docmodel.Document, scope resolution.Scope) *resolution.Map {
	t.Helper()
	m, _, err := (&resolution.Analyzer{Scope: scope}).Analyze(doc)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func runEngine(t *testing.T, cfg config.Config, doc docmodel.Document) (*Result, *diag.Collector) {
	t.Helper()
	var sink diag.Collector
	e := &Engine{Config: cfg, Sink: &sink}
	res, err := e.Run(doc, analyze(t, doc, cfg.KeyScope))
	if err != nil {
		t.Fatal(err)
	}
	return res, &sink
}

// single places a 400x200 image in a 36x18 pt box: 800 dpi.
func single(format docmodel.Format) (*memdoc.Document, *memdoc.Resources) {
	res := memdoc.NewResources().Add("Im1", memdoc.Image("Im1", 1, 400, 200, format))
	return memdoc.NewDocument(memdoc.NewPage(res, "q 36 0 0 18 0 0 cm /Im1 Do Q")), res
}

// TestShrinkPNG tests lossless recompression to the target resolution
func TestShrinkPNG(t *testing.T) {
	doc, res := single(docmodel.FormatPNG)
	result, sink := runEngine(t, config.Default(), doc)

	rep := res.Replaced["Im1"]
	if rep == nil {
		t.Fatal("Im1 was not replaced")
	}
	if rep.Width != 150 || rep.Height != 75 || rep.Filter != "FlateDecode" || rep.DecodeParms["Predictor"] != 15 {
		t.Errorf("replacement = %dx%d %s %v", rep.Width, rep.Height, rep.Filter, rep.DecodeParms)
	}
	if result.Shrunk != 1 || sink.Count(diag.ImageShrunk) != 1 {
		t.Errorf("Shrunk = %d, events = %v", result.Shrunk, sink.Events())
	}

	want := report.ImageStat{
		Page: 1, Name: "Im1", Key: "Im1", Width: 400, Height: 200, DPI: 800,
		Format: "png", Filters: []string{"FlateDecode"}, Length: 80000, BitsPerPixel: 8,
		Outcome: report.Shrunk, NewWidth: 150, NewHeight: 75, NewLength: int64(len(rep.Data)),
	}
	if diff := cmp.Diff([]report.ImageStat{want}, result.Images); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if result.BytesBefore != 80000 || result.BytesAfter != int64(len(rep.Data)) {
		t.Errorf("bytes = %d -> %d", result.BytesBefore, result.BytesAfter)
	}
}

func TestShrinkJPEG(t *testing.T) {
	doc, res := single(docmodel.FormatJPEG)
	runEngine(t, config.Default(), doc)

	rep := res.Replaced["Im1"]
	if rep == nil || rep.Filter != "DCTDecode" || rep.ColorSpace != "DeviceGray" {
		t.Fatalf("replacement = %+v", rep)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rep.Data))
	if err != nil || cfg.Width != 150 || cfg.Height != 75 {
		t.Errorf("DecodeConfig = %+v, %v", cfg, err)
	}
}

// TestThresholdIsStrict tests that an image exactly at the threshold is kept
func TestThresholdIsStrict(t *testing.T) {
	doc, res := single(docmodel.FormatPNG)
	cfg := config.Default()
	cfg.ResolutionThreshold = 800
	result, _ := runEngine(t, cfg, doc)
	if len(res.Replaced) != 0 || result.Images[0].Outcome != report.Kept {
		t.Errorf("image at the threshold was changed: %+v", result.Images[0])
	}

	cfg.ResolutionThreshold = 799.99
	runEngine(t, cfg, doc)
	if res.Replaced["Im1"] == nil {
		t.Error("image above the threshold was not shrunk")
	}
}

// TestLookupMiss tests that a bound but unpainted image is left alone
func TestLookupMiss(t *testing.T) {
	res := memdoc.NewResources().Add("Im1", memdoc.Image("Im1", 1, 400, 200, docmodel.FormatPNG))
	doc := memdoc.NewDocument(memdoc.NewPage(res, "0 0 m 10 10 l S"))
	result, sink := runEngine(t, config.Default(), doc)

	if len(res.Replaced) != 0 || result.Skipped != 1 {
		t.Errorf("Replaced = %v, Skipped = %d", res.Replaced, result.Skipped)
	}
	if sink.Count(diag.ResolutionLookupMiss) != 1 {
		t.Errorf("events = %v", sink.Events())
	}
}

// TestSharedImage tests that an object bound on two pages is shrunk once
// for its most demanding placement
func TestSharedImage(t *testing.T) {
	for _, scope := range []resolution.Scope{resolution.ScopeDocument, resolution.ScopePage} {
		t.Run(scope.String(), func(t *testing.T) {
			img := memdoc.Image("Im1", 7, 1600, 1600, docmodel.FormatPNG)
			res1 := memdoc.NewResources().Add("Im1", img)
			res2 := memdoc.NewResources().Add("Photo", img)
			doc := memdoc.NewDocument(
				memdoc.NewPage(res1, "144 0 0 144 0 0 cm /Im1 Do"),  // 800 dpi
				memdoc.NewPage(res2, "144 0 0 144 0 0 cm 2 0 0 2 0 0 cm /Photo Do"), // 400 dpi
			)
			cfg := config.Default()
			cfg.KeyScope = scope
			result, sink := runEngine(t, cfg, doc)

			if len(result.Images) != 1 || result.Shrunk != 1 {
				t.Fatalf("Images = %d, Shrunk = %d", len(result.Images), result.Shrunk)
			}
			if result.Images[0].DPI != 400 {
				t.Errorf("DPI = %v, want 400", result.Images[0].DPI)
			}
			for _, r := range []*memdoc.Resources{res1, res2} {
				for _, rep := range r.Replaced {
					if rep.Width != 1200 {
						t.Errorf("replacement width = %d, want 1200", rep.Width)
					}
				}
				if len(r.Replaced) != 1 {
					t.Errorf("Replaced = %v", r.Replaced)
				}
			}
			if sink.Count(diag.SharedImage) != 1 {
				t.Errorf("events = %v", sink.Events())
			}
		})
	}
}

// TestImageInsideForm tests that images bound only in form resources are reached
func TestImageInsideForm(t *testing.T) {
	inner := memdoc.NewResources().Add("Im9", memdoc.Image("Im9", 9, 400, 400, docmodel.FormatPNG))
	m := model.Scale(0.5, 0.5)
	form := memdoc.Form("Fm1", 2, &m, inner, "72 0 0 72 0 0 cm /Im9 Do") // 36pt wide: 800 dpi
	res := memdoc.NewResources().Add("Fm1", form)
	doc := memdoc.NewDocument(memdoc.NewPage(res, "/Fm1 Do /Fm1 Do"))

	result, _ := runEngine(t, config.Default(), doc)
	if rep := inner.Replaced["Im9"]; rep == nil || rep.Width != 150 {
		t.Errorf("Im9 replacement = %+v", rep)
	}
	if len(result.Images) != 1 {
		t.Errorf("Images = %+v", result.Images)
	}
}

func mixedDoc() (*memdoc.Document, *memdoc.Resources) {
	broken := docmodel.NewImage(docmodel.Image{Name: "Bad", ID: 3, Width: 400, Height: 200, Format: docmodel.FormatPNG}, nil, nil)
	res := memdoc.NewResources().
		Add("Bad", broken).
		Add("Good", memdoc.Image("Good", 4, 400, 200, docmodel.FormatPNG)).
		Add("Wavelet", memdoc.Image("Wavelet", 5, 400, 200, docmodel.FormatJPX))
	return memdoc.NewDocument(memdoc.NewPage(res, "36 0 0 18 0 0 cm /Bad Do /Good Do /Wavelet Do")), res
}

// TestFailuresAreIsolated tests that one failing image does not stop the others
func TestFailuresAreIsolated(t *testing.T) {
	doc, res := mixedDoc()
	result, sink := runEngine(t, config.Default(), doc)
	if result.Failed != 1 || result.Shrunk != 1 || result.Skipped != 1 {
		t.Errorf("Failed = %d, Shrunk = %d, Skipped = %d", result.Failed, result.Shrunk, result.Skipped)
	}
	if _, ok := res.Replaced["Bad"]; ok {
		t.Error("failed image was replaced")
	}
	if sink.Count(diag.CodecFailure) != 1 || sink.Count(diag.UnsupportedImage) != 1 {
		t.Errorf("events = %v", sink.Events())
	}

	doc, res = mixedDoc()
	res.FailReplace = errors.New("read-only")
	result, _ = runEngine(t, config.Default(), doc)
	if result.Failed != 2 || result.Shrunk != 0 {
		t.Errorf("with failing Replace: Failed = %d, Shrunk = %d", result.Failed, result.Shrunk)
	}
	for _, s := range result.Images {
		if s.Name == "Good" && (s.Outcome != report.Failed || s.NewWidth != 0) {
			t.Errorf("Good = %+v", s)
		}
	}
}

func TestReportOnly(t *testing.T) {
	doc, res := single(docmodel.FormatPNG)
	cfg := config.Default()
	cfg.ReportOnly = true
	result, _ := runEngine(t, cfg, doc)
	if len(res.Replaced) != 0 {
		t.Error("report-only run changed the document")
	}
	if len(result.Images) != 1 || result.Images[0].DPI != 800 || result.Images[0].Outcome != report.Kept {
		t.Errorf("Images = %+v", result.Images)
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestImport tests substitution of PNG and JPEG files matched by base name
func TestImport(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "Im1.png"), image.NewGray(image.Rect(0, 0, 10, 5)))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 8)), nil); err != nil {
		t.Fatal(err)
	}
	// decomposed é matches the composed resource name
	if err := os.WriteFile(filepath.Join(dir, "Café.jpg"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	res := memdoc.NewResources().
		Add("Im1", memdoc.Image("Im1", 1, 400, 200, docmodel.FormatPNG)).
		Add("Café", memdoc.Image("Café", 2, 40, 20, docmodel.FormatJPEG))
	doc := memdoc.NewDocument(memdoc.NewPage(res, "36 0 0 18 0 0 cm /Im1 Do /Café Do"))

	cfg := config.Default()
	cfg.ImportDirectory = dir
	result, sink := runEngine(t, cfg, doc)

	if result.Imported != 2 || result.Shrunk != 0 {
		t.Errorf("Imported = %d, Shrunk = %d", result.Imported, result.Shrunk)
	}
	pngRep := res.Replaced["Im1"]
	if pngRep == nil || pngRep.Width != 10 || pngRep.Height != 5 || pngRep.ColorSpace != "DeviceGray" || pngRep.DecodeParms["Predictor"] != 15 {
		t.Errorf("PNG import = %+v", pngRep)
	}
	jpg := res.Replaced["Café"]
	if jpg == nil || jpg.Width != 16 || jpg.Filter != "DCTDecode" || !bytes.Equal(jpg.Data, buf.Bytes()) {
		t.Errorf("JPEG import = %+v", jpg)
	}
	if sink.Count(diag.ImageImported) != 2 {
		t.Errorf("events = %v", sink.Events())
	}
}

func TestScanImportDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "a.png", "b.PNG", "c.gif"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	os.Mkdir(filepath.Join(dir, "d.png"), 0o755)

	files, err := ScanImportDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	for k, f := range files {
		got[k] = filepath.Base(f.Path)
	}
	want := map[string]string{"a": "a.jpg", "b": "b.PNG"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ScanImportDir mismatch (-want +got):\n%s", diff)
	}

	if _, err := ScanImportDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("ScanImportDir on a missing directory succeeded")
	}
}

// TestExtract tests that images are written once each, JPEGs as raw data
func TestExtract(t *testing.T) {
	dir := t.TempDir()
	shared := memdoc.Image("Im1", 1, 8, 4, docmodel.FormatPNG)
	res1 := memdoc.NewResources().Add("Im1", shared).Add("Photo", memdoc.Image("Photo", 2, 6, 3, docmodel.FormatJPEG))
	res2 := memdoc.NewResources().Add("Im1", memdoc.Image("Im1", 3, 5, 5, docmodel.FormatPNG))
	doc := memdoc.NewDocument(memdoc.NewPage(res1, ""), memdoc.NewPage(res2, ""))

	cfg := config.Default()
	cfg.Extract = true
	cfg.ExtractDirectory = dir
	cfg.ReportOnly = true
	result, sink := runEngine(t, cfg, doc)
	if result.Extracted != 3 || sink.Count(diag.ImageExtracted) != 3 {
		t.Errorf("Extracted = %d, events = %v", result.Extracted, sink.Events())
	}

	raw, err := os.ReadFile(filepath.Join(dir, "Photo.jpg"))
	if err != nil || len(raw) != 18 {
		t.Errorf("Photo.jpg: %d bytes, %v", len(raw), err)
	}
	for name, wantW := range map[string]int{"Im1.png": 8, "Im1-3.png": 5} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil || img.Bounds().Dx() != wantW {
			t.Errorf("%s: %v, %v", name, img.Bounds(), err)
		}
		if _, ok := img.(*image.Gray); !ok {
			t.Errorf("%s decoded as %T", name, img)
		}
	}
}

// TestStencilMaskIsNotShrunk tests that stencil masks keep their samples
func TestStencilMaskIsNotShrunk(t *testing.T) {
	mask := memdoc.Image("Mask", 1, 400, 200, docmodel.FormatPNG)
	mask.ImageMask = true
	res := memdoc.NewResources().Add("Mask", mask)
	doc := memdoc.NewDocument(memdoc.NewPage(res, "36 0 0 18 0 0 cm /Mask Do"))

	result, sink := runEngine(t, config.Default(), doc)
	if len(res.Replaced) != 0 {
		t.Errorf("mask replaced by %+v", res.Replaced["Mask"])
	}
	if result.Skipped != 1 || result.Images[0].Outcome != report.Skipped || sink.Count(diag.UnsupportedImage) != 1 {
		t.Errorf("Skipped = %d, Images = %+v, events = %v", result.Skipped, result.Images, sink.Events())
	}
}

// TestExtractImportRoundTrip tests that an edited extracted file goes back to
// the image it came from when names repeat across pages
func TestExtractImportRoundTrip(t *testing.T) {
	tests := []struct {
		scope  resolution.Scope
		files  []string
		edited string
	}{
		{resolution.ScopeDocument, []string{"Im1.png", "Im1-3.png"}, "Im1-3.png"},
		{resolution.ScopePage, []string{"1-Im1.png", "2-Im1.png"}, "2-Im1.png"},
	}
	for _, tc := range tests {
		t.Run(tc.scope.String(), func(t *testing.T) {
			dir := t.TempDir()
			build := func() (*memdoc.Document, *memdoc.Resources, *memdoc.Resources) {
				res1 := memdoc.NewResources().Add("Im1", memdoc.Image("Im1", 1, 8, 4, docmodel.FormatPNG))
				res2 := memdoc.NewResources().Add("Im1", memdoc.Image("Im1", 3, 5, 5, docmodel.FormatPNG))
				return memdoc.NewDocument(memdoc.NewPage(res1, ""), memdoc.NewPage(res2, "")), res1, res2
			}

			cfg := config.Default()
			cfg.KeyScope = tc.scope
			cfg.Extract = true
			cfg.ExtractDirectory = dir
			cfg.ReportOnly = true
			doc, _, _ := build()
			runEngine(t, cfg, doc)
			for _, name := range tc.files {
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Errorf("extracted file: %v", err)
				}
			}

			writePNG(t, filepath.Join(dir, tc.edited), image.NewGray(image.Rect(0, 0, 7, 7)))

			cfg = config.Default()
			cfg.KeyScope = tc.scope
			cfg.ImportDirectory = dir
			doc, res1, res2 := build()
			result, _ := runEngine(t, cfg, doc)
			if result.Imported != 2 {
				t.Errorf("Imported = %d", result.Imported)
			}
			if rep := res1.Replaced["Im1"]; rep == nil || rep.Width != 8 {
				t.Errorf("page 1 got %+v, want its own 8x4 file", rep)
			}
			if rep := res2.Replaced["Im1"]; rep == nil || rep.Width != 7 {
				t.Errorf("page 2 got %+v, want the edited 7x7 file", rep)
			}
		})
	}
}
