package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/internal/pdftest"
)

// minimalPDF is a minimal valid PDF for testing
const minimalPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
xref
0 3
0000000000 65535 f
0000000009 00000 n
0000000058 00000 n
trailer
<< /Size 3 /Root 1 0 R >>
startxref
110
%%EOF`

func newReader(t *testing.T, data []byte) *Reader {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r
}

// createTempPDF creates a temporary PDF file with the given content
func createTempPDF(t *testing.T, content []byte) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.pdf")
	if err := os.WriteFile(tmpFile, content, 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return tmpFile
}

// TestOpen tests opening a file from disk
func TestOpen(t *testing.T) {
	path := createTempPDF(t, []byte(minimalPDF))
	r, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open PDF: %v", err)
	}
	defer r.Close()

	if r.Version() != (PDFVersion{1, 4}) || r.Version().String() != "1.4" {
		t.Errorf("version = %v", r.Version())
	}
	if r.FileSize() != int64(len(minimalPDF)) {
		t.Errorf("FileSize = %d", r.FileSize())
	}
	if n, err := r.PageCount(); err != nil || n != 0 {
		t.Errorf("PageCount = %d, %v", n, err)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestParseHeader tests header recognition
func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"PDF 2.0", "%PDF-2.0\n", false},
		{"not a PDF", "%!PS-Adobe\n", true},
		{"short", "%PDF", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reader{src: bytes.NewReader([]byte(tt.header))}
			_, err := r.parseHeader()
			if (err != nil) != tt.wantErr {
				t.Errorf("parseHeader(%q) err = %v", tt.header, err)
			}
		})
	}
}

// TestGetObject tests object loading and caching
func TestGetObject(t *testing.T) {
	b := pdftest.New()
	num := b.Add("<</Kind /Test /Value 42>>")
	r := newReader(t, b.Bytes(b.Document("<<>>", "")))

	obj, err := r.GetObject(num)
	if err != nil {
		t.Fatal(err)
	}
	dict, ok := obj.(core.Dict)
	if !ok || dict["Value"] != core.Int(42) {
		t.Fatalf("got %v", obj)
	}
	before := r.CacheSize()
	if _, err := r.GetObject(num); err != nil || r.CacheSize() != before {
		t.Errorf("second load was not served from cache")
	}
	r.ClearCache()
	if r.CacheSize() != 0 {
		t.Errorf("CacheSize after ClearCache = %d", r.CacheSize())
	}

	// Unknown objects are null.
	if obj, err := r.GetObject(999); err != nil || obj != (core.Null{}) {
		t.Errorf("GetObject(999) = %v, %v", obj, err)
	}
}

// TestIndirectLength tests a stream whose /Length is a reference to a
// later object
func TestIndirectLength(t *testing.T) {
	b := pdftest.New()
	stream := b.Reserve()
	length := b.Add("5")
	b.Set(stream, fmt.Sprintf("<</Length %d 0 R>>\nstream\nhello\nendstream", length))
	r := newReader(t, b.Bytes(b.Document("<<>>")))

	obj, err := r.GetObject(stream)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := obj.(*core.Stream)
	if !ok || string(s.Data) != "hello" {
		t.Errorf("got %v", obj)
	}
}

// TestObjectStream tests objects packed into an object stream
func TestObjectStream(t *testing.T) {
	b := pdftest.New()
	a := b.Add("<</Name (packed)>>")
	c := b.Add("[1 2 3]")
	b.Pack(a, c)
	root := b.Document("<<>>", "q Q")
	r := newReader(t, b.BytesXRefStream(root))

	if !r.XRefTable().IsStream {
		t.Error("expected xref stream")
	}
	obj, err := r.GetObject(c)
	if err != nil {
		t.Fatal(err)
	}
	if arr, ok := obj.(core.Array); !ok || len(arr) != 3 {
		t.Errorf("object %d = %v", c, obj)
	}
	obj, err = r.GetObject(a)
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := obj.(core.Dict); d["Name"] != core.String("packed") {
		t.Errorf("object %d = %v", a, obj)
	}
	if n, err := r.PageCount(); err != nil || n != 1 {
		t.Errorf("PageCount = %d, %v", n, err)
	}
}

// TestPages tests page access through the catalog
func TestPages(t *testing.T) {
	b := pdftest.New()
	r := newReader(t, b.Bytes(b.Document("<<>>", "q Q", "1 0 0 1 0 0 cm", "Q")))

	pages, err := r.Pages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages", len(pages))
	}
	p, err := r.GetPage(1)
	if err != nil {
		t.Fatal(err)
	}
	content, err := p.Content()
	if err != nil || string(content) != "1 0 0 1 0 0 cm" {
		t.Errorf("page 2 content = %q, %v", content, err)
	}
	if _, err := r.GetPage(3); err == nil {
		t.Error("expected out of range error")
	}
}

func TestResolveDeepReader(t *testing.T) {
	b := pdftest.New()
	name := b.Add("/DeviceRGB")
	arr := b.Add(fmt.Sprintf("[/Indexed %d 0 R 0 <000000>]", name))
	r := newReader(t, b.Bytes(b.Document("<<>>")))

	got, err := r.ResolveDeep(core.IndirectRef{Number: arr})
	if err != nil {
		t.Fatal(err)
	}
	if a := got.(core.Array); a[1] != core.Name("DeviceRGB") {
		t.Errorf("got %v", got)
	}
}

func TestEncryptedRejected(t *testing.T) {
	pdf := bytes.Replace([]byte(minimalPDF), []byte("/Size 3 /Root 1 0 R"), []byte("/Size 3 /Root 1 0 R /Encrypt 9 0 R"), 1)
	if _, err := NewReader(bytes.NewReader(pdf), int64(len(pdf))); !errors.Is(err, ErrEncrypted) {
		t.Errorf("expected ErrEncrypted, got %v", err)
	}
}

func TestGetCatalogMissingRoot(t *testing.T) {
	r := &Reader{trailer: core.Dict{}}
	if _, err := r.GetCatalog(); err == nil {
		t.Error("expected error")
	}
}
