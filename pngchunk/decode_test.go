package pngchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/internal/filters"
)

// pngBuilder assembles PNG streams chunk by chunk with correct CRCs.
type pngBuilder struct {
	buf bytes.Buffer
}

func newPNG() *pngBuilder {
	b := &pngBuilder{}
	b.buf.Write(Signature)
	return b
}

func (b *pngBuilder) chunk(typ string, payload []byte) *pngBuilder {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	b.buf.Write(hdr[:])
	b.buf.WriteString(typ)
	b.buf.Write(payload)
	binary.BigEndian.PutUint32(hdr[:], crc32.ChecksumIEEE(append([]byte(typ), payload...)))
	b.buf.Write(hdr[:])
	return b
}

func (b *pngBuilder) ihdr(w, h uint32, depth, colorType, interlace byte) *pngBuilder {
	p := make([]byte, 13)
	binary.BigEndian.PutUint32(p[0:], w)
	binary.BigEndian.PutUint32(p[4:], h)
	p[8], p[9], p[12] = depth, colorType, interlace
	return b.chunk("IHDR", p)
}

func (b *pngBuilder) bytes() []byte { return b.buf.Bytes() }

func grayIDAT(t *testing.T, w, h int) []byte {
	t.Helper()
	pixels := make([]byte, w*h)
	for i := range pixels {
		pixels[i] = byte(i * 3)
	}
	data, err := filters.FlateEncode(pixels, filters.Params{"Predictor": 15, "Colors": 1, "BitsPerComponent": 8, "Columns": w})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// TestDecodeMinimalGray tests the smallest valid grayscale stream
func TestDecodeMinimalGray(t *testing.T) {
	idat := grayIDAT(t, 8, 8)
	data := newPNG().ihdr(8, 8, 8, 0, 0).chunk("IDAT", idat).chunk("IEND", nil).bytes()

	var sink diag.Collector
	img, err := Decode(bytes.NewReader(data), Options{Sink: &sink})
	if err != nil {
		t.Fatal(err)
	}
	want := &Image{Width: 8, Height: 8, BitDepth: 8, ColorType: Grayscale, Data: idat}
	if diff := cmp.Diff(want, img); diff != "" {
		t.Errorf("image mismatch (-want +got):\n%s", diff)
	}
	if len(sink.Events()) != 0 {
		t.Errorf("unexpected diagnostics: %v", sink.Events())
	}
}

// TestDecodeConcatenatesIDAT tests split image data and skipped chunks
func TestDecodeConcatenatesIDAT(t *testing.T) {
	idat := grayIDAT(t, 4, 4)
	data := newPNG().ihdr(4, 4, 8, 0, 0).
		chunk("tEXt", []byte("Comment\x00hello")).
		chunk("IDAT", idat[:5]).
		chunk("IDAT", idat[5:]).
		chunk("IEND", nil).
		bytes()
	data = append(data, "trailing garbage"...)

	img, err := Decode(bytes.NewReader(data), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Data, idat) {
		t.Errorf("IDAT not concatenated in order")
	}
}

// TestDecodePalette tests PLTE parsing and the extra black entry
func TestDecodePalette(t *testing.T) {
	plte := []byte{255, 0, 0, 0, 255, 0}
	data := newPNG().ihdr(2, 1, 1, 3, 0).chunk("PLTE", plte).chunk("IDAT", []byte{1}).chunk("IEND", nil).bytes()

	img, err := Decode(bytes.NewReader(data), Options{})
	if err != nil {
		t.Fatal(err)
	}
	wantPal := []RGB{{255, 0, 0}, {0, 255, 0}, {0, 0, 0}}
	if diff := cmp.Diff(wantPal, img.Palette); diff != "" {
		t.Errorf("palette mismatch (-want +got):\n%s", diff)
	}
	if img.ColorSpace() != "Indexed" || img.Colors() != 1 {
		t.Errorf("ColorSpace %q, Colors %d", img.ColorSpace(), img.Colors())
	}

	rep := img.Replacement()
	if rep.PaletteEntries() != 3 || !bytes.Equal(rep.Palette[:6], plte) {
		t.Errorf("replacement palette = %v", rep.Palette)
	}
	if rep.DecodeParms["Predictor"] != 15 || rep.DecodeParms["Columns"] != 2 || rep.DecodeParms["BitsPerComponent"] != 1 {
		t.Errorf("DecodeParms = %v", rep.DecodeParms)
	}
}

func TestColorSpaceRule(t *testing.T) {
	tests := []struct {
		ct     ColorType
		space  string
		colors int
	}{
		{Grayscale, "DeviceGray", 1},
		{TrueColor, "DeviceRGB", 3},
		{IndexedColor, "Indexed", 1},
	}
	for _, tt := range tests {
		img := &Image{ColorType: tt.ct}
		if img.ColorSpace() != tt.space || img.Colors() != tt.colors {
			t.Errorf("color type %d: %q/%d, want %q/%d", tt.ct, img.ColorSpace(), img.Colors(), tt.space, tt.colors)
		}
	}
}

// TestDecodeRejects tests every structural error kind
func TestDecodeRejects(t *testing.T) {
	idat := []byte{0x78, 0x9c}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", append([]byte("GIF89a.."), newPNG().ihdr(1, 1, 8, 0, 0).bytes()[8:]...), ErrBadMagic},
		{"interlaced", newPNG().ihdr(8, 8, 8, 0, 1).chunk("IDAT", idat).chunk("IEND", nil).bytes(), ErrUnsupportedFeature},
		{"gray alpha", newPNG().ihdr(8, 8, 8, 4, 0).bytes(), ErrUnsupportedFeature},
		{"rgba", newPNG().ihdr(8, 8, 8, 6, 0).bytes(), ErrUnsupportedFeature},
		{"short IHDR", newPNG().chunk("IHDR", make([]byte, 12)).bytes(), ErrUnsupportedFeature},
		{"bad bit depth", newPNG().ihdr(8, 8, 3, 0, 0).bytes(), ErrUnsupportedFeature},
		{"IDAT first", newPNG().chunk("IDAT", idat).bytes(), ErrMalformedChunk},
		{"zero width", newPNG().ihdr(0, 8, 8, 0, 0).bytes(), ErrMalformedChunk},
		{"palette not triples", newPNG().ihdr(1, 1, 8, 3, 0).chunk("PLTE", []byte{1, 2, 3, 4}).bytes(), ErrMalformedChunk},
		{"palette too long", newPNG().ihdr(1, 1, 8, 3, 0).chunk("PLTE", make([]byte, 771)).bytes(), ErrMalformedChunk},
		{"indexed without palette", newPNG().ihdr(1, 1, 8, 3, 0).chunk("IDAT", idat).chunk("IEND", nil).bytes(), ErrMalformedChunk},
		{"no IDAT", newPNG().ihdr(1, 1, 8, 0, 0).chunk("IEND", nil).bytes(), ErrMalformedChunk},
		{"missing IEND", newPNG().ihdr(1, 1, 8, 0, 0).chunk("IDAT", idat).bytes(), ErrTruncatedInput},
		{"cut mid chunk", newPNG().ihdr(1, 1, 8, 0, 0).bytes()[:20], ErrTruncatedInput},
		{"empty", nil, ErrTruncatedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(bytes.NewReader(tt.data), Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if img != nil {
				t.Error("no image may be returned on failure")
			}
			var fe *FormatError
			if err != nil && !errors.As(err, &fe) {
				t.Errorf("error %T is not a *FormatError", err)
			}
		})
	}
}

func flipIDATBit(t *testing.T, data []byte) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	i := bytes.Index(out, []byte("IDAT"))
	if i < 0 {
		t.Fatal("no IDAT chunk")
	}
	out[i+4] ^= 0x01 // first payload byte
	return out
}

// TestDecodeChecksumMismatchLenient tests that a flipped bit is reported but tolerated
func TestDecodeChecksumMismatchLenient(t *testing.T) {
	data := newPNG().ihdr(8, 8, 8, 0, 0).chunk("IDAT", grayIDAT(t, 8, 8)).chunk("IEND", nil).bytes()
	data = flipIDATBit(t, data)

	var sink diag.Collector
	img, err := Decode(bytes.NewReader(data), Options{Sink: &sink, Name: "scan.png"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"IDAT"}, img.Mismatches); diff != "" {
		t.Errorf("mismatches (-want +got):\n%s", diff)
	}
	events := sink.Events()
	if len(events) != 1 || events[0].Kind != diag.ChecksumMismatch || events[0].Resource != "scan.png" {
		t.Errorf("events = %+v", events)
	}
}

// TestDecodeChecksumMismatchStrict tests strict handling of critical and ancillary chunks
func TestDecodeChecksumMismatchStrict(t *testing.T) {
	data := newPNG().ihdr(8, 8, 8, 0, 0).chunk("IDAT", grayIDAT(t, 8, 8)).chunk("IEND", nil).bytes()
	if _, err := Decode(bytes.NewReader(flipIDATBit(t, data)), Options{Strict: true}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("strict IDAT mismatch: err = %v", err)
	}

	data = newPNG().ihdr(8, 8, 8, 0, 0).chunk("tEXt", []byte("a\x00b")).chunk("IDAT", grayIDAT(t, 8, 8)).chunk("IEND", nil).bytes()
	i := bytes.Index(data, []byte("tEXt"))
	data[i+4] ^= 0x01
	img, err := Decode(bytes.NewReader(data), Options{Strict: true})
	if err != nil {
		t.Fatalf("ancillary mismatch should be advisory: %v", err)
	}
	if len(img.Mismatches) != 1 || img.Mismatches[0] != "tEXt" {
		t.Errorf("mismatches = %v", img.Mismatches)
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.png")
	data := newPNG().ihdr(3, 2, 8, 2, 0).chunk("IDAT", []byte{0}).chunk("IEND", nil).bytes()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeFile(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 3 || img.Height != 2 || img.ColorSpace() != "DeviceRGB" {
		t.Errorf("image = %+v", img)
	}

	if _, err := DecodeFile(filepath.Join(dir, "missing.png"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}
