package docmodel

import (
	"errors"
	"testing"
)

func TestFormatFromFilters(t *testing.T) {
	tests := []struct {
		filters []string
		want    Format
	}{
		{nil, FormatPNG},
		{[]string{"FlateDecode"}, FormatPNG},
		{[]string{"LZWDecode"}, FormatPNG},
		{[]string{"DCTDecode"}, FormatJPEG},
		{[]string{"ASCII85Decode", "DCTDecode"}, FormatJPEG},
		{[]string{"JPXDecode"}, FormatJPX},
		{[]string{"CCITTFaxDecode"}, FormatTIFF},
		{[]string{"JBIG2Decode"}, FormatJBIG2},
	}
	for _, tt := range tests {
		if got := FormatFromFilters(tt.filters); got != tt.want {
			t.Errorf("FormatFromFilters(%v) = %q, want %q", tt.filters, got, tt.want)
		}
	}
}

func TestRecompressible(t *testing.T) {
	for _, f := range []Format{FormatJPEG, FormatPNG} {
		if !f.Recompressible() {
			t.Errorf("%s should be recompressible", f)
		}
	}
	for _, f := range []Format{FormatTIFF, FormatJPX, FormatJBIG2} {
		if f.Recompressible() {
			t.Errorf("%s should not be recompressible", f)
		}
	}
}

// TestUnwiredAccessors tests that accessors without a data source fail cleanly
func TestUnwiredAccessors(t *testing.T) {
	img := NewImage(Image{Name: "Im1"}, nil, nil)
	if _, err := img.Decode(); !errors.Is(err, ErrNoData) {
		t.Errorf("Decode() = %v", err)
	}
	if _, err := img.Raw(); !errors.Is(err, ErrNoData) {
		t.Errorf("Raw() = %v", err)
	}
	form := NewForm(Form{Name: "Fm1"}, nil)
	if _, err := form.Content(); !errors.Is(err, ErrNoData) {
		t.Errorf("Content() = %v", err)
	}

	data := []byte("q Q")
	form = NewForm(Form{Name: "Fm1"}, func() ([]byte, error) { return data, nil })
	if got, err := form.Content(); err != nil || string(got) != "q Q" {
		t.Errorf("Content() = %q, %v", got, err)
	}
}
