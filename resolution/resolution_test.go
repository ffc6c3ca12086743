package resolution

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tsawler/pdfshrink/contentstream"
)

// TestComputeExact tests dpiX == W / (S/72) under floating point rules
func TestComputeExact(t *testing.T) {
	tests := []struct {
		w, h   int
		xs, ys float64
	}{
		{3200, 1600, 576, 288},
		{1000, 1000, 123.456, 123.456},
		{7, 3, 0.1, 0.3},
	}
	for _, tt := range tests {
		o := contentstream.Occurrence{PixelWidth: tt.w, PixelHeight: tt.h, XScale: tt.xs, YScale: tt.ys}
		dpiX, dpiY, dpi := Compute(o)
		wantX := float64(tt.w) / (tt.xs / 72)
		wantY := float64(tt.h) / (tt.ys / 72)
		if dpiX != wantX || dpiY != wantY || dpi != 0.5*(wantX+wantY) {
			t.Errorf("Compute(%+v) = %v, %v, %v", o, dpiX, dpiY, dpi)
		}
	}

	_, _, dpi := Compute(contentstream.Occurrence{PixelWidth: 3200, PixelHeight: 1600, XScale: 576, YScale: 288})
	if dpi != 400 {
		t.Errorf("dpi = %v, want 400", dpi)
	}
}

// TestIsNonSquare tests the strict 5% boundary
func TestIsNonSquare(t *testing.T) {
	tests := []struct {
		name       string
		dpiX, dpiY float64
		want       bool
	}{
		{"square", 300, 300, false},
		{"exactly five percent", 102.5, 97.5, false},
		{"just over", 102.6, 97.4, true},
		{"swapped", 97.4, 102.6, true},
		{"zero", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNonSquare(tt.dpiX, tt.dpiY); got != tt.want {
				t.Errorf("IsNonSquare(%v, %v) = %v, want %v", tt.dpiX, tt.dpiY, got, tt.want)
			}
		})
	}
}

// TestMapKeepsMinimum tests that the stored value is the minimum regardless of order
func TestMapKeepsMinimum(t *testing.T) {
	for _, order := range [][]float64{{600, 250}, {250, 600}} {
		m := NewMap()
		if _, seen := m.Observe("Im1", order[0]); seen {
			t.Error("first observation reported as seen")
		}
		prev, seen := m.Observe("Im1", order[1])
		if !seen || prev != order[0] {
			t.Errorf("second observation: prev %v, seen %v", prev, seen)
		}
		got, err := m.Lookup("Im1")
		if err != nil || got != 250 {
			t.Errorf("order %v: Lookup = %v, %v; want 250", order, got, err)
		}
	}
}

func TestMapLookupMiss(t *testing.T) {
	m := NewMap()
	m.Observe("b", 1)
	m.Observe("a", 2)
	if _, err := m.Lookup("c"); !errors.Is(err, ErrLookupMiss) {
		t.Errorf("Lookup miss: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, m.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestKeyFor(t *testing.T) {
	if got := KeyFor(ScopeDocument, 4, "Im1"); got != "Im1" {
		t.Errorf("document key = %q", got)
	}
	if got := KeyFor(ScopePage, 0, "Im1"); got != "1/Im1" {
		t.Errorf("page key = %q", got)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"document", ScopeDocument, false},
		{"", ScopeDocument, false},
		{"page", ScopePage, false},
		{"global", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseScope(%q) = %v, %v", tt.in, got, err)
		}
		if err == nil && got.String() != map[Scope]string{ScopeDocument: "document", ScopePage: "page"}[got] {
			t.Errorf("String() = %q", got.String())
		}
	}
}
