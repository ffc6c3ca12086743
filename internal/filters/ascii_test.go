package filters

import (
	"bytes"
	"testing"
)

func TestASCIIHexDecode(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"48 65 6C 6C 6F>", []byte("Hello")},
		{"414>", []byte{0x41, 0x40}},
		{"", []byte{}},
	}
	for _, tt := range tests {
		got, err := ASCIIHexDecode([]byte(tt.in))
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ASCIIHexDecode([]byte("4G>")); err == nil {
		t.Error("expected error for invalid digit")
	}
}

func TestASCII85Decode(t *testing.T) {
	got, err := ASCII85Decode([]byte("<~87cURD]i,\"Ebo80~>"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Hello, World" {
		t.Errorf("got %q", got)
	}

	got, err = ASCII85Decode([]byte("z~>"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("z group decoded to %v", got)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal "ab", then 'x' repeated 3 times, then EOD
	in := []byte{1, 'a', 'b', 254, 'x', 128, 'z'}
	got, err := RunLengthDecode(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abxxx" {
		t.Errorf("got %q, want abxxx", got)
	}
	if _, err := RunLengthDecode([]byte{5, 'a'}); err == nil {
		t.Error("expected error for truncated literal run")
	}
}
