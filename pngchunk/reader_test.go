package pngchunk

import (
	"bytes"
	"errors"
	"hash/crc32"
	"testing"
)

func TestReaderValues(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x00, 0x00, 0x01, 0x02, 0x7f, 'a', 'b', 'c'}))

	v, err := r.ReadUint32()
	if err != nil || v != 0x102 {
		t.Fatalf("ReadUint32 = %#x, %v", v, err)
	}
	b, err := r.ReadUint8()
	if err != nil || b != 0x7f {
		t.Fatalf("ReadUint8 = %#x, %v", b, err)
	}
	rest, err := r.ReadBytes(3)
	if err != nil || string(rest) != "abc" {
		t.Fatalf("ReadBytes = %q, %v", rest, err)
	}
	if r.Offset() != 8 {
		t.Errorf("Offset = %d, want 8", r.Offset())
	}
}

// TestReaderCRC tests that the checksum covers only bytes since ResetCRC
func TestReaderCRC(t *testing.T) {
	data := []byte("skipIDATpayload")
	stored := crc32.ChecksumIEEE([]byte("IDATpayload"))
	r := NewReader(bytes.NewReader(append(data, byte(stored>>24), byte(stored>>16), byte(stored>>8), byte(stored))))

	if _, err := r.ReadBytes(4); err != nil {
		t.Fatal(err)
	}
	r.ResetCRC()
	if _, err := r.ReadBytes(len(data) - 4); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadChecksum()
	if err != nil {
		t.Fatal(err)
	}
	if got != stored || r.CRC() != stored {
		t.Errorf("stored %08x, running %08x, want %08x", got, r.CRC(), stored)
	}
}

func TestReaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		read func(r *Reader) error
	}{
		{"bytes", func(r *Reader) error { _, err := r.ReadBytes(5); return err }},
		{"uint32", func(r *Reader) error { _, err := r.ReadUint32(); return err }},
		{"checksum", func(r *Reader) error { _, err := r.ReadChecksum(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(NewReader(bytes.NewReader([]byte{1, 2, 3})))
			if !errors.Is(err, ErrTruncatedInput) {
				t.Errorf("got %v, want ErrTruncatedInput", err)
			}
		})
	}

	_, err := NewReader(bytes.NewReader(nil)).ReadUint8()
	if !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("ReadUint8 on empty input: %v", err)
	}
}
