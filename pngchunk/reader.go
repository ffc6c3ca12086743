package pngchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash"
	"hash/crc32"
	"io"
)

// maxChunkLength is the largest length a PNG chunk may declare.
const maxChunkLength = 1<<31 - 1

// Reader reads big-endian values from a byte stream and keeps a running
// CRC-32 of everything it consumes.
type Reader struct {
	r      io.Reader
	crc    hash.Hash32
	offset int64
}

// NewReader returns a Reader over r with an empty checksum.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, crc: crc32.NewIEEE()}
}

// ReadBytes reads exactly n bytes. Fewer available bytes is
// ErrTruncatedInput.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > maxChunkLength {
		return nil, formatErr(ErrMalformedChunk, "", "invalid read length %d", n)
	}
	// Grow with the data actually present rather than the declared size.
	var buf bytes.Buffer
	got, err := io.CopyN(&buf, r.r, int64(n))
	r.offset += got
	r.crc.Write(buf.Bytes())
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, formatErr(ErrTruncatedInput, "", "wanted %d bytes at offset %d, got %d", n, r.offset-got, got)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadChecksum reads a stored big-endian CRC without adding it to the
// running checksum.
func (r *Reader) ReadChecksum() (uint32, error) {
	var b [4]byte
	n, err := io.ReadFull(r.r, b[:])
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, formatErr(ErrTruncatedInput, "", "checksum cut short at offset %d", r.offset)
		}
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// ResetCRC starts a new checksum.
func (r *Reader) ResetCRC() { r.crc.Reset() }

// CRC returns the checksum of the bytes read since the last ResetCRC.
func (r *Reader) CRC() uint32 { return r.crc.Sum32() }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int64 { return r.offset }
