// Package pdftest assembles small PDF files in memory for tests.
package pdftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"github.com/tsawler/pdfshrink/internal/filters"
)

// Builder collects object bodies. Object numbers start at 1.
type Builder struct {
	Version string
	bodies  []string
	packed  map[int][2]int // object -> {object stream, index}
}

// New returns an empty PDF 1.7 builder.
func New() *Builder {
	return &Builder{Version: "1.7", packed: make(map[int][2]int)}
}

// Reserve allocates an object number whose body is set later.
func (b *Builder) Reserve() int {
	b.bodies = append(b.bodies, "null")
	return len(b.bodies)
}

// Add appends an object and returns its number.
func (b *Builder) Add(body string) int {
	n := b.Reserve()
	b.Set(n, body)
	return n
}

// Set replaces the body of object n.
func (b *Builder) Set(n int, body string) {
	b.bodies[n-1] = body
}

// Stream formats a stream object body. dict holds the entries without the
// enclosing << >> and without /Length.
func Stream(dict string, data []byte) string {
	return fmt.Sprintf("<<%s /Length %d>>\nstream\n%s\nendstream", dict, len(data), data)
}

// Document adds a catalog and a one-level page tree with one page per
// content string. Every page uses resources, a dictionary body or a
// reference. It returns the catalog's object number.
func (b *Builder) Document(resources string, contents ...string) int {
	pagesNum := b.Reserve()
	kids := make([]string, 0, len(contents))
	for _, c := range contents {
		content := b.Add(Stream("", []byte(c)))
		page := b.Add(fmt.Sprintf("<</Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R>>",
			pagesNum, resources, content))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	b.Set(pagesNum, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d>>", strings.Join(kids, " "), len(kids)))
	return b.Add(fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", pagesNum))
}

// Pack moves the given objects into a new object stream and returns the
// stream's number. Packed objects are only reachable through
// BytesXRefStream.
func (b *Builder) Pack(nums ...int) int {
	var header, objects bytes.Buffer
	for _, n := range nums {
		fmt.Fprintf(&header, "%d %d ", n, objects.Len())
		objects.WriteString(b.bodies[n-1])
		objects.WriteByte('\n')
	}
	dict := fmt.Sprintf("/Type /ObjStm /N %d /First %d", len(nums), header.Len())
	stm := b.Add(Stream(dict, append(header.Bytes(), objects.Bytes()...)))
	for i, n := range nums {
		b.packed[n] = [2]int{stm, i}
	}
	return stm
}

func (b *Builder) body() (*bytes.Buffer, []int) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.Version)
	offsets := make([]int, len(b.bodies))
	for i, body := range b.bodies {
		if _, ok := b.packed[i+1]; ok {
			offsets[i] = -1
			continue
		}
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	return &buf, offsets
}

// Bytes serializes the file with a classic xref table. It panics if
// objects were packed.
func (b *Builder) Bytes(root int) []byte {
	if len(b.packed) > 0 {
		panic("pdftest: packed objects need an xref stream")
	}
	buf, offsets := b.body()
	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<</Size %d /Root %d 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, root, xref)
	return buf.Bytes()
}

// BytesXRefStream serializes the file with an uncompressed xref stream,
// which becomes the last object.
func (b *Builder) BytesXRefStream(root int) []byte {
	buf, offsets := b.body()
	xrefNum := len(offsets) + 1
	xref := buf.Len()

	var rows bytes.Buffer
	rows.Write([]byte{0, 0, 0, 0, 0xff, 0xff})
	for i, off := range offsets {
		if p, ok := b.packed[i+1]; ok {
			rows.WriteByte(2)
			binary.Write(&rows, binary.BigEndian, uint32(p[0]))
			binary.Write(&rows, binary.BigEndian, uint16(p[1]))
			continue
		}
		rows.WriteByte(1)
		binary.Write(&rows, binary.BigEndian, uint32(off))
		rows.Write([]byte{0, 0})
	}
	rows.WriteByte(1)
	binary.Write(&rows, binary.BigEndian, uint32(xref))
	rows.Write([]byte{0, 0})

	dict := fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Root %d 0 R", xrefNum+1, root)
	fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefNum, Stream(dict, rows.Bytes()), xref)
	return buf.Bytes()
}

// Gradient returns a w×h gray image whose samples rise left to right.
func Gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / max(w-1, 1))})
		}
	}
	return img
}

// GrayImage returns an image XObject body holding a Flate-compressed
// gradient.
func GrayImage(w, h int) string {
	data, err := filters.FlateEncode(Gradient(w, h).Pix, nil)
	if err != nil {
		panic(err)
	}
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /BitsPerComponent 8 /ColorSpace /DeviceGray /Filter /FlateDecode", w, h)
	return Stream(dict, data)
}

// JPEGImage returns an image XObject body holding a baseline JPEG of a
// gradient.
func JPEGImage(w, h int) string {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /BitsPerComponent 8 /ColorSpace /DeviceGray /Filter /DCTDecode", w, h)
	return Stream(dict, buf.Bytes())
}
