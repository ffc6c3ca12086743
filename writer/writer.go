package writer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/internal/filters"
)

// carried lists the trailer entries an update repeats from the previous
// trailer.
var carried = []string{"Root", "Info", "ID"}

// Update is one incremental update section.
type Update struct {
	// Prev is the byte offset of the newest existing xref section.
	Prev int64
	// Size is the /Size of the previous trailer.
	Size int
	// Trailer is the previous trailer; Root, Info and ID are copied.
	Trailer core.Dict
	// XRefStream selects an xref stream instead of a table.
	XRefStream bool

	objects map[int]core.IndirectObject
}

// Add stages obj under ref. A later Add for the same number wins.
func (u *Update) Add(ref core.IndirectRef, obj core.Object) {
	if u.objects == nil {
		u.objects = make(map[int]core.IndirectObject)
	}
	u.objects[ref.Number] = core.IndirectObject{Ref: ref, Object: obj}
}

// Len returns the number of staged objects.
func (u *Update) Len() int { return len(u.objects) }

type xrefEntry struct {
	num int
	pos int64
	gen int
}

// WriteTo writes the update. base is the number of bytes already written
// before it, so offsets come out right.
func (u *Update) WriteTo(w io.Writer, base int64) (int64, error) {
	pw := &posWriter{w: w, pos: base}

	// The previous file may not end in a newline.
	if _, err := io.WriteString(pw, "\n"); err != nil {
		return pw.pos - base, err
	}

	nums := make([]int, 0, len(u.objects))
	for n := range u.objects {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	size := u.Size
	entries := make([]xrefEntry, 0, len(nums)+1)
	for _, n := range nums {
		o := u.objects[n]
		entries = append(entries, xrefEntry{num: n, pos: pw.pos, gen: o.Ref.Generation})
		if err := core.WriteIndirectObject(pw, o.Ref, o.Object); err != nil {
			return pw.pos - base, fmt.Errorf("object %d: %w", n, err)
		}
		if n >= size {
			size = n + 1
		}
	}

	trailer := core.Dict{}
	for _, key := range carried {
		if v := u.Trailer.Get(key); v != nil {
			trailer[key] = v
		}
	}
	trailer["Prev"] = core.Int(u.Prev)

	xrefPos := pw.pos
	var err error
	if u.XRefStream {
		err = writeXRefStream(pw, entries, size, trailer)
	} else {
		trailer["Size"] = core.Int(size)
		err = writeXRefTable(pw, entries, trailer)
	}
	if err != nil {
		return pw.pos - base, err
	}

	_, err = fmt.Fprintf(pw, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)
	return pw.pos - base, err
}

// subsections groups sorted entries into runs of consecutive numbers.
func subsections(entries []xrefEntry) [][]xrefEntry {
	var runs [][]xrefEntry
	start := 0
	for i := 1; i <= len(entries); i++ {
		if i == len(entries) || entries[i].num != entries[i-1].num+1 {
			runs = append(runs, entries[start:i])
			start = i
		}
	}
	return runs
}

func writeXRefTable(w io.Writer, entries []xrefEntry, trailer core.Dict) error {
	var buf bytes.Buffer
	buf.WriteString("xref\n")
	for _, run := range subsections(entries) {
		fmt.Fprintf(&buf, "%d %d\n", run[0].num, len(run))
		for _, e := range run {
			fmt.Fprintf(&buf, "%010d %05d n \n", e.pos, e.gen)
		}
	}
	buf.WriteString("trailer\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return core.WriteObject(w, trailer)
}

// writeXRefStream writes the section as object number size, which is
// listed in the stream itself.
func writeXRefStream(pw *posWriter, entries []xrefEntry, size int, trailer core.Dict) error {
	self := xrefEntry{num: size, pos: pw.pos}
	entries = append(entries, self)

	var rows bytes.Buffer
	index := core.Array{}
	for _, run := range subsections(entries) {
		index = append(index, core.Int(run[0].num), core.Int(len(run)))
		for _, e := range run {
			rows.WriteByte(1)
			binary.Write(&rows, binary.BigEndian, uint32(e.pos))
			binary.Write(&rows, binary.BigEndian, uint16(e.gen))
		}
	}

	params := map[string]interface{}{"Predictor": 12, "Columns": 7}
	data, err := filters.FlateEncode(rows.Bytes(), params)
	if err != nil {
		return fmt.Errorf("compress xref stream: %w", err)
	}

	dict := trailer.Clone()
	dict["Type"] = core.Name("XRef")
	dict["Size"] = core.Int(size + 1)
	dict["W"] = core.Array{core.Int(1), core.Int(4), core.Int(2)}
	dict["Index"] = index
	dict["Filter"] = core.Name("FlateDecode")
	dict["DecodeParms"] = core.Dict{"Predictor": core.Int(12), "Columns": core.Int(7)}

	ref := core.IndirectRef{Number: size}
	return core.WriteIndirectObject(pw, ref, &core.Stream{Dict: dict, Data: data})
}

type posWriter struct {
	w   io.Writer
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}
