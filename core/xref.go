package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// XRefEntry locates one object. Objects stored inside an object stream
// have Compressed set; Offset then holds nothing and StreamNumber/Index say
// where to find them.
type XRefEntry struct {
	Offset       int64
	Generation   int
	InUse        bool
	Compressed   bool
	StreamNumber int
	Index        int
}

// XRefTable is the merged view of one or more cross-reference sections.
type XRefTable struct {
	Entries map[int]*XRefEntry
	Trailer Dict
	// IsStream is true when the newest section is an xref stream.
	IsStream bool
	// Offset is the byte offset of the newest section.
	Offset int64
}

// NewXRefTable returns an empty table.
func NewXRefTable() *XRefTable {
	return &XRefTable{Entries: make(map[int]*XRefEntry), Trailer: make(Dict)}
}

// Get returns the entry for an object number.
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	e, ok := x.Entries[objNum]
	return e, ok
}

// Set stores the entry for an object number.
func (x *XRefTable) Set(objNum int, entry *XRefEntry) { x.Entries[objNum] = entry }

// Size returns the number of entries.
func (x *XRefTable) Size() int { return len(x.Entries) }

// MaxObjectNumber returns the highest object number that has an entry.
func (x *XRefTable) MaxObjectNumber() int {
	highest := 0
	for n := range x.Entries {
		if n > highest {
			highest = n
		}
	}
	return highest
}

// XRefParser reads cross-reference sections from a seekable file.
type XRefParser struct {
	reader io.ReadSeeker
}

// NewXRefParser returns a parser for r.
func NewXRefParser(r io.ReadSeeker) *XRefParser {
	return &XRefParser{reader: r}
}

// FindXRef returns the offset recorded after the last "startxref".
func (x *XRefParser) FindXRef() (int64, error) {
	size, err := x.reader.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek to end: %w", err)
	}
	n := int64(1024)
	if size < n {
		n = size
	}
	if _, err := x.reader.Seek(size-n, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to trailer area: %w", err)
	}
	tail := make([]byte, n)
	if _, err := io.ReadFull(x.reader, tail); err != nil {
		return 0, fmt.Errorf("read trailer area: %w", err)
	}

	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}
	fields := strings.Fields(string(tail[idx+len("startxref"):]))
	if len(fields) == 0 {
		return 0, fmt.Errorf("startxref without offset")
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid startxref offset: %w", err)
	}
	return offset, nil
}

// ParseXRef parses the section at offset, which may be a classic table or
// an xref stream.
func (x *XRefParser) ParseXRef(offset int64) (*XRefTable, error) {
	if _, err := x.reader.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to xref: %w", err)
	}
	br := bufio.NewReader(x.reader)
	head, _ := br.Peek(4)
	var (
		table *XRefTable
		err   error
	)
	if string(head) == "xref" {
		table, err = parseXRefTable(br)
	} else {
		table, err = parseXRefStream(br)
	}
	if err != nil {
		return nil, err
	}
	table.Offset = offset
	return table, nil
}

// readLine returns the next line, treating CR, LF and CR LF as terminators.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return sb.String(), err
		}
		switch b {
		case '\n':
			return sb.String(), nil
		case '\r':
			if next, err := br.Peek(1); err == nil && next[0] == '\n' {
				br.ReadByte()
			}
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func parseXRefTable(br *bufio.Reader) (*XRefTable, error) {
	if _, err := readLine(br); err != nil { // "xref"
		return nil, fmt.Errorf("read xref keyword: %w", err)
	}
	table := NewXRefTable()
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("xref table ended before trailer: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			rest := strings.TrimPrefix(line, "trailer")
			obj, err := NewParser(io.MultiReader(strings.NewReader(rest+"\n"), br)).ParseObject()
			if err != nil {
				return nil, fmt.Errorf("parse trailer: %w", err)
			}
			dict, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is %T, not a dictionary", obj)
			}
			table.Trailer = dict
			return table, nil
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header %q", line)
		}
		first, err1 := strconv.Atoi(fields[0])
		count, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || first < 0 || count < 0 {
			return nil, fmt.Errorf("invalid xref subsection header %q", line)
		}
		for i := 0; i < count; i++ {
			entryLine, err := readLine(br)
			if err != nil {
				return nil, fmt.Errorf("xref subsection %d: %w", first, err)
			}
			entry, err := parseXRefEntry(entryLine)
			if err != nil {
				return nil, err
			}
			table.Set(first+i, entry)
		}
	}
}

// parseXRefEntry parses "oooooooooo ggggg n". Fields are split on
// whitespace rather than fixed columns.
func parseXRefEntry(line string) (*XRefEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("invalid xref entry %q", line)
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid xref offset %q: %w", fields[0], err)
	}
	gen, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid xref generation %q: %w", fields[1], err)
	}
	switch fields[2] {
	case "n":
		return &XRefEntry{Offset: offset, Generation: gen, InUse: true}, nil
	case "f":
		return &XRefEntry{Offset: offset, Generation: gen}, nil
	}
	return nil, fmt.Errorf("invalid xref entry flag %q", fields[2])
}

func parseXRefStream(r io.Reader) (*XRefTable, error) {
	ind, err := NewParser(r).ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("parse xref stream: %w", err)
	}
	stream, ok := ind.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("xref section is %T, not a stream", ind.Object)
	}
	if t, _ := stream.Dict.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("stream at xref offset has /Type %q", t)
	}
	return DecodeXRefStream(stream)
}

// DecodeXRefStream reads the entries of a PDF 1.5 cross-reference stream.
func DecodeXRefStream(stream *Stream) (*XRefTable, error) {
	wArr, ok := stream.Dict.GetArray("W")
	if !ok || len(wArr) != 3 {
		return nil, fmt.Errorf("xref stream /W must be a 3-element array")
	}
	var w [3]int
	for i := range w {
		n, ok := wArr[i].(Int)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid xref stream /W entry %v", wArr[i])
		}
		w[i] = int(n)
	}
	size, ok := stream.Dict.GetInt("Size")
	if !ok {
		return nil, fmt.Errorf("xref stream has no /Size")
	}

	index := []int{0, int(size)}
	if idx, ok := stream.Dict.GetArray("Index"); ok {
		index = index[:0]
		for _, obj := range idx {
			n, ok := obj.(Int)
			if !ok {
				return nil, fmt.Errorf("invalid xref stream /Index entry %v", obj)
			}
			index = append(index, int(n))
		}
		if len(index)%2 != 0 {
			return nil, fmt.Errorf("xref stream /Index has odd length")
		}
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}

	rowLen := w[0] + w[1] + w[2]
	table := NewXRefTable()
	table.IsStream = true
	table.Trailer = stream.Dict
	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, fmt.Errorf("xref stream truncated at object %d", first+j)
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			typ := int64(1)
			if w[0] > 0 {
				typ = readBigEndian(row[:w[0]])
			}
			f2 := readBigEndian(row[w[0] : w[0]+w[1]])
			f3 := readBigEndian(row[w[0]+w[1]:])

			var entry *XRefEntry
			switch typ {
			case 0:
				entry = &XRefEntry{Offset: f2, Generation: int(f3)}
			case 1:
				entry = &XRefEntry{Offset: f2, Generation: int(f3), InUse: true}
			case 2:
				entry = &XRefEntry{InUse: true, Compressed: true, StreamNumber: int(f2), Index: int(f3)}
			default:
				// Unknown entry types are to be ignored.
				continue
			}
			table.Set(first+j, entry)
		}
	}
	return table, nil
}

func readBigEndian(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// MergeXRefTables merges sections given oldest first; later entries win.
// The result keeps the trailer, kind and offset of the last table.
func MergeXRefTables(tables ...*XRefTable) *XRefTable {
	merged := NewXRefTable()
	for _, t := range tables {
		for n, e := range t.Entries {
			merged.Set(n, e)
		}
		merged.Trailer = t.Trailer
		merged.IsStream = t.IsStream
		merged.Offset = t.Offset
	}
	return merged
}

// ParseAllXRefs follows the /Prev chain (and /XRefStm of hybrid files)
// from startxref and returns the merged table.
func (x *XRefParser) ParseAllXRefs() (*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, err
	}

	var chain []*XRefTable // newest first
	seen := make(map[int64]bool)
	for {
		if seen[offset] {
			return nil, fmt.Errorf("xref /Prev loop at offset %d", offset)
		}
		seen[offset] = true

		table, err := x.ParseXRef(offset)
		if err != nil {
			return nil, fmt.Errorf("xref at offset %d: %w", offset, err)
		}
		if stmOff, ok := table.Trailer.GetInt("XRefStm"); ok && !seen[int64(stmOff)] {
			seen[int64(stmOff)] = true
			if hidden, err := x.ParseXRef(int64(stmOff)); err == nil {
				for n, e := range hidden.Entries {
					if _, ok := table.Entries[n]; !ok {
						table.Set(n, e)
					}
				}
			}
		}
		chain = append(chain, table)

		prev, ok := table.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = int64(prev)
	}

	oldestFirst := make([]*XRefTable, len(chain))
	for i, t := range chain {
		oldestFirst[len(chain)-1-i] = t
	}
	return MergeXRefTables(oldestFirst...), nil
}
