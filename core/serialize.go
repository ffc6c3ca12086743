package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteObject writes obj in PDF syntax. Dictionary keys are written in
// sorted order, so output is deterministic. A stream's /Length is set from
// its data.
func WriteObject(w io.Writer, obj Object) error {
	bw := bufio.NewWriter(w)
	if err := writeObject(bw, obj); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteIndirectObject writes "num gen obj ... endobj".
func WriteIndirectObject(w io.Writer, ref IndirectRef, obj Object) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d obj\n", ref.Number, ref.Generation)
	if err := writeObject(bw, obj); err != nil {
		return err
	}
	bw.WriteString("\nendobj\n")
	return bw.Flush()
}

func writeObject(w *bufio.Writer, obj Object) error {
	switch v := obj.(type) {
	case nil, Null:
		w.WriteString("null")
	case Bool:
		w.WriteString(v.String())
	case Int:
		w.WriteString(v.String())
	case Real:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("cannot write non-finite real %v", f)
		}
		if f == 0 {
			f = 0 // drop the sign of -0
		}
		w.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	case String:
		writeString(w, string(v))
	case Name:
		writeName(w, string(v))
	case Array:
		w.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				w.WriteByte(' ')
			}
			if err := writeObject(w, elem); err != nil {
				return err
			}
		}
		w.WriteByte(']')
	case Dict:
		return writeDict(w, v)
	case *Stream:
		dict := v.Dict.Clone()
		dict["Length"] = Int(len(v.Data))
		if err := writeDict(w, dict); err != nil {
			return err
		}
		w.WriteString("\nstream\n")
		w.Write(v.Data)
		w.WriteString("\nendstream")
	case IndirectRef:
		w.WriteString(v.String())
	default:
		return fmt.Errorf("cannot write object of type %T", obj)
	}
	return nil
}

func writeDict(w *bufio.Writer, d Dict) error {
	w.WriteString("<<")
	for _, key := range d.Keys() {
		writeName(w, key)
		w.WriteByte(' ')
		if err := writeObject(w, d[key]); err != nil {
			return fmt.Errorf("/%s: %w", key, err)
		}
	}
	w.WriteString(">>")
	return nil
}

func writeName(w *bufio.Writer, name string) {
	w.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			fmt.Fprintf(w, "#%02X", c)
			continue
		}
		w.WriteByte(c)
	}
}

// writeString uses literal syntax for printable text and hex syntax for
// everything else.
func writeString(w *bufio.Writer, s string) {
	printable := true
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			printable = false
			break
		}
	}
	if !printable {
		fmt.Fprintf(w, "<%X>", s)
		return
	}
	w.WriteByte('(')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(', ')', '\\':
			w.WriteByte('\\')
			w.WriteByte(c)
		default:
			w.WriteByte(c)
		}
	}
	w.WriteByte(')')
}
