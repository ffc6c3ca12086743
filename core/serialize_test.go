package core

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteObject(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"null", Null{}, "null"},
		{"negative zero", Real(math.Copysign(0, -1)), "0"},
		{"real", Real(0.25), "0.25"},
		{"escaped string", String("a(b)\\c"), `(a\(b\)\\c)`},
		{"binary string", String("\x00\xff"), "<00FF>"},
		{"name with space", Name("A B"), "/A#20B"},
		{"dict sorted", Dict{"Width": Int(2), "Height": Int(3)}, "<</Height 3/Width 2>>"},
		{"array", Array{Int(1), IndirectRef{Number: 4}}, "[1 4 0 R]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteObject(&buf, tt.obj); err != nil {
				t.Fatal(err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteObjectNonFinite(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteObject(&buf, Array{Real(math.Inf(1))}); err == nil {
		t.Error("expected error for infinite real")
	}
}

// TestWriteIndirectStreamParses tests that written streams read back intact
func TestWriteIndirectStreamParses(t *testing.T) {
	data := []byte("binary\x00\nendstream-lookalike\r\n")
	in := &Stream{
		Dict: Dict{"Type": Name("XObject"), "Length": Int(999), "DecodeParms": Dict{"Columns": Int(4)}},
		Data: data,
	}
	var buf bytes.Buffer
	if err := WriteIndirectObject(&buf, IndirectRef{Number: 9}, in); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "endobj\n") {
		t.Errorf("missing endobj: %q", buf.String())
	}

	obj, err := NewParser(&buf).ParseIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	out, ok := obj.Object.(*Stream)
	if !ok {
		t.Fatalf("got %T, want *Stream", obj.Object)
	}
	if !bytes.Equal(out.Data, data) {
		t.Errorf("data = %q, want %q", out.Data, data)
	}
	want := Dict{"Type": Name("XObject"), "Length": Int(len(data)), "DecodeParms": Dict{"Columns": Int(4)}}
	if diff := cmp.Diff(want, out.Dict); diff != "" {
		t.Errorf("dict mismatch (-want +got):\n%s", diff)
	}
	if in.Dict["Length"] != Int(999) {
		t.Error("WriteObject modified the caller's dictionary")
	}
}
