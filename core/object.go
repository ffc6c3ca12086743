package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object is implemented by every value that can appear in a PDF file.
type Object interface {
	Type() ObjectType
	String() string
}

// ObjectType identifies the concrete kind of an Object.
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBool
	ObjInt
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDict
	ObjStream
	ObjIndirect
)

var objectTypeNames = [...]string{
	ObjNull:     "Null",
	ObjBool:     "Bool",
	ObjInt:      "Int",
	ObjReal:     "Real",
	ObjString:   "String",
	ObjName:     "Name",
	ObjArray:    "Array",
	ObjDict:     "Dict",
	ObjStream:   "Stream",
	ObjIndirect: "IndirectRef",
}

// String returns the name of the object type.
func (t ObjectType) String() string {
	if t < 0 || int(t) >= len(objectTypeNames) {
		return "Unknown"
	}
	return objectTypeNames[t]
}

// Null is the PDF null object.
type Null struct{}

func (Null) Type() ObjectType { return ObjNull }
func (Null) String() string   { return "null" }

// Bool is a PDF boolean.
type Bool bool

func (b Bool) Type() ObjectType { return ObjBool }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }

// Int is a PDF integer.
type Int int64

func (i Int) Type() ObjectType { return ObjInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real is a PDF real number.
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String is a PDF string. Literal and hexadecimal strings decode to the
// same representation: the raw bytes.
type String string

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string   { return string(s) }

// Name is a PDF name without the leading slash.
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Array is a PDF array.
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, obj := range a {
		parts[i] = obj.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Len returns the number of elements.
func (a Array) Len() int { return len(a) }

// Get returns the element at index, or nil when index is out of range.
func (a Array) Get(index int) Object {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// GetName returns the element at index if it is a name.
func (a Array) GetName(index int) (Name, bool) {
	n, ok := a.Get(index).(Name)
	return n, ok
}

// GetNumber returns the element at index as a float64 if it is numeric.
func (a Array) GetNumber(index int) (float64, bool) {
	return Number(a.Get(index))
}

// Numbers converts an all-numeric array to a slice of float64.
func (a Array) Numbers() ([]float64, error) {
	out := make([]float64, len(a))
	for i, obj := range a {
		v, ok := Number(obj)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not a number", i, obj)
		}
		out[i] = v
	}
	return out, nil
}

// Dict is a PDF dictionary keyed by name (without the slash).
type Dict map[string]Object

func (d Dict) Type() ObjectType { return ObjDict }
func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for i, key := range d.Keys() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "/%s %s", key, d[key].String())
	}
	sb.WriteString(">>")
	return sb.String()
}

// Get returns the value stored under key, or nil.
func (d Dict) Get(key string) Object { return d[key] }

// GetName returns the value under key if it is a name.
func (d Dict) GetName(key string) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

// GetInt returns the value under key if it is an integer.
func (d Dict) GetInt(key string) (Int, bool) {
	i, ok := d[key].(Int)
	return i, ok
}

// GetNumber returns the value under key as a float64 if it is an integer
// or a real.
func (d Dict) GetNumber(key string) (float64, bool) {
	return Number(d[key])
}

// GetDict returns the value under key if it is a direct dictionary.
func (d Dict) GetDict(key string) (Dict, bool) {
	v, ok := d[key].(Dict)
	return v, ok
}

// GetArray returns the value under key if it is a direct array.
func (d Dict) GetArray(key string) (Array, bool) {
	v, ok := d[key].(Array)
	return v, ok
}

// GetString returns the value under key if it is a string.
func (d Dict) GetString(key string) (String, bool) {
	v, ok := d[key].(String)
	return v, ok
}

// GetBool returns the value under key if it is a boolean.
func (d Dict) GetBool(key string) (Bool, bool) {
	v, ok := d[key].(Bool)
	return v, ok
}

// GetIndirectRef returns the value under key if it is an indirect reference.
func (d Dict) GetIndirectRef(key string) (IndirectRef, bool) {
	v, ok := d[key].(IndirectRef)
	return v, ok
}

// Has reports whether key is present.
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Set stores value under key.
func (d Dict) Set(key string, value Object) { d[key] = value }

// Delete removes key.
func (d Dict) Delete(key string) { delete(d, key) }

// Keys returns the keys in sorted order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the dictionary.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Stream is a dictionary followed by a block of (usually encoded) bytes.
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) Type() ObjectType { return ObjStream }
func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%d bytes)", s.Dict.String(), len(s.Data))
}

// IndirectRef points at an indirect object by number and generation.
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) Type() ObjectType { return ObjIndirect }
func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject is an object together with the reference it was defined
// under.
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}

// Number converts an Int or Real to float64.
func Number(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	default:
		return 0, false
	}
}
