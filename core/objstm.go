package core

import (
	"bytes"
	"fmt"
)

// ObjectStream gives access to the objects packed into a /Type /ObjStm
// stream (PDF 1.5). The stream is decoded lazily on first access.
type ObjectStream struct {
	stream  *Stream
	n       int
	first   int
	decoded []byte
	numbers []int
	offsets []int
	cache   map[int]Object
}

// NewObjectStream validates the dictionary of an object stream.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("nil object stream")
	}
	if t, _ := stream.Dict.GetName("Type"); t != "ObjStm" {
		return nil, fmt.Errorf("stream has /Type %q, want ObjStm", t)
	}
	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has invalid /N")
	}
	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has invalid /First")
	}
	return &ObjectStream{
		stream: stream,
		n:      int(n),
		first:  int(first),
		cache:  make(map[int]Object),
	}, nil
}

// N returns the number of objects in the stream.
func (os *ObjectStream) N() int { return os.n }

func (os *ObjectStream) load() error {
	if os.decoded != nil {
		return nil
	}
	data, err := os.stream.Decode()
	if err != nil {
		return fmt.Errorf("decode object stream: %w", err)
	}
	if os.first > len(data) {
		return fmt.Errorf("/First %d beyond decoded length %d", os.first, len(data))
	}

	p := NewParser(bytes.NewReader(data[:os.first]))
	numbers := make([]int, 0, os.n)
	offsets := make([]int, 0, os.n)
	for i := 0; i < os.n; i++ {
		num, err1 := p.ParseObject()
		off, err2 := p.ParseObject()
		if err1 != nil || err2 != nil {
			return fmt.Errorf("object stream header pair %d is malformed", i)
		}
		ni, ok1 := num.(Int)
		oi, ok2 := off.(Int)
		if !ok1 || !ok2 {
			return fmt.Errorf("object stream header pair %d is not two integers", i)
		}
		numbers = append(numbers, int(ni))
		offsets = append(offsets, int(oi))
	}
	os.decoded, os.numbers, os.offsets = data, numbers, offsets
	return nil
}

// GetObjectByIndex returns the index-th object and its object number.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := os.load(); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(os.offsets) {
		return nil, 0, fmt.Errorf("object stream index %d out of range [0,%d)", index, len(os.offsets))
	}
	if obj, ok := os.cache[index]; ok {
		return obj, os.numbers[index], nil
	}

	start := os.first + os.offsets[index]
	end := len(os.decoded)
	if index+1 < len(os.offsets) {
		end = os.first + os.offsets[index+1]
	}
	if start >= len(os.decoded) || end > len(os.decoded) || start > end {
		return nil, 0, fmt.Errorf("object stream entry %d has bad offset", index)
	}

	obj, err := NewParser(bytes.NewReader(os.decoded[start:end])).ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("object stream entry %d: %w", index, err)
	}
	os.cache[index] = obj
	return obj, os.numbers[index], nil
}

// GetObjectByNumber returns the object with the given number.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, error) {
	if err := os.load(); err != nil {
		return nil, err
	}
	for i, n := range os.numbers {
		if n == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, err
		}
	}
	return nil, fmt.Errorf("object %d not in object stream", objNum)
}
