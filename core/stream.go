package core

import (
	"fmt"

	"github.com/tsawler/pdfshrink/internal/filters"
)

// Filters returns the stream's filter names in application order.
func (s *Stream) Filters() []string {
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		return []string{string(f)}
	case Array:
		names := make([]string, 0, len(f))
		for _, obj := range f {
			if n, ok := obj.(Name); ok {
				names = append(names, string(n))
			}
		}
		return names
	}
	return nil
}

// decodeParms returns the DecodeParms dictionary that belongs to the i-th
// filter. A single dictionary applies to every filter.
func (s *Stream) decodeParms(i int) Dict {
	switch p := s.Dict.Get("DecodeParms").(type) {
	case Dict:
		return p
	case Array:
		if d, ok := p.Get(i).(Dict); ok {
			return d
		}
	}
	return nil
}

// Decode undoes the stream's filters. Image codecs that the PDF layer does
// not interpret (DCTDecode, JPXDecode) end the chain and their input is
// returned unchanged, so the caller receives e.g. a complete JPEG file.
func (s *Stream) Decode() ([]byte, error) {
	switch f := s.Dict.Get("Filter").(type) {
	case nil, Null, Name, Array:
	default:
		return nil, fmt.Errorf("invalid /Filter type %T", f)
	}

	data := s.Data
	for i, name := range s.Filters() {
		if isImageCodec(name) {
			return data, nil
		}
		var err error
		data, err = decodeWithFilter(data, name, s.decodeParms(i))
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s): %w", i, name, err)
		}
	}
	return data, nil
}

func isImageCodec(name string) bool {
	switch name {
	case "DCTDecode", "DCT", "JPXDecode":
		return true
	}
	return false
}

func decodeWithFilter(data []byte, name string, parms Dict) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		return filters.FlateDecode(data, dictToParams(parms))
	case "LZWDecode", "LZW":
		return filters.LZWDecode(data, dictToParams(parms))
	case "ASCIIHexDecode", "AHx":
		return filters.ASCIIHexDecode(data)
	case "ASCII85Decode", "A85":
		return filters.ASCII85Decode(data)
	case "RunLengthDecode", "RL":
		return filters.RunLengthDecode(data)
	case "CCITTFaxDecode", "CCF":
		return filters.CCITTFaxDecode(data, dictToParams(parms))
	case "JBIG2Decode", "Crypt":
		return nil, fmt.Errorf("%s is not supported", name)
	}
	return nil, fmt.Errorf("unknown filter %s", name)
}

// dictToParams flattens a DecodeParms dictionary into plain Go values.
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}
	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case Name:
			params[k] = string(obj)
		case String:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}
