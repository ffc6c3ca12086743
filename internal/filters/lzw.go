package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
)

// LZWDecode expands LZW data. EarlyChange defaults to 1 as in PDF; any
// /Predictor is undone afterwards.
func LZWDecode(data []byte, params Params) ([]byte, error) {
	early := getIntParam(params, "EarlyChange", 1) == 1
	rc := lzw.NewReader(bytes.NewReader(data), early)
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("LZWDecode: %w", err)
	}
	return unpredict(buf.Bytes(), params)
}

// RunLengthDecode expands PackBits-style run-length data.
func RunLengthDecode(data []byte) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, fmt.Errorf("RunLengthDecode: literal run past end of data")
			}
			out.Write(data[i : i+n+1])
			i += n + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("RunLengthDecode: repeat run past end of data")
			}
			out.Write(bytes.Repeat(data[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}
