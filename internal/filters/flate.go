package filters

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Params holds the DecodeParms of a stream as plain Go values
// (int, float64, bool, string).
type Params map[string]interface{}

// FlateDecode inflates zlib data and undoes any /Predictor. A stream that
// ends early still yields the bytes inflated so far.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	raw, err := inflate(data)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return unpredict(raw, params)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, zr)
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && buf.Len() > 0) {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FlateEncode deflates data. When params carry a PNG predictor (10-15) the
// rows are filtered first; 15 picks the filter per row.
func FlateEncode(data []byte, params Params) ([]byte, error) {
	predictor := getIntParam(params, "Predictor", 1)
	if predictor >= 10 && predictor <= 15 {
		var err error
		data, err = pngPredict(data, predictor, params)
		if err != nil {
			return nil, err
		}
	} else if predictor != 1 {
		return nil, fmt.Errorf("unsupported predictor %d for encoding", predictor)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rowLayout returns bytes per pixel (at least 1) and bytes per row.
func rowLayout(params Params) (bpp, rowLen int) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	bpc := getIntParam(params, "BitsPerComponent", 8)
	bpp = (colors*bpc + 7) / 8
	rowLen = (columns*colors*bpc + 7) / 8
	return bpp, rowLen
}

func unpredict(data []byte, params Params) ([]byte, error) {
	predictor := getIntParam(params, "Predictor", 1)
	switch {
	case predictor == 1:
		return data, nil
	case predictor == 2:
		return tiffUnpredict(data, params)
	case predictor >= 10 && predictor <= 15:
		return pngUnpredict(data, params)
	}
	return nil, fmt.Errorf("unsupported predictor %d", predictor)
}

func tiffUnpredict(data []byte, params Params) ([]byte, error) {
	if bpc := getIntParam(params, "BitsPerComponent", 8); bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor with %d bits per component", bpc)
	}
	bpp, rowLen := rowLayout(params)
	out := append([]byte(nil), data...)
	for start := 0; start+rowLen <= len(out); start += rowLen {
		row := out[start : start+rowLen]
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	}
	return out, nil
}

// pngUnpredict reverses PNG row filtering. Each row starts with a filter
// type byte; a trailing partial row is dropped.
func pngUnpredict(data []byte, params Params) ([]byte, error) {
	bpp, rowLen := rowLayout(params)
	stride := rowLen + 1
	rows := len(data) / stride
	out := make([]byte, rows*rowLen)
	prev := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		cur := out[r*rowLen : (r+1)*rowLen]
		copy(cur, data[r*stride+1:(r+1)*stride])
		if err := unfilterRow(ft, cur, prev, bpp); err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		prev = cur
	}
	return out, nil
}

func unfilterRow(ft byte, cur, prev []byte, bpp int) error {
	switch ft {
	case 0:
	case 1:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case 2:
		for i := range cur {
			cur[i] += prev[i]
		}
	case 3:
		for i := range cur {
			var left int
			if i >= bpp {
				left = int(cur[i-bpp])
			}
			cur[i] += byte((left + int(prev[i])) / 2)
		}
	case 4:
		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left, upLeft = cur[i-bpp], prev[i-bpp]
			}
			cur[i] += paeth(left, prev[i], upLeft)
		}
	default:
		return fmt.Errorf("unknown PNG filter type %d", ft)
	}
	return nil
}

// pngPredict applies PNG row filtering for encoding. Predictors 10-14 fix
// the filter type; 15 chooses, per row, the filter whose output has the
// smallest sum of absolute values (as signed bytes).
func pngPredict(data []byte, predictor int, params Params) ([]byte, error) {
	bpp, rowLen := rowLayout(params)
	if rowLen == 0 || len(data)%rowLen != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of row length %d", len(data), rowLen)
	}
	rows := len(data) / rowLen
	out := make([]byte, 0, rows*(rowLen+1))
	prev := make([]byte, rowLen)
	candidate := make([]byte, rowLen)
	best := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		cur := data[r*rowLen : (r+1)*rowLen]
		if predictor != 15 {
			ft := byte(predictor - 10)
			filterRow(ft, cur, prev, bpp, best)
			out = append(out, ft)
			out = append(out, best...)
			prev = cur
			continue
		}
		bestType, bestScore := byte(0), -1
		for ft := byte(0); ft <= 4; ft++ {
			filterRow(ft, cur, prev, bpp, candidate)
			score := 0
			for _, b := range candidate {
				score += abs(int(int8(b)))
			}
			if bestScore < 0 || score < bestScore {
				bestType, bestScore = ft, score
				best, candidate = candidate, best
			}
		}
		out = append(out, bestType)
		out = append(out, best...)
		prev = cur
	}
	return out, nil
}

func filterRow(ft byte, cur, prev []byte, bpp int, dst []byte) {
	for i := range cur {
		var left, upLeft byte
		if i >= bpp {
			left, upLeft = cur[i-bpp], prev[i-bpp]
		}
		up := prev[i]
		switch ft {
		case 0:
			dst[i] = cur[i]
		case 1:
			dst[i] = cur[i] - left
		case 2:
			dst[i] = cur[i] - up
		case 3:
			dst[i] = cur[i] - byte((int(left)+int(up))/2)
		case 4:
			dst[i] = cur[i] - paeth(left, up, upLeft)
		}
	}
}

// paeth picks whichever of left (a), up (b) and up-left (c) is closest to
// a+b-c, preferring a, then b.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func getIntParam(params Params, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func getBoolParam(params Params, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
