package filters

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"
)

// CCITTFaxDecode decodes Group 3 or Group 4 fax data into packed 1-bit rows
// (1 = white unless BlackIs1 is set).
//
// Recognised parameters: K (<0 Group 4, otherwise Group 3), Columns
// (default 1728), Rows (0 means detect), BlackIs1.
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	columns := getIntParam(params, "Columns", 1728)
	rows := getIntParam(params, "Rows", 0)
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	sf := ccitt.Group3
	if getIntParam(params, "K", 0) < 0 {
		sf = ccitt.Group4
	}
	opts := &ccitt.Options{Invert: getBoolParam(params, "BlackIs1", false)}
	return io.ReadAll(ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows, opts))
}
