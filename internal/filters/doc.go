// Package filters implements the PDF stream filters used by pdfshrink.
//
// Decoders: FlateDecode (with TIFF and PNG predictors), LZWDecode,
// ASCIIHexDecode, ASCII85Decode, RunLengthDecode and CCITTFaxDecode.
// FlateEncode compresses data and can apply PNG row prediction first,
// which is how recompressed images are stored:
//
//	data, err := filters.FlateEncode(pixels, filters.Params{
//	    "Predictor":        15,
//	    "Colors":           3,
//	    "BitsPerComponent": 8,
//	    "Columns":          width,
//	})
package filters
