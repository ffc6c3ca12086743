// Package pngchunk decodes the chunk structure of PNG files without
// inflating the pixel data.
//
// A non-interlaced PNG without alpha stores its pixels exactly the way a
// PDF image with /FlateDecode and /Predictor 15 does, so the concatenated
// IDAT payload can be embedded unchanged:
//
//	img, err := pngchunk.DecodeFile("logo.png", pngchunk.Options{})
//	if err != nil {
//	    return err
//	}
//	err = resources.Replace("Im1", img.Replacement())
//
// Every chunk's CRC-32 is checked. By default a mismatch is reported to
// Options.Sink and decoding continues; with Options.Strict a mismatch on a
// critical chunk fails the decode with ErrChecksumMismatch.
package pngchunk
