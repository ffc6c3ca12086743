// Package writer appends incremental updates to PDF files.
//
// An incremental update leaves the original bytes untouched and adds the
// changed objects, a cross-reference section for them and a trailer whose
// /Prev points at the previous section:
//
//	u := &writer.Update{Prev: xrefOffset, Size: size, Trailer: carried}
//	u.Add(ref, stream)
//	_, err := u.WriteTo(w, int64(len(original)))
//
// The section is a classic xref table or, for files that already use
// them, a compressed xref stream.
package writer
