// Package reader opens PDF files and resolves their objects.
//
// # Opening PDF Files
//
// Use [Open] to open a PDF file for reading:
//
//	r, err := reader.Open("document.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
// Or use [NewReader] with any [io.ReaderAt].
//
// # Object Resolution
//
// The Reader merges every cross-reference section of the file, including
// those of incremental updates, and resolves objects through it:
//
//   - GetObject(objNum) - load object by number, from the file body or
//     from an object stream
//   - Resolve(obj) - follow references to a direct object
//   - ResolveDeep(obj) - expand all nested references
//
// Each object is parsed from its own section of the file, so a stream
// whose /Length is an indirect object can be read without disturbing the
// outer parse.
//
// # Images
//
// [Reader.ImageInfo] describes an image XObject and [Reader.DecodeImage]
// converts its samples to an [image.Image].
package reader
