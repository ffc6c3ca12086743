// Package contentstream parses PDF content streams and walks them to find
// where images are painted.
//
// [Parser] splits a stream into [Operation] values. Inline images
// (BI ... ID ... EI) come back as a single "BI" operation:
//
//	ops, err := contentstream.NewParser(data).Parse()
//
// [Walker] follows q, Q and cm to keep the current transformation matrix,
// and on Do either reports an image [Occurrence] or recurses into a form
// XObject with the form's matrix applied first:
//
//	w := &contentstream.Walker{OnImage: func(o contentstream.Occurrence) {
//	    fmt.Println(o.Name, o.XScale, o.YScale)
//	}}
//	err := w.Walk(page)
package contentstream
