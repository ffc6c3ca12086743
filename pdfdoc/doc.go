// Package pdfdoc implements the docmodel interfaces for PDF files.
//
// A Document resolves pages, their /XObject resources and the image and
// form streams behind them on demand. Replacements are staged in memory;
// [Document.Save] writes the original file followed by one incremental
// update holding the new image objects under their old object numbers, so
// every page, form and resource dictionary that referenced an image sees
// the new one.
package pdfdoc
