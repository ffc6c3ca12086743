// Package pdfshrink provides a fluent API for finding and shrinking
// over-resolved images in PDF files.
//
// Basic usage:
//
//	result, warnings, err := pdfshrink.Open("scan.pdf").Run("scan.small.pdf")
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", pdfshrink.FormatWarnings(warnings))
//	}
//
// With options:
//
//	result, _, err := pdfshrink.Open("scan.pdf").
//	    TargetResolution(200).
//	    Threshold(300).
//	    Quality(0.7).
//	    Run("")
//
// Statistics without changing anything:
//
//	stats, _, err := pdfshrink.Open("scan.pdf").Stats()
//
// For lower-level control, the resolution, recompress and pdfdoc packages
// can be used directly.
package pdfshrink

import (
	"github.com/tsawler/pdfshrink/config"
	"github.com/tsawler/pdfshrink/pdfdoc"
)

// Open returns a Shrinker for the PDF file at filename. The file is opened
// on the first terminal operation; Close releases it.
//
// Example:
//
//	stats, warnings, err := pdfshrink.Open("document.pdf").Stats()
func Open(filename string) *Shrinker {
	return &Shrinker{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromDocument creates a Shrinker over an already-opened document. The
// caller is responsible for closing it.
func FromDocument(doc *pdfdoc.Document) *Shrinker {
	return &Shrinker{
		doc:       doc,
		docOpened: true,
		options:   defaultOptions(),
	}
}

// DefaultOutput returns the output path used when none is given: the input
// path with ".small.pdf" appended.
func DefaultOutput(input string) string {
	return input + ".small.pdf"
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil.
//
// Example:
//
//	count := pdfshrink.Must(pdfshrink.Open("document.pdf").PageCount())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustValue is like Must for terminal operations that also return
// warnings, which it discards.
//
// Example:
//
//	stats := pdfshrink.MustValue(pdfshrink.Open("document.pdf").Stats())
func MustValue[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// Defaults returns the configuration a new Shrinker starts from.
func Defaults() config.Config {
	return config.Default()
}
