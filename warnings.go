package pdfshrink

import (
	"strings"

	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/logging"
)

// Warning is a non-fatal issue found while processing a document, such as
// a distorted image placement or an image that could not be re-encoded.
type Warning struct {
	diag.Event
}

// String formats the warning with its kind.
func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Event.String()
}

// FormatWarnings renders warnings one per line.
func FormatWarnings(warnings []Warning) string {
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}

// warningSink keeps events of warning kinds and logs every event.
type warningSink struct {
	warnings []Warning
}

// Report implements diag.Sink.
func (s *warningSink) Report(e diag.Event) {
	diag.LogSink{Logger: logging.Logger()}.Report(e)
	if isWarning(e.Kind) {
		s.warnings = append(s.warnings, Warning{e})
	}
}

// isWarning separates problems from progress notices such as ImageShrunk.
func isWarning(k diag.Kind) bool {
	switch k {
	case diag.NonSquareResolution, diag.ChecksumMismatch, diag.ResolutionLookupMiss,
		diag.CodecFailure, diag.UnsupportedImage, diag.ContentError:
		return true
	}
	return false
}
