// Package diag carries typed, non-fatal diagnostics out of the analysis,
// decoding and recompression passes.
//
// Producers report to a [Sink]. [Collector] keeps events for inspection,
// [LogSink] forwards them to slog, and [Multi] fans out to several sinks.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Kind classifies a diagnostic.
type Kind int

const (
	NonSquareResolution Kind = iota + 1
	ImageReused
	ChecksumMismatch
	ResolutionLookupMiss
	CodecFailure
	UnsupportedImage
	ImageImported
	ImageExtracted
	ImageShrunk
	SharedImage
	ContentError
)

var kindNames = map[Kind]string{
	NonSquareResolution:  "non-square-resolution",
	ImageReused:          "image-reused",
	ChecksumMismatch:     "checksum-mismatch",
	ResolutionLookupMiss: "resolution-lookup-miss",
	CodecFailure:         "codec-failure",
	UnsupportedImage:     "unsupported-image",
	ImageImported:        "image-imported",
	ImageExtracted:       "image-extracted",
	ImageShrunk:          "image-shrunk",
	SharedImage:          "shared-image",
	ContentError:         "content-error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Level returns the slog level events of this kind are logged at.
func (k Kind) Level() slog.Level {
	switch k {
	case CodecFailure, ChecksumMismatch, ContentError:
		return slog.LevelWarn
	case NonSquareResolution, ResolutionLookupMiss, UnsupportedImage,
		ImageShrunk, ImageImported, ImageExtracted:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// Event is one diagnostic. Page is 1-based; 0 means no page applies.
type Event struct {
	Kind     Kind
	Page     int
	Resource string
	Message  string
}

func (e Event) String() string {
	switch {
	case e.Page > 0 && e.Resource != "":
		return fmt.Sprintf("page %d: %s: %s", e.Page, e.Resource, e.Message)
	case e.Page > 0:
		return fmt.Sprintf("page %d: %s", e.Page, e.Message)
	case e.Resource != "":
		return fmt.Sprintf("%s: %s", e.Resource, e.Message)
	}
	return e.Message
}

// Sink receives diagnostics.
type Sink interface {
	Report(Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Event) {}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Collector keeps events in arrival order. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Report implements Sink.
func (c *Collector) Report(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Count returns how many events of kind k were collected.
func (c *Collector) Count(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// LogSink writes events to a slog.Logger.
type LogSink struct {
	Logger *slog.Logger
}

// Report implements Sink.
func (s LogSink) Report(e Event) {
	if s.Logger == nil {
		return
	}
	attrs := []slog.Attr{slog.String("kind", e.Kind.String())}
	if e.Page > 0 {
		attrs = append(attrs, slog.Int("page", e.Page))
	}
	if e.Resource != "" {
		attrs = append(attrs, slog.String("resource", e.Resource))
	}
	s.Logger.LogAttrs(context.Background(), e.Kind.Level(), e.Message, attrs...)
}

// Multi forwards every event to each sink in turn.
type Multi []Sink

// Report implements Sink.
func (m Multi) Report(e Event) {
	for _, s := range m {
		if s != nil {
			s.Report(e)
		}
	}
}
