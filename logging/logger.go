// Package logging owns the process-wide *slog.Logger used by pdfshrink.
//
// Library code never writes to stderr directly. It logs through Logger(),
// which discards everything until a program installs a logger:
//
//	logging.SetLogger(logging.New(os.Stderr, logging.Options{Level: slog.LevelDebug}))
package logging

import (
	"io"
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

// SetLogger installs the process logger. nil restores the discard logger.
// SetLogger is safe for concurrent use.
func SetLogger(sl *slog.Logger) {
	if sl == nil {
		sl = slog.New(slog.DiscardHandler)
	}
	logger.Store(sl)
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	l := logger.Load()
	if l == nil {
		l = slog.New(slog.DiscardHandler)
		logger.Store(l)
	}
	return l
}

// Options selects the handler built by New.
type Options struct {
	Level slog.Leveler
	JSON  bool
}

// New returns a logger writing text or JSON records to w.
func New(w io.Writer, opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}
