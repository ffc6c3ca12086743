package pdfshrink

import (
	"github.com/tsawler/pdfshrink/config"
	"github.com/tsawler/pdfshrink/diag"
)

// options holds the configuration of a Shrinker.
type options struct {
	config config.Config

	// Form nesting limit for analysis and recompression; 0 uses the default.
	maxDepth int

	// Receives every diagnostic, including progress events.
	sink diag.Sink
}

// defaultOptions returns the default options.
func defaultOptions() options {
	return options{config: config.Default()}
}

// clone creates a copy of options. Config holds only values.
func (o options) clone() options {
	return options{config: o.config, maxDepth: o.maxDepth, sink: o.sink}
}
