// Package config holds the settings of one analysis and recompression run.
package config

import (
	"errors"
	"fmt"

	"github.com/tsawler/pdfshrink/resolution"
)

// Report formats.
const (
	ReportText = "text"
	ReportHTML = "html"
)

// Config is the full option set. The zero value is not usable; start from
// Default.
type Config struct {
	// TargetResolution is the DPI a shrunk image is resampled to.
	TargetResolution float64
	// ResolutionThreshold is the DPI above which an image is shrunk.
	ResolutionThreshold float64
	// JPEGQuality is the lossy encoder quality in [0, 1].
	JPEGQuality float64

	// Extract writes every image to ExtractDirectory.
	Extract          bool
	ExtractDirectory string
	// ReportOnly collects statistics without changing the document.
	ReportOnly bool
	// SkipShrink leaves resolutions alone; import and extraction still
	// run.
	SkipShrink bool
	// ImportDirectory, when set, holds replacement images matched to
	// resources by base file name.
	ImportDirectory string

	KeyScope resolution.Scope
	// StrictChecksums makes a CRC mismatch on a critical PNG chunk fatal
	// for that image.
	StrictChecksums bool

	ReportFormat string
	// HistoryPath is a SQLite database recording runs; empty disables it.
	HistoryPath string
}

// Default returns the stock settings: 300 dpi target, 450 dpi threshold,
// quality 0.85, document-scoped keys.
func Default() Config {
	return Config{
		TargetResolution:    300,
		ResolutionThreshold: 450,
		JPEGQuality:         0.85,
		ExtractDirectory:    ".",
		KeyScope:            resolution.ScopeDocument,
		ReportFormat:        ReportText,
	}
}

// Validate reports every invalid setting, joined.
func (c Config) Validate() error {
	var errs []error
	if c.TargetResolution <= 0 {
		errs = append(errs, fmt.Errorf("target resolution must be positive, got %g", c.TargetResolution))
	}
	if c.ResolutionThreshold <= 0 {
		errs = append(errs, fmt.Errorf("resolution threshold must be positive, got %g", c.ResolutionThreshold))
	} else if c.ResolutionThreshold < c.TargetResolution {
		errs = append(errs, fmt.Errorf("resolution threshold %g is below the target %g", c.ResolutionThreshold, c.TargetResolution))
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 1 {
		errs = append(errs, fmt.Errorf("JPEG quality must be within [0, 1], got %g", c.JPEGQuality))
	}
	if c.KeyScope != resolution.ScopeDocument && c.KeyScope != resolution.ScopePage {
		errs = append(errs, fmt.Errorf("unknown key scope %v", c.KeyScope))
	}
	switch c.ReportFormat {
	case ReportText, ReportHTML:
	default:
		errs = append(errs, fmt.Errorf("unknown report format %q", c.ReportFormat))
	}
	if c.Extract && c.ExtractDirectory == "" {
		errs = append(errs, errors.New("extraction needs a directory"))
	}
	return errors.Join(errs...)
}

func (c Config) String() string {
	return fmt.Sprintf("res=%g resTh=%g q=%g scope=%v", c.TargetResolution, c.ResolutionThreshold, c.JPEGQuality, c.KeyScope)
}
