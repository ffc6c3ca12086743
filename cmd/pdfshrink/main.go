// Command pdfshrink reports on and shrinks the images of a PDF file.
//
// Usage:
//
//	pdfshrink [options] input.pdf [output.pdf]
//
// Without -extract, -stats or -import, images above the threshold
// resolution are shrunk and the result is written to output.pdf
// (input.pdf.small.pdf by default). -import substitutes images from a
// directory instead and also writes the output.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
	"golang.org/x/text/language"

	"github.com/tsawler/pdfshrink"
	"github.com/tsawler/pdfshrink/config"
	"github.com/tsawler/pdfshrink/logging"
	"github.com/tsawler/pdfshrink/report"
	"github.com/tsawler/pdfshrink/resolution"
)

var errUsage = errors.New("usage")

// invocation is the parsed command line.
type invocation struct {
	cfg     config.Config
	input   string
	output  string
	stats   bool
	verbose bool
	json    bool
	lang    language.Tag
}

func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	cfg := config.Default()
	fs := flag.NewFlagSet("pdfshrink", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: pdfshrink [options] input.pdf [output.pdf]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	fs.Float64Var(&cfg.TargetResolution, "res", cfg.TargetResolution, "target resolution of shrunk images, in dpi")
	fs.Float64Var(&cfg.ResolutionThreshold, "resTh", cfg.ResolutionThreshold, "only shrink images above this resolution")
	fs.Float64Var(&cfg.JPEGQuality, "q", cfg.JPEGQuality, "JPEG quality factor, 0.0 .. 1.0")
	fs.BoolVar(&cfg.Extract, "extract", false, "write all images to files")
	fs.StringVar(&cfg.ExtractDirectory, "extract-dir", cfg.ExtractDirectory, "directory for extracted images")
	stats := fs.Bool("stats", false, "print statistics about every image")
	fs.StringVar(&cfg.ImportDirectory, "import", "", "replace images by files of the same name from this directory")
	scope := fs.String("scope", cfg.KeyScope.String(), "resolution key scope: document or page")
	fs.BoolVar(&cfg.StrictChecksums, "strict", false, "reject imported PNGs with bad checksums")
	fs.StringVar(&cfg.ReportFormat, "report", cfg.ReportFormat, "statistics format: text or html")
	fs.StringVar(&cfg.HistoryPath, "history", "", "record the run in this SQLite database")
	output := fs.String("o", "", "output file")
	verbose := fs.Bool("v", false, "log debug messages")
	jsonLog := fs.Bool("json", false, "log as JSON")
	lang := fs.String("lang", "en", "language for number formatting in reports")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	inv := &invocation{stats: *stats, verbose: *verbose, json: *jsonLog, output: *output}
	switch fs.NArg() {
	case 1:
		inv.input = fs.Arg(0)
	case 2:
		inv.input = fs.Arg(0)
		if inv.output != "" && inv.output != fs.Arg(1) {
			return nil, fmt.Errorf("output given twice: -o %s and %s", inv.output, fs.Arg(1))
		}
		inv.output = fs.Arg(1)
	default:
		fs.Usage()
		return nil, errUsage
	}

	s, err := resolution.ParseScope(*scope)
	if err != nil {
		return nil, err
	}
	cfg.KeyScope = s
	if inv.lang, err = language.Parse(*lang); err != nil {
		return nil, fmt.Errorf("-lang: %w", err)
	}

	shrink := !cfg.Extract && !inv.stats && cfg.ImportDirectory == ""
	cfg.SkipShrink = !shrink
	cfg.ReportOnly = !shrink && cfg.ImportDirectory == ""
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inv.cfg = cfg
	return inv, nil
}

func setupLogging(inv *invocation, stderr *os.File) {
	level := slog.LevelInfo
	if inv.verbose {
		level = slog.LevelDebug
	}
	useJSON := inv.json || !term.IsTerminal(int(stderr.Fd()))
	logging.SetLogger(logging.New(stderr, logging.Options{Level: level, JSON: useJSON}))
}

func run(inv *invocation, stdout io.Writer) error {
	result, warnings, err := pdfshrink.Open(inv.input).WithConfig(inv.cfg).Run(inv.output)
	if err != nil {
		return err
	}

	if inv.stats {
		switch inv.cfg.ReportFormat {
		case config.ReportHTML:
			err = report.WriteHTML(stdout, result.Images, inv.input)
		default:
			err = report.WriteText(stdout, result.Images, inv.lang)
		}
		if err != nil {
			return err
		}
	}

	if result.Output != "" {
		fmt.Fprintf(stdout, "%s: %d shrunk, %d imported, %d -> %d image bytes\n",
			result.Output, result.Shrunk, result.Imported, result.BytesBefore, result.BytesAfter)
	}
	if inv.cfg.Extract {
		fmt.Fprintf(stdout, "%d images extracted to %s\n", result.Extracted, inv.cfg.ExtractDirectory)
	}
	if len(warnings) > 0 {
		logging.Logger().Warn("finished with warnings", "count", len(warnings))
	}
	return nil
}

func main() {
	inv, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "pdfshrink: %v\n", err)
		}
		os.Exit(2)
	}
	setupLogging(inv, os.Stderr)

	if err := run(inv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pdfshrink: %v\n", err)
		os.Exit(1)
	}
}
