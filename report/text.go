package report

import (
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteText writes one line per image: length, DPI, dimensions, format,
// bits per pixel and name, followed by a totals line. Numbers are grouped
// for the given language.
func WriteText(w io.Writer, stats []ImageStat, lang language.Tag) error {
	p := message.NewPrinter(lang)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	p.Fprintf(tw, "bytes\tdpi\tsize\tformat\tbpp\tname\t\n")
	for _, s := range stats {
		name := s.Name
		if s.Key != "" && s.Key != s.Name {
			name = s.Key
		}
		size := p.Sprintf("%dx%d", s.Width, s.Height)
		if s.Outcome == Shrunk || s.Outcome == Imported {
			size += p.Sprintf(" -> %dx%d", s.NewWidth, s.NewHeight)
		}
		p.Fprintf(tw, "%d\t%d\t%s\t%s\t%.2f\t%s\t\n",
			s.Length, int(s.DPI), size, s.Format, s.BitsPerPixel, name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	before, after := Totals(stats)
	var b strings.Builder
	p.Fprintf(&b, "%d images, %d bytes", len(stats), before)
	if after != before {
		p.Fprintf(&b, " -> %d bytes", after)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
