package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var columns = []string{"Page", "Name", "Size", "DPI", "Format", "Filters", "Bytes", "Bits/pixel", "Outcome"}

// WriteHTML writes a standalone HTML document with one table row per
// image.
func WriteHTML(w io.Writer, stats []ImageStat, title string) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)
	head := element(atom.Head)
	root.AppendChild(head)
	head.AppendChild(withText(element(atom.Title), title))
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(meta)

	body := element(atom.Body)
	root.AppendChild(body)
	body.AppendChild(withText(element(atom.H1), title))

	table := element(atom.Table)
	body.AppendChild(table)
	header := element(atom.Tr)
	for _, c := range columns {
		header.AppendChild(withText(element(atom.Th), c))
	}
	table.AppendChild(header)

	for _, s := range stats {
		tr := element(atom.Tr)
		tr.Attr = []html.Attribute{{Key: "class", Val: s.Outcome}}
		size := fmt.Sprintf("%d×%d", s.Width, s.Height)
		if s.NewWidth > 0 {
			size += fmt.Sprintf(" → %d×%d", s.NewWidth, s.NewHeight)
		}
		cells := []string{
			fmt.Sprint(s.Page),
			s.Name,
			size,
			fmt.Sprintf("%.0f", s.DPI),
			s.Format,
			strings.Join(s.Filters, " "),
			fmt.Sprint(s.Length),
			fmt.Sprintf("%.2f", s.BitsPerPixel),
			s.Outcome,
		}
		for _, c := range cells {
			tr.AppendChild(withText(element(atom.Td), c))
		}
		table.AppendChild(tr)
	}

	before, after := Totals(stats)
	body.AppendChild(withText(element(atom.P), fmt.Sprintf("%d images, %d bytes before, %d bytes after", len(stats), before, after)))

	return html.Render(w, doc)
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
