package page

import (
	"fmt"
	"strconv"
	"strings"

	"mksite/row"
)

// treeWriter produces indented human readable dumps for debug report.
type treeWriter struct {
	w strings.Builder
}

func (tw *treeWriter) line(depth int, format string, args ...any) {
	tw.w.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw *treeWriter) text(depth int, label, value string) {
	if value == "" {
		return
	}
	tw.line(depth, "%s: %s", label, strconv.Quote(value))
}

func (tw *treeWriter) media(depth int, label string, m *row.MediaReference) {
	if m == nil {
		tw.line(depth, "%s: <nil>", label)
		return
	}
	orientation := "?"
	if o, err := m.Orientation(); err == nil {
		orientation = o.String()
	}
	tw.line(depth, "%s: %s [%s]", label, strconv.Quote(m.Path), orientation)
	tw.text(depth+1, "caption", m.Caption)
	tw.text(depth+1, "credit", m.Credit)
}

func (tw *treeWriter) link(depth int, label string, l row.Link) {
	if l.Empty() {
		tw.line(depth, "%s: -", label)
		return
	}
	tw.line(depth, "%s: %s -> %s", label, strconv.Quote(l.Prefix+l.Title()), l.Href())
}

// Dump describes parsed rows, one block per row.
func Dump(rows []row.Row) string {
	tw := &treeWriter{}
	for i, r := range rows {
		tw.line(0, "%d. %s", i+1, r.Variant())
		switch r := r.(type) {
		case *row.ImageRow:
			tw.media(1, "image", r.Image)
		case *row.ImageImageRow:
			tw.media(1, "left", r.Left)
			tw.media(1, "right", r.Right)
		case *row.ImageImageImageRow:
			tw.media(1, "left", r.Left)
			tw.media(1, "center", r.Center)
			tw.media(1, "right", r.Right)
		case *row.TextImageRow:
			tw.text(1, "text", r.Text)
			tw.media(1, "image", r.Image)
		case *row.ImageTextRow:
			tw.media(1, "image", r.Image)
			tw.text(1, "text", r.Text)
		case *row.HeaderRow:
			tw.text(1, "heading", r.Heading)
			tw.text(1, "subheading", r.Subheading)
		case *row.ParagraphRow:
			tw.text(1, "text", r.Text)
		case *row.CaptionRow:
			tw.text(1, "caption", r.Caption)
		case *row.VideoRow:
			tw.text(1, "video", r.Video)
			tw.text(1, "caption", r.Caption)
		case *row.FooterRow:
			tw.link(1, "previous", r.Previous)
			tw.link(1, "index", r.Index)
			tw.link(1, "next", r.Next)
		}
	}
	return tw.w.String()
}
