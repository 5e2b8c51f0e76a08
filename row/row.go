// Package row defines page layout blocks and maps untyped YAML mappings to
// them by their set of field names.
package row

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Row is one layout block of a page. Rows are immutable once built.
type Row interface {
	// Variant returns name of the row type, it is also name of the
	// template used to render it.
	Variant() string
}

type (
	ImageRow struct {
		Image *MediaReference
	}

	ImageImageRow struct {
		Left, Right *MediaReference
	}

	ImageImageImageRow struct {
		Left, Center, Right *MediaReference
	}

	TextImageRow struct {
		Text  string
		Image *MediaReference
	}

	ImageTextRow struct {
		Image *MediaReference
		Text  string
	}

	HeaderRow struct {
		Heading, Subheading string
	}

	ParagraphRow struct {
		Text string
	}

	CaptionRow struct {
		Caption string
	}

	VideoRow struct {
		Video, Caption string
	}

	FooterRow struct {
		Previous, Index, Next Link
	}
)

func (*ImageRow) Variant() string           { return "Image" }
func (*ImageImageRow) Variant() string      { return "ImageImage" }
func (*ImageImageImageRow) Variant() string { return "ImageImageImage" }
func (*TextImageRow) Variant() string       { return "TextImage" }
func (*ImageTextRow) Variant() string       { return "ImageText" }
func (*HeaderRow) Variant() string          { return "Header" }
func (*ParagraphRow) Variant() string       { return "Paragraph" }
func (*CaptionRow) Variant() string         { return "Caption" }
func (*VideoRow) Variant() string           { return "Video" }
func (*FooterRow) Variant() string          { return "Footer" }

// NoLink is conventional value for absent footer target.
const NoLink = "None"

// Link is navigational reference to another page of the site.
type Link struct {
	Target string
	Prefix string
}

// Empty links render as empty placeholders.
func (l Link) Empty() bool {
	return l.Target == ""
}

// Href points to rendered page.
func (l Link) Href() string {
	if l.Empty() {
		return ""
	}
	if strings.EqualFold(path.Ext(l.Target), ".html") {
		return l.Target
	}
	return l.Target + ".html"
}

// Title is derived from file name component of the target.
func (l Link) Title() string {
	if l.Empty() {
		return ""
	}
	base := path.Base(strings.ReplaceAll(l.Target, `\`, "/"))
	switch strings.ToLower(path.Ext(base)) {
	case ".html", ".yml", ".yaml":
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	return Title(base)
}

var separators = strings.NewReplacer("_", " ", "-", " ")

// Title turns page name into human readable form: "trip_one" becomes
// "Trip One".
func Title(name string) string {
	// Caser keeps state, cannot be shared
	return cases.Title(language.English).String(separators.Replace(name))
}
