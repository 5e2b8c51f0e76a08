// Package page assembles complete HTML documents from rows and table of
// contents descriptions.
package page

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"mksite/row"
)

//go:embed templates.gohtml
var templatesText string

var documents = template.Must(template.New("documents").Funcs(sprig.HtmlFuncMap()).Parse(templatesText))

// Options control document chrome.
type Options struct {
	Renderer *row.Renderer
	Title    string
	// Root is relative path from document to the output root, packaged
	// styles and scripts are referenced through it.
	Root string
	Lang string
}

func (o *Options) lang() string {
	if o.Lang == "" {
		return "en"
	}
	return o.Lang
}

type pageValues struct {
	Lang, Title, Root string
	Rows              []template.HTML
}

// RenderPage writes complete page document. First line is the staleness
// marker for modTime, rows follow in the given order.
func RenderPage(w io.Writer, rows []row.Row, modTime time.Time, opts *Options) error {
	if opts == nil || opts.Renderer == nil {
		return errors.New("page rendering requires row renderer")
	}
	values := pageValues{Lang: opts.lang(), Title: opts.Title, Root: opts.Root, Rows: make([]template.HTML, 0, len(rows))}
	for i, r := range rows {
		var buf bytes.Buffer
		if err := opts.Renderer.Render(&buf, r); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		values.Rows = append(values.Rows, template.HTML(buf.String()))
	}
	return execute(w, "page", values, modTime)
}

type indexEntry struct {
	Href, Title string
}

type indexValues struct {
	Lang, Title, Root string
	Prelude           template.HTML
	Entries           []indexEntry
}

// RenderIndex writes table of contents document, entries keep source order.
func RenderIndex(w io.Writer, idx *Index, modTime time.Time, opts *Options) error {
	if opts == nil || opts.Renderer == nil {
		return errors.New("index rendering requires row renderer")
	}
	prelude, err := opts.Renderer.Text(idx.Prelude)
	if err != nil {
		return fmt.Errorf("prelude: %w", err)
	}
	values := indexValues{Lang: opts.lang(), Title: opts.Title, Root: opts.Root, Prelude: prelude,
		Entries: make([]indexEntry, 0, len(idx.TableOfContents))}
	for _, name := range idx.TableOfContents {
		values.Entries = append(values.Entries, indexEntry{Href: name + ".html", Title: row.Title(name)})
	}
	return execute(w, "index", values, modTime)
}

// html/template drops comments, so marker is written directly
func execute(w io.Writer, name string, data any, modTime time.Time) error {
	var buf bytes.Buffer
	buf.WriteString(Marker(modTime))
	buf.WriteByte('\n')
	if err := documents.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("unable to render %s document: %w", name, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
