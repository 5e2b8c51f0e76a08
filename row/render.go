package row

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"mksite/media"
)

//go:embed templates.gohtml
var templatesText string

// base is parsed once, every Renderer clones it and binds its own functions.
var base = template.Must(template.New("rows").Funcs(sprig.HtmlFuncMap()).Funcs(template.FuncMap{
	"media": func(*MediaReference) (mediaView, error) { return mediaView{}, errors.New("not bound") },
	"text":  func(string) (template.HTML, error) { return "", errors.New("not bound") },
	"video": func(string) videoView { return videoView{} },
	"link":  func(Link, string) linkView { return linkView{} },
}).Parse(templatesText))

// TextRenderer turns free text fields into HTML. Without markdown text is
// used as is, so it may carry raw HTML.
type TextRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewTextRenderer(markdown, sanitize bool) *TextRenderer {
	t := &TextRenderer{}
	if markdown {
		t.md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		)
	}
	if sanitize {
		t.policy = bluemonday.UGCPolicy()
	}
	return t
}

func (t *TextRenderer) Render(s string) (template.HTML, error) {
	out := []byte(s)
	if t != nil && t.md != nil {
		var buf bytes.Buffer
		if err := t.md.Convert(out, &buf); err != nil {
			return "", fmt.Errorf("unable to render markdown: %w", err)
		}
		out = bytes.TrimSpace(buf.Bytes())
	}
	if t != nil && t.policy != nil {
		out = t.policy.SanitizeBytes(out)
	}
	return template.HTML(out), nil
}

type mediaView struct {
	Path        string
	Caption     string
	Credit      string
	Orientation string
	HD, UHD     string
}

type videoView struct {
	Local  bool
	Source string
}

type linkView struct {
	Link
	Class string
}

// Renderer produces HTML fragments for rows.
type Renderer struct {
	tmpl     *template.Template
	text     *TextRenderer
	embedURL string
}

// NewRenderer prepares templates. embedURL is printf template used for
// videos which are not local files.
func NewRenderer(text *TextRenderer, embedURL string) (*Renderer, error) {
	tmpl, err := base.Clone()
	if err != nil {
		return nil, fmt.Errorf("unable to prepare row templates: %w", err)
	}
	r := &Renderer{text: text, embedURL: embedURL}
	r.tmpl = tmpl.Funcs(template.FuncMap{
		"media": r.media,
		"text":  r.Text,
		"video": r.video,
		"link":  func(l Link, class string) linkView { return linkView{Link: l, Class: class} },
	})
	return r, nil
}

// Render writes fragment for a single row. Orientation of media not yet
// classified is determined here.
func (r *Renderer) Render(w io.Writer, row Row) error {
	if row == nil {
		return errors.New("nothing to render")
	}
	if r.tmpl.Lookup(row.Variant()) == nil {
		return fmt.Errorf("no template for row type %s", row.Variant())
	}
	if err := r.tmpl.ExecuteTemplate(w, row.Variant(), row); err != nil {
		return fmt.Errorf("unable to render %s row: %w", row.Variant(), err)
	}
	return nil
}

// Text renders free text according to configuration.
func (r *Renderer) Text(s string) (template.HTML, error) {
	return r.text.Render(s)
}

func (r *Renderer) media(m *MediaReference) (mediaView, error) {
	if m == nil {
		return mediaView{}, errors.New("missing media reference")
	}
	o, err := m.Orientation()
	if err != nil {
		return mediaView{}, err
	}
	v := mediaView{Path: m.Path, Caption: m.Caption, Credit: m.Credit, Orientation: o.String()}
	if media.IsImage(m.Path) {
		v.HD = media.VariantPath(m.Path, media.Variants[0])
		v.UHD = media.VariantPath(m.Path, media.Variants[1])
	}
	return v, nil
}

func (r *Renderer) video(id string) videoView {
	if media.IsVideo(id) {
		return videoView{Local: true, Source: id}
	}
	return videoView{Source: fmt.Sprintf(r.embedURL, url.PathEscape(id))}
}
