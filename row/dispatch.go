package row

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"mksite/media"
)

type kind int

const (
	textField kind = iota
	mediaField
	linkField
)

type field struct {
	name   string
	kind   kind
	prefix string // links only
}

func text(name string) field         { return field{name: name, kind: textField} }
func image(name string) field        { return field{name: name, kind: mediaField} }
func link(name, prefix string) field { return field{name: name, kind: linkField, prefix: prefix} }

// values holds normalized field values of a single row.
type values struct {
	texts  map[string]string
	medias map[string]*MediaReference
	links  map[string]Link
}

type shape struct {
	name     string
	fields   []field
	accepted []media.Orientation
	build    func(v *values) Row
}

var (
	verticalOnly = []media.Orientation{media.OrientationVertical}
	notWide      = []media.Orientation{media.OrientationVertical, media.OrientationHorizontal}
)

// shapes lists every row type in declaration order. Order of fields is order
// of orientation checks.
var shapes = []shape{
	{
		name:   "Image",
		fields: []field{image("image")},
		build: func(v *values) Row {
			return &ImageRow{Image: v.medias["image"]}
		},
	},
	{
		name:   "ImageImage",
		fields: []field{image("left"), image("right")},
		build: func(v *values) Row {
			return &ImageImageRow{Left: v.medias["left"], Right: v.medias["right"]}
		},
	},
	{
		name:     "ImageImageImage",
		fields:   []field{image("left"), image("center"), image("right")},
		accepted: verticalOnly,
		build: func(v *values) Row {
			return &ImageImageImageRow{Left: v.medias["left"], Center: v.medias["center"], Right: v.medias["right"]}
		},
	},
	{
		name:     "TextImage",
		fields:   []field{text("text"), image("image")},
		accepted: notWide,
		build: func(v *values) Row {
			return &TextImageRow{Text: v.texts["text"], Image: v.medias["image"]}
		},
	},
	{
		name:     "ImageText",
		fields:   []field{image("image"), text("text")},
		accepted: notWide,
		build: func(v *values) Row {
			return &ImageTextRow{Image: v.medias["image"], Text: v.texts["text"]}
		},
	},
	{
		name:   "Header",
		fields: []field{text("heading"), text("subheading")},
		build: func(v *values) Row {
			return &HeaderRow{Heading: v.texts["heading"], Subheading: v.texts["subheading"]}
		},
	},
	{
		name:   "Paragraph",
		fields: []field{text("text")},
		build: func(v *values) Row {
			return &ParagraphRow{Text: v.texts["text"]}
		},
	},
	{
		name:   "Caption",
		fields: []field{text("caption")},
		build: func(v *values) Row {
			return &CaptionRow{Caption: v.texts["caption"]}
		},
	},
	{
		name:   "Video",
		fields: []field{text("video"), text("caption")},
		build: func(v *values) Row {
			return &VideoRow{Video: v.texts["video"], Caption: v.texts["caption"]}
		},
	},
	{
		name:   "Footer",
		fields: []field{link("previous", "Previous: "), link("index", "Back to "), link("next", "Next: ")},
		build: func(v *values) Row {
			return &FooterRow{Previous: v.links["previous"], Index: v.links["index"], Next: v.links["next"]}
		},
	},
}

// table maps canonical field set to row types accepting it, in declaration
// order. Types may share a set only when their field order differs.
type table map[string][]*shape

var dispatchTable = mustTable(shapes)

func setKey(names []string) string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}

func (s *shape) names() []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		names = append(names, f.name)
	}
	return names
}

func newTable(list []shape) (table, error) {
	t := make(table, len(list))
	for i := range list {
		s := &list[i]
		names := s.names()
		for j, n := range names {
			if slices.Contains(names[:j], n) {
				return nil, fmt.Errorf("row type %s declares field %q twice", s.name, n)
			}
		}
		key := setKey(names)
		for _, other := range t[key] {
			if slices.Equal(other.names(), names) {
				return nil, fmt.Errorf("row types %s and %s accept the same fields [%s]", other.name, s.name, strings.Join(names, ", "))
			}
		}
		t[key] = append(t[key], s)
	}
	return t, nil
}

func mustTable(list []shape) table {
	t, err := newTable(list)
	if err != nil {
		panic(err)
	}
	return t
}

// Dispatch selects row type whose field names are exactly the keys of the
// mapping and builds it. When several types accept the same set of names the
// first declared one is used. Media fields are classified only when row type
// restricts orientation.
func Dispatch(fields map[string]any, env *Env) (Row, error) {
	return dispatchTable.dispatch(nil, fields, env)
}

// DispatchOrdered is Dispatch for mappings with known key order, the order
// selects between row types sharing the same set of names ("text, image"
// versus "image, text").
func DispatchOrdered(keys []string, fields map[string]any, env *Env) (Row, error) {
	return dispatchTable.dispatch(keys, fields, env)
}

func (t table) lookup(order []string, fields map[string]any) (*shape, error) {
	keys := slices.Sorted(maps.Keys(fields))
	candidates := t[strings.Join(keys, ",")]
	if len(candidates) == 0 {
		return nil, &UnknownRowShapeError{Keys: keys}
	}
	for _, s := range candidates {
		if slices.Equal(s.names(), order) {
			return s, nil
		}
	}
	return candidates[0], nil
}

func (t table) dispatch(order []string, fields map[string]any, env *Env) (Row, error) {
	s, err := t.lookup(order, fields)
	if err != nil {
		return nil, err
	}

	v := &values{
		texts:  make(map[string]string),
		medias: make(map[string]*MediaReference),
		links:  make(map[string]Link),
	}
	for _, f := range s.fields {
		raw := fields[f.name]
		switch f.kind {
		case textField:
			str, err := scalar(f.name, raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.name, err)
			}
			v.texts[f.name] = str
		case mediaField:
			m, err := parseMedia(f.name, raw, env)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.name, err)
			}
			v.medias[f.name] = m
		case linkField:
			target, err := scalar(f.name, raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.name, err)
			}
			if target == NoLink {
				target = ""
			}
			v.links[f.name] = Link{Target: target, Prefix: f.prefix}
		}
	}

	if len(s.accepted) > 0 {
		for _, f := range s.fields {
			if f.kind != mediaField {
				continue
			}
			m := v.medias[f.name]
			o, err := m.Orientation()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.name, err)
			}
			if !slices.Contains(s.accepted, o) {
				return nil, &InvalidOrientationError{
					Variant:  s.name,
					Field:    f.name,
					Path:     m.Path,
					Accepted: slices.Clone(s.accepted),
					Actual:   o,
				}
			}
		}
	}
	return s.build(v), nil
}

// Shape describes one row type.
type Shape struct {
	Name     string
	Fields   []string
	Accepted []media.Orientation
}

// Variants lists known row types in declaration order.
func Variants() []Shape {
	out := make([]Shape, 0, len(shapes))
	for i := range shapes {
		s := &shapes[i]
		out = append(out, Shape{Name: s.name, Fields: s.names(), Accepted: slices.Clone(s.accepted)})
	}
	return out
}
