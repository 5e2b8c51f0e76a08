package row

import (
	"fmt"
	"path/filepath"
	"sync"

	"mksite/media"
)

// Classifier determines orientation of media file.
type Classifier interface {
	Classify(path string) (media.Orientation, error)
}

// Env carries what row constructors need from the outside.
type Env struct {
	// BaseDir is used to resolve relative media paths, normally directory
	// of the page source.
	BaseDir    string
	Classifier Classifier
}

// MediaReference is single image (or video) used by a row. Path is kept as
// written in the source and is what goes into HTML.
type MediaReference struct {
	Path    string
	Caption string
	Credit  string

	orientation func() (media.Orientation, error)
}

// Orientation is computed on first use and remembered for the lifetime of
// the reference. Underlying file must not change during the build.
func (m *MediaReference) Orientation() (media.Orientation, error) {
	if m.orientation == nil {
		return media.OrientationUnknown, fmt.Errorf("no classifier for %s", m.Path)
	}
	return m.orientation()
}

// NewMediaReference prepares reference with lazily classified orientation.
func NewMediaReference(path, caption, credit string, env *Env) *MediaReference {
	m := &MediaReference{Path: path, Caption: caption, Credit: credit}
	if env != nil && env.Classifier != nil {
		resolved := env.resolve(path)
		m.orientation = sync.OnceValues(func() (media.Orientation, error) {
			return env.Classifier.Classify(resolved)
		})
	}
	return m
}

func (e *Env) resolve(path string) string {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) || e.BaseDir == "" {
		return p
	}
	return filepath.Join(e.BaseDir, p)
}

var mediaKeys = map[string]bool{"image": true, "caption": true, "credit": true}

// parseMedia accepts either bare path or mapping with image, caption and
// credit keys.
func parseMedia(field string, value any, env *Env) (*MediaReference, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("field %q: empty media path", field)
		}
		return NewMediaReference(v, "", "", env), nil
	case map[string]any:
		for k := range v {
			if !mediaKeys[k] {
				return nil, fmt.Errorf("field %q: unexpected key %q in media description", field, k)
			}
		}
		path, ok := v["image"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("field %q: media description requires \"image\" path", field)
		}
		caption, err := scalar(field+".caption", v["caption"])
		if err != nil {
			return nil, err
		}
		credit, err := scalar(field+".credit", v["credit"])
		if err != nil {
			return nil, err
		}
		return NewMediaReference(path, caption, credit, env), nil
	default:
		return nil, fmt.Errorf("field %q: expected media path or description, got %T", field, value)
	}
}

// scalar stringifies YAML scalars, nil becomes empty string.
func scalar(field string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("field %q: expected text, got %T", field, value)
	}
}
