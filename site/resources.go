package site

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"mksite/config"
)

//go:embed resources/styles.css
var defaultStylesheet []byte

//go:embed resources/scripts.js
var defaultScript []byte

type resource struct {
	name     string
	data     []byte
	override string
	loader   api.Loader
}

// WriteResources puts styles and scripts into the output root. They are
// always overwritten.
func WriteResources(dst string, cfg *config.ResourcesConfig) error {
	list := []resource{
		{name: "styles.css", data: defaultStylesheet, override: cfg.StylesheetPath, loader: api.LoaderCSS},
		{name: "scripts.js", data: defaultScript, override: cfg.ScriptPath, loader: api.LoaderJS},
	}
	for _, r := range list {
		data := r.data
		if r.override != "" {
			var err error
			if data, err = os.ReadFile(r.override); err != nil {
				return fmt.Errorf("unable to read %s replacement from %q: %w", r.name, r.override, err)
			}
		}
		if cfg.Minify {
			var err error
			if data, err = minify(r.name, data, r.loader); err != nil {
				return err
			}
		}
		if err := writeFile(filepath.Join(dst, r.name), data); err != nil {
			return err
		}
	}
	return nil
}

func minify(name string, data []byte, loader api.Loader) ([]byte, error) {
	result := api.Transform(string(data), api.TransformOptions{
		Loader:            loader,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: loader == api.LoaderJS,
		Sourcefile:        name,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		if msg.Location != nil {
			return nil, fmt.Errorf("unable to minify %s (line %d): %s", name, msg.Location.Line, msg.Text)
		}
		return nil, fmt.Errorf("unable to minify %s: %s", name, msg.Text)
	}
	return result.Code, nil
}
