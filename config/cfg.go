package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	VideoConfig struct {
		// EmbedURL is a printf template, %s is replaced with video identifier.
		EmbedURL string `yaml:"embed_url" validate:"required,contains=%s"`
		FFProbe  string `yaml:"ffprobe" validate:"required"`
		FFMpeg   string `yaml:"ffmpeg" validate:"required"`
	}

	ImagesConfig struct {
		JPEGQuality int `yaml:"jpeg_quality" validate:"min=40,max=100"`
	}

	ResourcesConfig struct {
		StylesheetPath string `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		ScriptPath     string `yaml:"script_path" sanitize:"assure_file_access"`
		Minify         bool   `yaml:"minify"`
	}

	SiteConfig struct {
		Workers   int             `yaml:"workers" validate:"gte=0,lte=256"`
		Markdown  bool            `yaml:"markdown"`
		Sanitize  bool            `yaml:"sanitize"`
		Video     VideoConfig     `yaml:"video"`
		Images    ImagesConfig    `yaml:"images"`
		Resources ResourcesConfig `yaml:"resources"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Site      SiteConfig     `yaml:"site"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// EmbedURLFieldName must match yaml field name above, printf verbs in it
// should not be touched by template expansion.
const EmbedURLFieldName = "embed_url"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(EmbedURLFieldName),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields we defined are allowed, so no yaml.Unmarshal here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template and
// performs validation. Empty path means defaults only.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns default configuration expanded from embedded template.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
