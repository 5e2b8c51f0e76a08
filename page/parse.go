package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v3"

	"mksite/row"
)

// Index describes table of contents document.
type Index struct {
	Prelude         string   `yaml:"prelude"`
	TableOfContents []string `yaml:"table_of_contents"`
}

// ParseIndex expects single mapping with prelude and table_of_contents keys.
func ParseIndex(data []byte) (*Index, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	idx := &Index{}
	if err := dec.Decode(idx); err != nil {
		if errors.Is(err, io.EOF) {
			return idx, nil
		}
		return nil, fmt.Errorf("unable to decode index: %w", err)
	}
	return idx, nil
}

// ParsePage expects sequence of mappings, each mapping becomes one row.
func ParsePage(data []byte, env *row.Env) ([]row.Row, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to decode page: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// empty document
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: page must be a sequence of rows", root.Line)
	}

	rows := make([]row.Row, 0, len(root.Content))
	for i, n := range root.Content {
		r, err := parseRow(n, env)
		if err != nil {
			return nil, fmt.Errorf("row %d (line %d): %w", i+1, n.Line, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func parseRow(n *yaml.Node, env *row.Env) (row.Row, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errors.New("row must be a mapping")
	}
	fields := make(map[string]any, len(n.Content)/2)
	if err := n.Decode(&fields); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return row.DispatchOrdered(keys, fields, env)
}
