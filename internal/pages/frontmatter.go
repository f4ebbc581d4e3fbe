package pages

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/conneroisu/manuscript/internal/options"
	"gopkg.in/yaml.v2"
)

var frontMatterBlock = regexp.MustCompile(`^---[ \t]*\r?\n(?s:.*?)\r?\n---[ \t]*(?:\r?\n|$)`)

// ReadFrontMatter splits a leading YAML block off text. A block that is not
// valid YAML is still removed; its data is dropped.
func ReadFrontMatter(text string) (body string, data options.Options) {
	text = strings.TrimSpace(text)
	data = options.Options{}

	var raw map[string]any
	rest, err := frontmatter.Parse(strings.NewReader(text), &raw)
	if err != nil {
		return frontMatterBlock.ReplaceAllString(text, ""), data
	}
	for k, v := range raw {
		data[k] = normalizeYAML(v)
	}
	return string(bytes.TrimLeft(rest, "\r\n")), data
}

// normalizeYAML converts the map[interface{}]interface{} values produced by
// yaml.v2 into map[string]any so templates and merges see one map type.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[fmt.Sprint(k)] = normalizeYAML(inner)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = normalizeYAML(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = normalizeYAML(inner)
		}
		return s
	default:
		return v
	}
}

// parseDirOptions decodes an index.yaml document. Anything but a mapping
// yields empty options.
func parseDirOptions(data []byte) (options.Options, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return options.Options{}, err
	}
	out := options.Options{}
	for k, v := range raw {
		out[k] = normalizeYAML(v)
	}
	return out, nil
}
