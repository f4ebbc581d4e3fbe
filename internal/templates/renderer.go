package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/options"
)

// MaxIncludeDepth bounds nested includes so that include cycles fail
// instead of recursing forever.
const MaxIncludeDepth = 32

// Data is the value templates execute against.
type Data map[string]any

// Renderer executes templates. Every file is parsed into its own template
// set, so an include call inside a file always resolves relative to that
// file.
type Renderer struct {
	resolver *Resolver
}

// NewRenderer creates a renderer that resolves includes with resolver.
func NewRenderer(resolver *Resolver) *Renderer {
	return &Renderer{resolver: resolver}
}

// Render executes t with data.
func (r *Renderer) Render(t Template, data Data) (string, error) {
	return r.render(t, data, 0)
}

func (r *Renderer) render(t Template, data Data, depth int) (string, error) {
	if depth > MaxIncludeDepth {
		return "", errors.NewRenderError(fmt.Sprintf("includes nested deeper than %d", MaxIncludeDepth), nil).WithFile(t.String())
	}

	src, err := t.ReadSource()
	if err != nil {
		return "", errors.FileOperationError("read template", t.String(), err)
	}

	tmpl, err := template.New(t.Path).Funcs(r.funcs(t, data, depth)).Parse(string(src))
	if err != nil {
		return "", errors.NewRenderError("parsing template", err).WithFile(t.String())
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", errors.NewRenderError("executing template", err).WithFile(t.String())
	}
	return buf.String(), nil
}

func (r *Renderer) funcs(current Template, data Data, depth int) template.FuncMap {
	return template.FuncMap{
		// include renders another template with the current data, or with
		// the single argument given.
		"include": func(ref string, args ...any) (template.HTML, error) {
			next := data
			if len(args) > 1 {
				return "", fmt.Errorf("include %s: at most one data argument", ref)
			}
			if len(args) == 1 {
				d, err := toData(args[0])
				if err != nil {
					return "", fmt.Errorf("include %s: %w", ref, err)
				}
				next = d
			}
			t, err := r.resolver.GetTemplate(ref, &current)
			if err != nil {
				return "", err
			}
			out, err := r.render(t, next, depth+1)
			return template.HTML(out), err
		},
		"set":     set,
		"raw":     func(s string) template.HTML { return template.HTML(s) },
		"default": defaultValue,
		"json":    toJSON,
		"join":    strings.Join,
	}
}

func toData(v any) (Data, error) {
	switch t := v.(type) {
	case Data:
		return t, nil
	case map[string]any:
		return Data(t), nil
	case options.Options:
		return Data(t), nil
	case nil:
		return Data{}, nil
	}
	return nil, fmt.Errorf("data must be a map, got %T", v)
}

// set returns a copy of data with the given key/value pairs added.
func set(data any, kv ...any) (Data, error) {
	base, err := toData(data)
	if err != nil {
		return nil, err
	}
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("set: odd number of key/value arguments")
	}
	out := make(Data, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("set: key %v is not a string", kv[i])
		}
		out[key] = kv[i+1]
	}
	return out, nil
}

func defaultValue(fallback, v any) any {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		if t == "" {
			return fallback
		}
	}
	return v
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
