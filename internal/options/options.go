// Package options owns a workspace's directory layout and its options file
// (manuscript.yaml).
//
// Options are a flat map. The effective set is always rebuilt from scratch:
// defaults, then the options file, then explicit overrides.
package options

import (
	"os"
	"reflect"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
)

// Options is the merged set of workspace options.
type Options map[string]any

// Well-known option keys.
const (
	KeyIsProduction   = "isProduction"
	KeySiteTitle      = "siteTitle"
	KeyTitleDelimiter = "titleDelimiter"
	KeyDescription    = "description"
	KeyCharset        = "charset"
	KeyLang           = "lang"
	KeyFavicon        = "favicon"
	KeyThemeColor     = "themeColor"
	KeyCSSURLs        = "cssUrls"
	KeyNavbar         = "navbar"
	KeyLogoImage      = "logoImage"
	KeyLogoTitle      = "logoTitle"
	KeyLogoSize       = "logoSize"
	KeyStylesheets    = "stylesheets"
	KeyScripts        = "scripts"
	KeyCustomBlocks   = "customBlocks"
	KeyTitle          = "title"
)

// EnvProduction switches the isProduction default on when set to "production".
const EnvProduction = "MANUSCRIPT_ENV"

// AssetEntry names a stylesheet or script bundle. Name is the output base
// name without extension; Source is relative to the stylesheets or scripts
// directory.
type AssetEntry struct {
	Name   string `mapstructure:"name"`
	Source string `mapstructure:"source"`
}

// Link is a navigation entry.
type Link struct {
	Title string `mapstructure:"title"`
	Href  string `mapstructure:"href"`
}

// Defaults returns a fresh copy of the default options. Values only use
// types a YAML decoder produces, so defaults survive a write/read cycle
// unchanged.
func Defaults() Options {
	return Options{
		KeyIsProduction:   os.Getenv(EnvProduction) == "production",
		KeySiteTitle:      "My Awesome Website",
		KeyTitleDelimiter: " · ",
		KeyDescription:    "",
		KeyCharset:        "utf-8",
		KeyLang:           "en",
		KeyFavicon:        "/favicon.ico",
		KeyThemeColor:     "#fff",
		KeyCSSURLs:        []any{},
		KeyNavbar:         []any{},
		KeyLogoImage:      "/logo.png",
		KeyLogoTitle:      "My Awesome Website",
		KeyLogoSize:       48,
		KeyStylesheets: []any{
			map[string]any{"name": "index.css"},
		},
		KeyScripts: []any{
			map[string]any{"name": "index.ts"},
		},
		KeyCustomBlocks: []any{},
	}
}

// Merge overlays layers left to right at the top level. Later layers win.
// The result shares no mutable state with its inputs.
func Merge(layers ...Options) Options {
	out := make(Options)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = cloneValue(v)
		}
	}
	return out
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return Merge(o)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Options:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// String returns the string value of key, or "" when absent or not a string.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Bool returns the boolean value of key.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// IsProduction reports whether production output was requested.
func (o Options) IsProduction() bool {
	return o.Bool(KeyIsProduction)
}

// Strings returns a list of strings, skipping non-string elements.
func (o Options) Strings(key string) []string {
	var out []string
	switch t := o[key].(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

var (
	cssExt    = regexp.MustCompile(`(?i)\.css$`)
	scriptExt = regexp.MustCompile(`(?i)\.(ts|js)$`)
)

// Stylesheets returns the normalized stylesheet entries.
func (o Options) Stylesheets() ([]AssetEntry, error) {
	entries, err := decodeEntries(o[KeyStylesheets])
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Name = cssExt.ReplaceAllString(entries[i].Name, "")
		if entries[i].Source == "" {
			entries[i].Source = entries[i].Name + ".css"
		}
	}
	return entries, nil
}

// Scripts returns the normalized script entries.
func (o Options) Scripts() ([]AssetEntry, error) {
	entries, err := decodeEntries(o[KeyScripts])
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Name = scriptExt.ReplaceAllString(entries[i].Name, "")
		if entries[i].Source == "" {
			entries[i].Source = entries[i].Name + ".ts"
		}
	}
	return entries, nil
}

// Navbar returns the navigation links.
func (o Options) Navbar() ([]Link, error) {
	var links []Link
	if err := decode(o[KeyNavbar], &links); err != nil {
		return nil, err
	}
	return links, nil
}

// Normalized returns a copy of o whose stylesheet and script entries are
// expanded into {name, source} maps with extensions stripped from names.
func (o Options) Normalized() (Options, error) {
	out := o.Clone()
	if out == nil {
		out = make(Options)
	}

	stylesheets, err := o.Stylesheets()
	if err != nil {
		return nil, err
	}
	scripts, err := o.Scripts()
	if err != nil {
		return nil, err
	}
	out[KeyStylesheets] = entriesToMaps(stylesheets)
	out[KeyScripts] = entriesToMaps(scripts)
	return out, nil
}

func entriesToMaps(entries []AssetEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{"name": e.Name, "source": e.Source})
	}
	return out
}

func decodeEntries(raw any) ([]AssetEntry, error) {
	var entries []AssetEntry
	if err := decode(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// stringToEntry lets list entries be written as bare names ("index.css")
// instead of {name: index.css}.
func stringToEntry(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to {
	case reflect.TypeOf(AssetEntry{}):
		return map[string]any{"name": data}, nil
	case reflect.TypeOf(Link{}):
		return map[string]any{"title": data, "href": data}, nil
	}
	return data, nil
}

func decode(raw any, out any) error {
	if raw == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToEntry,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
