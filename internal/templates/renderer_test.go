package templates

import (
	"testing"
	"testing/fstest"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, project map[string]string, bundled fstest.MapFS) *Renderer {
	t.Helper()
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, project)
	return NewRenderer(NewResolver(dir, bundled, ""))
}

func render(t *testing.T, r *Renderer, ref string, data Data) (string, error) {
	t.Helper()
	tmpl, err := r.resolver.GetTemplate(ref, nil)
	require.NoError(t, err)
	return r.Render(tmpl, data)
}

func TestRenderInclude(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"pages/home.tmpl":        `{{include "@layout" (set . "content" (include "parts/body"))}}`,
		"pages/parts/body.tmpl":  `<p>{{.name}}</p>`,
		"partials/greeting.tmpl": `Hi {{.name}}`,
	}, fstest.MapFS{
		"layout.tmpl":            {Data: []byte(`<main>{{.content}}</main>{{include "partials/greeting"}}`)},
		"partials/greeting.tmpl": {Data: []byte(`Hello {{.name}}`)},
	})

	out, err := render(t, r, "pages/home", Data{"name": "<Ann>"})
	require.NoError(t, err)
	assert.Equal(t, "<main><p>&lt;Ann&gt;</p></main>Hello &lt;Ann&gt;", out)
}

func TestRenderIncludeWithData(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"list.tmpl": `{{range .items}}{{include "item" (set $ "item" .)}}{{end}}`,
		"item.tmpl": `[{{.prefix}}{{.item}}]`,
	}, fstest.MapFS{})

	out, err := render(t, r, "list", Data{"prefix": "#", "items": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "[#a][#b]", out)
}

func TestRenderSetDoesNotMutate(t *testing.T) {
	data := Data{"a": 1}
	out, err := set(data, "b", 2)
	require.NoError(t, err)
	assert.Equal(t, Data{"a": 1, "b": 2}, out)
	assert.Equal(t, Data{"a": 1}, data)

	fromOptions, err := set(options.Options{"x": "y"}, "z", true)
	require.NoError(t, err)
	assert.Equal(t, Data{"x": "y", "z": true}, fromOptions)

	_, err = set(data, "odd")
	assert.Error(t, err)
	_, err = set(data, 1, 2)
	assert.Error(t, err)
	_, err = set("not a map", "k", "v")
	assert.Error(t, err)
}

func TestRenderHelpers(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"helpers.tmpl": `{{default "en" .lang}}|{{default "en" .missing}}|{{raw .html}}|{{json .list}}|{{join .list ","}}`,
	}, fstest.MapFS{})

	out, err := render(t, r, "helpers", Data{"lang": "de", "html": "<b>x</b>", "list": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, `de|en|<b>x</b>|[&#34;a&#34;,&#34;b&#34;]|a,b`, out)
}

func TestRenderMissingInclude(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"broken.tmpl": `{{include "@nowhere"}}`,
	}, fstest.MapFS{})

	_, err := render(t, r, "broken", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)
}

func TestRenderIncludeCycle(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"loop.tmpl": `{{include "loop"}}`,
	}, fstest.MapFS{})

	_, err := render(t, r, "loop", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested deeper")
}

func TestRenderParseError(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"bad.tmpl": `{{if}}`,
	}, fstest.MapFS{})

	_, err := render(t, r, "bad", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.tmpl")
}
