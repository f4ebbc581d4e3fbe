package templates

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, project map[string]string) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, project)

	bundled := fstest.MapFS{
		"page.tmpl":            {Data: []byte("bundled page")},
		"layout.tmpl":          {Data: []byte("bundled layout")},
		"partials/head.tmpl":   {Data: []byte("bundled head")},
		"partials/footer.tmpl": {Data: []byte("bundled footer")},
	}
	return NewResolver(dir, bundled, ""), dir
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "layout.tmpl", NormalizeRef("layout"))
	assert.Equal(t, "layout.tmpl", NormalizeRef("layout.tmpl"))
	assert.Equal(t, "@partials/head.tmpl", NormalizeRef("@partials/head"))
}

func TestResolveOverridePrefersProject(t *testing.T) {
	r, dir := newTestResolver(t, map[string]string{"layout.tmpl": "project layout"})

	found, ok, err := r.Resolve("@layout", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TreeProject, found.Tree)
	assert.Equal(t, filepath.Join(dir, "layout.tmpl"), found.File)

	src, err := found.ReadSource()
	require.NoError(t, err)
	assert.Equal(t, "project layout", string(src))
}

func TestResolveOverrideFallsBackToBundled(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	found, ok, err := r.Resolve("@partials/head.tmpl", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TreeBundled, found.Tree)
	assert.Equal(t, "partials/head.tmpl", found.Path)
	assert.Empty(t, found.File)
	assert.Equal(t, "bundled:partials/head.tmpl", found.String())
}

func TestResolveMissingIsNotAnError(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	for _, ref := range []string{"@nope", "nope", "partials/nope"} {
		_, ok, err := r.Resolve(ref, nil)
		assert.NoError(t, err, ref)
		assert.False(t, ok, ref)
	}
}

func TestResolveBareRefIsProjectOnly(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	_, ok, err := r.Resolve("layout", nil)
	require.NoError(t, err)
	assert.False(t, ok, "bundled layout must not satisfy a bare reference")
}

func TestResolveRelativeWithinProject(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"pages/about.tmpl":      "about",
		"pages/shared/box.tmpl": "box",
	})

	from, ok, err := r.Resolve("pages/about", nil)
	require.NoError(t, err)
	require.True(t, ok)

	box, ok, err := r.Resolve("shared/box", &from)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TreeProject, box.Tree)
	assert.Equal(t, "pages/shared/box.tmpl", box.Path)

	dotted, ok, err := r.Resolve("./shared/box", &from)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, box.Path, dotted.Path)
}

func TestResolveRelativeFromBundledStaysBundled(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{"partials/footer.tmpl": "project footer"})

	head, ok, err := r.Resolve("@partials/head", nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TreeBundled, head.Tree)

	footer, ok, err := r.Resolve("footer", &head)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TreeBundled, footer.Tree)

	src, err := footer.ReadSource()
	require.NoError(t, err)
	assert.Equal(t, "bundled footer", string(src))
}

func TestResolveRelativeFromProjectDoesNotFallBack(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{"partials/head.tmpl": "project head"})

	head, ok, err := r.Resolve("@partials/head", nil)
	require.NoError(t, err)
	require.Equal(t, TreeProject, head.Tree)
	require.True(t, ok)

	_, ok, err = r.Resolve("footer", &head)
	require.NoError(t, err)
	assert.False(t, ok, "bundled footer must not satisfy a relative project reference")
}

func TestResolveEscapingTreeIsMissing(t *testing.T) {
	outer := t.TempDir()
	testutils.WriteFiles(t, outer, map[string]string{
		"secret.tmpl":          "secret",
		"templates/index.tmpl": "index",
	})
	r := NewResolver(filepath.Join(outer, "templates"), fstest.MapFS{}, "")

	from, ok, err := r.Resolve("index", nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = r.Resolve("../secret", &from)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Resolve("@../secret", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveIgnoresDirectoriesAndFileComponents(t *testing.T) {
	r, _ := newTestResolver(t, map[string]string{
		"dir.tmpl/inner.tmpl": "inner",
		"file.tmpl":           "file",
	})

	_, ok, err := r.Resolve("dir", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Resolve("file.tmpl/x", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveWithoutProjectDir(t *testing.T) {
	r := NewResolver("", fstest.MapFS{"page.tmpl": {Data: []byte("p")}}, "")

	found, ok, err := r.Resolve("@page", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TreeBundled, found.Tree)

	_, ok, err = r.Resolve("page", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetTemplateNotFound(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	_, err := r.GetTemplate("@missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "@missing")

	found, err := r.GetTemplate("@page", nil)
	require.NoError(t, err)
	assert.Equal(t, "page.tmpl", found.Path)
}

func TestUnresolvedTemplateCannotBeRead(t *testing.T) {
	_, err := Template{Tree: TreeProject, Path: "x.tmpl"}.ReadSource()
	assert.Error(t, err)
}
