package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/conneroisu/manuscript/internal/bundler"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, files map[string]string, overrides options.Options) *options.Store {
	t.Helper()
	root := testutils.CreateTempSite(t, files)

	store, err := options.NewStore(options.Config{
		Root:      root,
		Overrides: overrides,
		Debounce:  20 * time.Millisecond,
		Resources: fstest.MapFS{},
	})
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	return store
}

// recordingBundler records every Options it is given.
type recordingBundler struct {
	calls     []bundler.Options
	onRebuild func(bundler.Result)
	result    bundler.Result
	err       error
}

func (b *recordingBundler) Bundle(_ context.Context, opts bundler.Options) (bundler.Result, error) {
	b.calls = append(b.calls, opts)
	return b.result, b.err
}

func (b *recordingBundler) Watch(_ context.Context, opts bundler.Options, onRebuild func(bundler.Result)) error {
	b.calls = append(b.calls, opts)
	b.onRebuild = onRebuild
	return b.err
}

func TestStylesheetsInitBuildsOutputs(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"stylesheets/index.css": "body { color: red; }\n",
		"stylesheets/print.css": "@media print { body { color: black; } }\n",
		"manuscript.yaml":       "stylesheets:\n  - index.css\n  - name: print\n",
	}, nil)

	s := NewStylesheets(store, bundler.New(nil))
	require.NoError(t, s.Init(context.Background()))

	assert.FileExists(t, filepath.Join(store.DistDir(), "index.css"))
	assert.FileExists(t, filepath.Join(store.DistDir(), "print.css"))
}

func TestStylesheetsMissingSourceFailsInit(t *testing.T) {
	store := newTestStore(t, nil, nil)

	err := NewStylesheets(store, bundler.New(nil)).Init(context.Background())
	assert.Error(t, err)
}

func TestStylesheetsWatchEmitsCSSChanged(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"stylesheets/index.css": "body { color: red; }\n",
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.WatchEvent, 8)
	defer store.Bus().Subscribe(func(e events.WatchEvent) { got <- e })()

	s := NewStylesheets(store, bundler.New(nil))
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(store.StylesheetsDir(), "index.css"), []byte("body { color: blue; }\n"), 0o644))

	select {
	case e := <-got:
		assert.Equal(t, events.NewCSSChanged("index.css"), e)
	case <-time.After(5 * time.Second):
		t.Fatal("no cssChanged event")
	}

	css, err := os.ReadFile(filepath.Join(store.DistDir(), "index.css"))
	require.NoError(t, err)
	assert.Contains(t, string(css), "blue")
}

func TestScriptsBuildUsesProductionFlag(t *testing.T) {
	store := newTestStore(t, nil, options.Options{
		options.KeyIsProduction: true,
		options.KeyScripts:      []any{"app.ts", map[string]any{"name": "admin.js", "source": "admin/main.ts"}},
	})
	b := &recordingBundler{result: bundler.Result{Outputs: []string{"admin.js", "app.js"}}}

	require.NoError(t, NewScripts(store, b).Build(context.Background()))
	require.Len(t, b.calls, 1)

	call := b.calls[0]
	assert.Equal(t, bundler.KindScript, call.Kind)
	assert.True(t, call.Production)
	assert.Equal(t, store.ScriptsDir(), call.SourceDir)
	assert.Equal(t, store.DistDir(), call.OutDir)
	assert.Equal(t, []bundler.Entry{
		{Name: "app", Source: "app.ts"},
		{Name: "admin", Source: "admin/main.ts"},
	}, call.Entries)
}

func TestScriptsWatchEmitsScriptChanged(t *testing.T) {
	store := newTestStore(t, nil, nil)
	b := &recordingBundler{}

	var got []events.WatchEvent
	defer store.Bus().Subscribe(func(e events.WatchEvent) { got = append(got, e) })()

	require.NoError(t, NewScripts(store, b).Watch(context.Background()))
	require.NotNil(t, b.onRebuild)

	b.onRebuild(bundler.Result{Errors: []string{"boom"}})
	assert.Empty(t, got, "failed rebuilds emit nothing")

	b.onRebuild(bundler.Result{Outputs: []string{"index.js"}})
	assert.Equal(t, []events.WatchEvent{events.NewScriptChanged("index.js")}, got)
}

func TestScriptsBundleEndToEnd(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"scripts/index.ts": "export const answer: number = 42;\nconsole.log(answer);\n",
	}, nil)

	require.NoError(t, NewScripts(store, bundler.New(nil)).Build(context.Background()))
	assert.FileExists(t, filepath.Join(store.DistDir(), "index.js"))
}

func TestStaticBuildCopiesTree(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"static/favicon.ico":     "icon",
		"static/img/logo.svg":    "<svg/>",
		"static/fonts/a/b.woff2": "font",
	}, nil)

	require.NoError(t, NewStatic(store).Build(context.Background()))

	for rel, want := range map[string]string{
		"favicon.ico":     "icon",
		"img/logo.svg":    "<svg/>",
		"fonts/a/b.woff2": "font",
	} {
		data, err := os.ReadFile(filepath.Join(store.DistDir(), filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, string(data))
	}
}

func TestStaticBuildWithoutStaticDir(t *testing.T) {
	store := newTestStore(t, nil, nil)
	require.NoError(t, os.RemoveAll(store.StaticDir()))

	assert.NoError(t, NewStatic(store).Build(context.Background()))
}
