package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/pages"
	"github.com/conneroisu/manuscript/internal/templates"
	"github.com/conneroisu/manuscript/internal/testutils"
)

type fixture struct {
	store  *options.Store
	server *DevServer
	http   *httptest.Server
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := testutils.CreateTempSite(t, files)

	ctx := context.Background()
	store, err := options.NewStore(options.Config{Root: root, Resources: fstest.MapFS{}})
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))

	pm := pages.NewManager(store)
	require.NoError(t, pm.Init(ctx))
	tm := templates.NewManager(store, pm, nil)
	tm.SetDev(true)

	srv := New(Config{
		Templates: tm,
		Pages:     pm,
		Bus:       store.Bus(),
		StaticDir: store.StaticDir(),
		DistDir:   store.DistDir(),
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &fixture{store: store, server: srv, http: hs}
}

func (f *fixture) do(t *testing.T, method, path string) (int, string, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, nil)
	require.NoError(t, err)
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestServesDevScript(t *testing.T) {
	f := newFixture(t, nil)

	status, body, header := f.do(t, http.MethodGet, DevScriptPath)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, header.Get("Content-Type"), "javascript")
	assert.Contains(t, body, WebSocketPath)
	assert.Contains(t, body, "cssChanged")
}

func TestTemplatePageWinsOverMarkdownPage(t *testing.T) {
	f := newFixture(t, map[string]string{
		"templates/pages/about.tmpl": `<h1>About from template</h1>`,
		"pages/about.md":             "# About from markdown",
	})

	status, body, header := f.do(t, http.MethodGet, "/about")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<h1>About from template</h1>", body)
}

func TestRootServesIndexPage(t *testing.T) {
	f := newFixture(t, map[string]string{
		"pages/index.md": "# Welcome home",
	})

	status, body, _ := f.do(t, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `<meta name="pageId" content="index">`)
	assert.Contains(t, body, "Welcome home")
	assert.Contains(t, body, `src="/__dev__.js"`)
}

func TestNestedMarkdownPage(t *testing.T) {
	f := newFixture(t, map[string]string{
		"pages/docs/index.md": "# Docs",
		"pages/docs/intro.md": "# Intro",
	})

	_, body, _ := f.do(t, http.MethodGet, "/docs/")
	assert.Contains(t, body, `content="docs"`)

	_, body, _ = f.do(t, http.MethodGet, "/docs/intro")
	assert.Contains(t, body, `content="docs/intro"`)
}

func TestStaticFallthrough(t *testing.T) {
	f := newFixture(t, map[string]string{
		"static/robots.txt":  "from static",
		"static/shared.txt":  "static wins",
		"dist/shared.txt":    "dist loses",
		"dist/index.css":     "body{}",
		"dist/nested/app.js": "console.log(1)",
	})

	cases := map[string]string{
		"/robots.txt":    "from static",
		"/shared.txt":    "static wins",
		"/index.css":     "body{}",
		"/nested/app.js": "console.log(1)",
	}
	for path, want := range cases {
		status, body, _ := f.do(t, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, want, body, path)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, nil)

	status, body, _ := f.do(t, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Not found")
	assert.Contains(t, body, "/missing")
}

func TestNonGetSkipsPages(t *testing.T) {
	f := newFixture(t, map[string]string{
		"templates/pages/about.tmpl": `about`,
		"static/form.txt":            "static",
	})

	status, _, _ := f.do(t, http.MethodPost, "/about")
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = f.do(t, http.MethodHead, "/form.txt")
	assert.Equal(t, http.StatusOK, status)
}

func TestMissingIncludeIsNotFound(t *testing.T) {
	f := newFixture(t, map[string]string{
		"templates/pages/broken.tmpl": `{{include "@missing"}}`,
	})

	status, body, _ := f.do(t, http.MethodGet, "/broken")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Not found")
	assert.Contains(t, body, "@missing")
}

func TestRenderErrorIsServerError(t *testing.T) {
	f := newFixture(t, map[string]string{
		"templates/pages/broken.tmpl": `{{set . "odd"}}`,
	})

	status, body, _ := f.do(t, http.MethodGet, "/broken")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "Render error")
	assert.Contains(t, body, "odd number")

	status, _, _ = f.do(t, http.MethodGet, DevScriptPath)
	assert.Equal(t, http.StatusOK, status, "server keeps serving after a render error")
}

func TestWatchEventsReachAllClients(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + WebSocketPath
	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.Dial(ctx, url, nil)
		require.NoError(t, err)
		defer conn.CloseNow()
		conns = append(conns, conn)
	}
	require.Eventually(t, func() bool { return f.server.ConnectedClients() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return f.store.Bus().ListenerCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	f.store.Bus().Emit(events.NewCSSChanged("index.css"))

	for _, conn := range conns {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{"type":"cssChanged","cssFile":"index.css"}`, string(data))
	}
}

func TestServeListenerShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + DevScriptPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
