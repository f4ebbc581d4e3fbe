// Package server implements the development server.
//
// Requests are answered on demand instead of from a full build. A GET
// request is tried against, in order:
//
//  1. the live reload client at /__dev__.js
//  2. a template page, templates/pages/<path>.tmpl
//  3. a markdown page, pages/<path>.md or pages/<path>/index.md
//  4. a file in static/, then a file in dist/
//
// "/" is treated as "/index". Other methods go straight to the static
// lookup. Change events reach browsers over the websocket at /__dev__/ws.
package server

import (
	"context"
	_ "embed"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/multierr"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/middleware"
	"github.com/conneroisu/manuscript/internal/pages"
	"github.com/conneroisu/manuscript/internal/templates"
	"github.com/conneroisu/manuscript/internal/websocket"
)

// Well-known paths.
const (
	DevScriptPath = "/__dev__.js"
	WebSocketPath = "/__dev__/ws"
)

const shutdownTimeout = 5 * time.Second

//go:embed client.js
var devClientScript []byte

// Templates renders template pages and markdown pages.
type Templates interface {
	Resolve(ref string, from *templates.Template) (templates.Template, bool, error)
	RenderFile(ctx context.Context, t templates.Template, data templates.Data) (string, error)
	RenderPage(ctx context.Context, page *pages.Page) (string, error)
}

// Pages looks up markdown pages. A missing page is nil with a nil error.
type Pages interface {
	GetPage(ctx context.Context, id string) (*pages.Page, error)
}

// Config wires a DevServer.
type Config struct {
	Templates Templates
	Pages     Pages
	Bus       *events.Bus
	StaticDir string
	DistDir   string
	Logger    logging.Logger
}

// DevServer serves a workspace with live reload.
type DevServer struct {
	templates Templates
	pages     Pages
	staticDir string
	distDir   string
	logger    logging.Logger
	ws        *websocket.Manager
	handler   http.Handler
}

// New creates a dev server.
func New(cfg Config) *DevServer {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	s := &DevServer{
		templates: cfg.Templates,
		pages:     cfg.Pages,
		staticDir: cfg.StaticDir,
		distDir:   cfg.DistDir,
		logger:    cfg.Logger.WithComponent("server"),
		ws:        websocket.NewManager(cfg.Bus, cfg.Logger),
	}

	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, s.ws)
	mux.HandleFunc("/", s.serveRequest)

	chain := middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
	)
	s.handler = chain.Apply(mux)
	return s
}

// Handler returns the server's HTTP handler.
func (s *DevServer) Handler() http.Handler { return s.handler }

// ConnectedClients returns the number of live reload connections.
func (s *DevServer) ConnectedClients() int { return s.ws.ConnectedClients() }

// Serve listens on addr until ctx is done.
func (s *DevServer) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, errors.ErrCodeInternalError, "listening on "+addr)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down gracefully.
func (s *DevServer) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	s.logger.Info(ctx, "Dev server listening", "url", "http://"+ln.Addr().String())

	select {
	case err := <-serveErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.ws.Shutdown()
	err := srv.Shutdown(shutdownCtx)
	if serr := <-serveErr; !stderrors.Is(serr, http.ErrServerClosed) {
		err = multierr.Append(err, serr)
	}
	s.logger.Info(ctx, "Dev server stopped")
	return err
}

func (s *DevServer) serveRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.serveStatic(w, r, r.URL.Path)
		return
	}

	urlPath := r.URL.Path
	if urlPath == "/" {
		urlPath = "/index"
	}

	if urlPath == DevScriptPath {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(devClientScript)
		return
	}

	ctx := r.Context()

	tmpl, ok, err := s.templates.Resolve(templates.PageRef(urlPath), nil)
	if err != nil {
		s.serveError(w, r, err)
		return
	}
	if ok {
		html, err := s.templates.RenderFile(ctx, tmpl, nil)
		if err != nil {
			s.serveError(w, r, err)
			return
		}
		writeHTML(w, html)
		return
	}

	page, err := s.pages.GetPage(ctx, urlPath)
	if err != nil {
		s.serveError(w, r, err)
		return
	}
	if page != nil {
		html, err := s.templates.RenderPage(ctx, page)
		if err != nil {
			s.serveError(w, r, err)
			return
		}
		writeHTML(w, html)
		return
	}

	s.serveStatic(w, r, urlPath)
}

// serveStatic serves the first regular file found for urlPath in the static
// directory, then the dist directory.
func (s *DevServer) serveStatic(w http.ResponseWriter, r *http.Request, urlPath string) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		clean := filepath.FromSlash(path.Clean("/" + urlPath))
		for _, dir := range []string{s.staticDir, s.distDir} {
			if dir == "" {
				continue
			}
			if s.serveFile(w, r, filepath.Join(dir, clean)) {
				return
			}
		}
	}
	templ.Handler(notFoundPage(urlPath), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
}

func (s *DevServer) serveFile(w http.ResponseWriter, r *http.Request, file string) bool {
	f, err := os.Open(file)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// serveError answers 404 when rendering stopped on a missing template
// reference and 500 for anything else.
func (s *DevServer) serveError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.IsNotFound(err) {
		s.logger.Warn(r.Context(), err, "Missing template", "path", r.URL.Path)
		templ.Handler(missingTemplatePage(err), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
		return
	}
	s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	templ.Handler(errorPage(err), templ.WithStatus(http.StatusInternalServerError)).ServeHTTP(w, r)
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}
