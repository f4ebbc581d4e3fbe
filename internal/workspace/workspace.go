// Package workspace is the composition root: it wires the managers of one
// site directory together and drives their lifecycle for a production
// build or a dev server session.
package workspace

import (
	"context"
	"io/fs"
	"net"
	"time"

	"github.com/conneroisu/manuscript/internal/assets"
	"github.com/conneroisu/manuscript/internal/bundler"
	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/manager"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/pages"
	"github.com/conneroisu/manuscript/internal/server"
	"github.com/conneroisu/manuscript/internal/templates"
)

// Config configures a Workspace. Only Root is required.
type Config struct {
	Root      string
	Overrides options.Options
	Logger    logging.Logger
	Debounce  time.Duration
	// Bundler defaults to esbuild.
	Bundler bundler.Bundler
	// Resources are starter files for a fresh workspace.
	Resources fs.FS
	// Templates are the bundled default templates.
	Templates fs.FS
}

// Workspace owns the managers of one site.
type Workspace struct {
	bus         *events.Bus
	logger      logging.Logger
	store       *options.Store
	pages       *pages.Manager
	templates   *templates.Manager
	stylesheets *assets.Stylesheets
	scripts     *assets.Scripts
	static      *assets.Static
	registry    *manager.Registry
}

// New wires a workspace rooted at cfg.Root. Managers are initialized in
// the order config, pages, stylesheets, scripts, static, templates.
func New(cfg Config) (*Workspace, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Bundler == nil {
		cfg.Bundler = bundler.New(cfg.Logger)
	}
	bus := events.NewBus()

	store, err := options.NewStore(options.Config{
		Root:      cfg.Root,
		Overrides: cfg.Overrides,
		Bus:       bus,
		Logger:    cfg.Logger,
		Debounce:  cfg.Debounce,
		Resources: cfg.Resources,
	})
	if err != nil {
		return nil, err
	}

	w := &Workspace{
		bus:         bus,
		logger:      cfg.Logger.WithComponent("workspace"),
		store:       store,
		pages:       pages.NewManager(store),
		stylesheets: assets.NewStylesheets(store, cfg.Bundler),
		scripts:     assets.NewScripts(store, cfg.Bundler),
		static:      assets.NewStatic(store),
	}
	w.templates = templates.NewManager(store, w.pages, cfg.Templates)

	w.registry, err = manager.NewRegistry(cfg.Logger,
		w.store,
		w.pages,
		w.stylesheets,
		w.scripts,
		w.static,
		w.templates,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Managers returns the managers in initialization order.
func (w *Workspace) Managers() []manager.Manager { return w.registry.Managers() }

func (w *Workspace) Bus() *events.Bus              { return w.bus }
func (w *Workspace) Store() *options.Store         { return w.store }
func (w *Workspace) Pages() *pages.Manager         { return w.pages }
func (w *Workspace) Templates() *templates.Manager { return w.templates }

// Init runs every manager's Init in order.
func (w *Workspace) Init(ctx context.Context) error {
	return w.registry.RunInit(ctx)
}

// Build initializes the workspace and writes the complete site to dist/.
func (w *Workspace) Build(ctx context.Context) error {
	op := logging.StartOperation(w.logger, "build")
	if err := w.registry.RunInit(ctx); err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	if err := w.registry.RunBuild(ctx); err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx)
	return nil
}

// Serve initializes the workspace, starts every watcher and runs the dev
// server on addr until ctx is done.
func (w *Workspace) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, errors.ErrCodeInternalError, "listening on "+addr)
	}
	return w.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener. The listener is closed
// when Serve returns.
func (w *Workspace) ServeListener(ctx context.Context, ln net.Listener) error {
	if err := w.registry.RunInit(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	if err := w.registry.RunWatch(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	w.templates.SetDev(true)

	return w.DevServer().ServeListener(ctx, ln)
}

// DevServer creates a dev server over the workspace.
func (w *Workspace) DevServer() *server.DevServer {
	return server.New(server.Config{
		Templates: w.templates,
		Pages:     w.pages,
		Bus:       w.bus,
		StaticDir: w.store.StaticDir(),
		DistDir:   w.store.DistDir(),
		Logger:    w.store.Logger(),
	})
}
