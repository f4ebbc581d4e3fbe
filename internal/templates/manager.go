package templates

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/pages"
	"github.com/conneroisu/manuscript/internal/watcher"
)

// Well-known references.
const (
	PageTemplate = OverrideMarker + "page"
	// PagesDir holds templates that are rendered as standalone pages.
	PagesDir = "pages"
)

// Manager renders pages through templates and builds template pages.
type Manager struct {
	store    *options.Store
	pages    *pages.Manager
	resolver *Resolver
	renderer *Renderer
	logger   logging.Logger
	dev      atomic.Bool
}

// NewManager creates a templates manager. bundled defaults to the templates
// embedded in manuscript.
func NewManager(store *options.Store, pagesManager *pages.Manager, bundled fs.FS) *Manager {
	if bundled == nil {
		bundled = Bundled()
	}
	resolver := NewResolver(store.TemplatesDir(), bundled, "")
	return &Manager{
		store:    store,
		pages:    pagesManager,
		resolver: resolver,
		renderer: NewRenderer(resolver),
		logger:   store.Logger().WithComponent("templates"),
	}
}

func (m *Manager) Name() string { return "templates" }

func (m *Manager) Init(context.Context) error { return nil }

// SetDev toggles the development flag passed to templates, which adds the
// live reload client to rendered pages.
func (m *Manager) SetDev(dev bool) { m.dev.Store(dev) }

// Resolve maps a reference to a template; see Resolver.Resolve.
func (m *Manager) Resolve(ref string, from *Template) (Template, bool, error) {
	return m.resolver.Resolve(ref, from)
}

// GetTemplate resolves a reference that must exist.
func (m *Manager) GetTemplate(ref string, from *Template) (Template, error) {
	return m.resolver.GetTemplate(ref, from)
}

// Build writes every markdown page and every template page to the dist
// directory.
func (m *Manager) Build(ctx context.Context) error {
	all, err := m.pages.AllPages(ctx)
	if err != nil {
		return err
	}
	templatePages, err := m.templatePages()
	if err != nil {
		return err
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for _, page := range all {
		page := page
		p.Go(func(ctx context.Context) error {
			html, err := m.renderPage(ctx, page, all)
			if err != nil {
				return err
			}
			if err := writeFile(page.TargetFile, html); err != nil {
				return err
			}
			m.logger.Info(ctx, "Built page", "page", page.ID)
			return nil
		})
	}
	for _, t := range templatePages {
		t := t
		p.Go(func(ctx context.Context) error {
			html, err := m.renderFile(ctx, t, nil, all)
			if err != nil {
				return err
			}
			rel := strings.TrimSuffix(strings.TrimPrefix(t.Path, PagesDir+"/"), Ext) + ".html"
			target := filepath.Join(m.store.DistDir(), filepath.FromSlash(rel))
			if err := writeFile(target, html); err != nil {
				return err
			}
			m.logger.Info(ctx, "Built template page", "template", rel)
			return nil
		})
	}
	return p.Wait()
}

// Watch reports template edits as templateChanged events.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := watcher.NewFileWatcher(m.store.Debounce(), m.logger)
	if err != nil {
		return err
	}
	if err := w.AddRecursive(m.store.TemplatesDir()); err != nil {
		_ = w.Stop()
		return err
	}
	w.AddFilter(watcher.NoGitFilter)
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddFilter(watcher.ExtensionFilter(Ext))
	w.AddHandler(func(changes []watcher.ChangeEvent) error {
		for _, change := range changes {
			file := change.Path
			if rel, err := filepath.Rel(m.store.TemplatesDir(), file); err == nil {
				file = filepath.ToSlash(rel)
			}
			m.logger.Info(ctx, "watch", "template", file)
			m.store.Bus().Emit(events.NewTemplateChanged(file))
		}
		return nil
	})
	return w.Start(ctx)
}

// RenderFile renders t with data. Keys in data["opts"] overlay the
// workspace options; every other key is passed through.
func (m *Manager) RenderFile(ctx context.Context, t Template, data Data) (string, error) {
	all, err := m.pages.AllPages(ctx)
	if err != nil {
		return "", err
	}
	return m.renderFile(ctx, t, data, all)
}

// RenderPage renders a markdown page through the @page template.
func (m *Manager) RenderPage(ctx context.Context, page *pages.Page) (string, error) {
	all, err := m.pages.AllPages(ctx)
	if err != nil {
		return "", err
	}
	return m.renderPage(ctx, page, all)
}

func (m *Manager) renderPage(ctx context.Context, page *pages.Page, all []*pages.Page) (string, error) {
	t, err := m.resolver.GetTemplate(PageTemplate, nil)
	if err != nil {
		return "", err
	}
	pageOpts := options.Merge(page.Opts, options.Options{options.KeyTitle: page.Title})
	html, err := m.renderFile(ctx, t, Data{"opts": pageOpts, "page": page}, all)
	if err != nil {
		return "", errors.NewRenderError("rendering page "+page.ID, err).WithFile(page.SourceFile)
	}
	return html, nil
}

func (m *Manager) renderFile(ctx context.Context, t Template, data Data, all []*pages.Page) (string, error) {
	var overrides options.Options
	if raw, ok := data["opts"]; ok {
		d, err := toData(raw)
		if err != nil {
			return "", errors.NewRenderError("invalid opts", err).WithFile(t.String())
		}
		overrides = options.Options(d)
	}

	full := make(Data, len(data)+3)
	for k, v := range data {
		full[k] = v
	}
	full["opts"] = templateOptions(ctx, m.logger, options.Merge(m.store.Options(), overrides))
	full["pages"] = all
	full["dev"] = m.dev.Load()

	return m.renderer.Render(t, full)
}

// templateOptions normalizes list options so templates can rely on their
// shape: asset entries become {name, source} and navbar links {title, href}.
func templateOptions(ctx context.Context, logger logging.Logger, opts options.Options) options.Options {
	out, err := opts.Normalized()
	if err != nil {
		logger.Warn(ctx, err, "Invalid stylesheet or script entries")
		out = opts
	}
	links, err := opts.Navbar()
	if err != nil {
		logger.Warn(ctx, err, "Invalid navbar entries")
		return out
	}
	nav := make([]any, 0, len(links))
	for _, l := range links {
		nav = append(nav, map[string]any{"title": l.Title, "href": l.Href})
	}
	out[options.KeyNavbar] = nav
	return out
}

// templatePages lists the project's templates/pages/**/*.tmpl files.
func (m *Manager) templatePages() ([]Template, error) {
	root := filepath.Join(m.store.TemplatesDir(), PagesDir)
	var found []Template

	err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			if file == root && errors.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(file) != Ext {
			return nil
		}
		rel, err := filepath.Rel(m.store.TemplatesDir(), file)
		if err != nil {
			return err
		}
		t, ok, err := m.resolver.Resolve(filepath.ToSlash(rel), nil)
		if err != nil {
			return err
		}
		if ok {
			found = append(found, t)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileOperation, "listing template pages")
	}
	return found, nil
}

// PageRef is the reference of the template page serving an URL path.
func PageRef(urlPath string) string {
	return OverrideMarker + path.Join(PagesDir, path.Clean("/"+urlPath))
}

func writeFile(target, content string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.FileOperationError("mkdir", filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return errors.FileOperationError("write", target, err)
	}
	return nil
}
