// Package pages loads markdown pages from a workspace's pages directory.
//
// A page is addressed by its id, the path below pages/ without extension
// and without a trailing index segment. Pages are parsed on demand and
// cached until their source file changes.
package pages

import (
	"context"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/watcher"
)

// DirOptionsFile holds options shared by every page in a directory.
const DirOptionsFile = "index.yaml"

// Page is a parsed markdown page.
type Page struct {
	ID         string
	Title      string
	SourceFile string
	TargetFile string
	// Text is the markdown source without front matter.
	Text     string
	HTML     template.HTML
	Headings []Heading
	// Opts are the directory options overlaid with front matter. They are
	// overlaid on the workspace options at render time.
	Opts options.Options
}

// Manager loads and caches pages.
type Manager struct {
	store  *options.Store
	bus    *events.Bus
	logger logging.Logger

	mu       sync.RWMutex
	markdown *Markdown
	cache    map[string]*Page
	dirOpts  map[string]options.Options

	// generation counts invalidations; a load started under an older
	// generation is returned but not cached.
	generation uint64

	// loaded runs between loading a page and caching it.
	loaded func(id string)
}

// NewManager creates a pages manager.
func NewManager(store *options.Store) *Manager {
	return &Manager{
		store:    store,
		bus:      store.Bus(),
		logger:   store.Logger().WithComponent("pages"),
		markdown: NewMarkdown(nil),
		cache:    make(map[string]*Page),
		dirOpts:  make(map[string]options.Options),
	}
}

func (m *Manager) Name() string { return "pages" }

// Init configures the markdown renderer from the loaded options.
func (m *Manager) Init(context.Context) error {
	md := NewMarkdown(m.store.Options().Strings(options.KeyCustomBlocks))

	m.mu.Lock()
	m.markdown = md
	m.cache = make(map[string]*Page)
	m.generation++
	m.mu.Unlock()
	return nil
}

// Build does nothing; pages are written by the templates manager.
func (m *Manager) Build(context.Context) error { return nil }

// Watch invalidates cached pages and directory options as their files change.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := watcher.NewFileWatcher(m.store.Debounce(), m.logger)
	if err != nil {
		return err
	}
	if err := w.AddRecursive(m.store.PagesDir()); err != nil {
		_ = w.Stop()
		return err
	}
	w.AddFilter(watcher.NoGitFilter)
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddFilter(watcher.ExtensionFilter(".md", ".yaml"))
	w.AddHandler(func(changes []watcher.ChangeEvent) error {
		for _, change := range changes {
			m.handleChange(ctx, change.Path)
		}
		return nil
	})
	return w.Start(ctx)
}

func (m *Manager) handleChange(ctx context.Context, file string) {
	if filepath.Base(file) == DirOptionsFile {
		m.mu.Lock()
		delete(m.dirOpts, file)
		// every cached page may carry the stale directory options
		m.cache = make(map[string]*Page)
		m.generation++
		m.mu.Unlock()

		m.logger.Info(ctx, "watch", "options", file)
		m.bus.Emit(events.NewReloadNeeded())
		return
	}
	if filepath.Ext(file) != ".md" {
		return
	}

	rel, err := filepath.Rel(m.store.PagesDir(), file)
	if err != nil {
		m.logger.Warn(ctx, err, "Ignoring change outside pages directory", "file", file)
		return
	}
	id := NormalizeID(rel)
	m.Invalidate(id)

	m.logger.Info(ctx, "watch", "page", id)
	m.bus.Emit(events.NewPageChanged(id))
}

// Invalidate drops the cached page with the given id.
func (m *Manager) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, NormalizeID(id))
	m.generation++
}

// GetPage returns the page for id, or nil when no source file exists.
func (m *Manager) GetPage(ctx context.Context, id string) (*Page, error) {
	id = NormalizeID(id)

	m.mu.RLock()
	cached, ok := m.cache[id]
	md := m.markdown
	gen := m.generation
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	source, err := m.sourceFile(id)
	if err != nil || source == "" {
		return nil, err
	}

	page, err := m.loadPage(ctx, md, id, source)
	if err != nil {
		return nil, err
	}
	if m.loaded != nil {
		m.loaded(id)
	}

	m.mu.Lock()
	if m.generation == gen {
		m.cache[id] = page
	}
	m.mu.Unlock()
	return page, nil
}

// AllPages returns every page under the pages directory, sorted by id.
func (m *Manager) AllPages(ctx context.Context) ([]*Page, error) {
	root := m.store.PagesDir()
	seen := make(map[string]struct{})
	var pages []*Page

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		id := NormalizeID(rel)
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}

		page, err := m.GetPage(ctx, id)
		if err != nil {
			return err
		}
		if page != nil {
			pages = append(pages, page)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileOperation, "listing pages")
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return pages, nil
}

// sourceFile tries <id>.md then <id>/index.md.
func (m *Manager) sourceFile(id string) (string, error) {
	base := filepath.Join(m.store.PagesDir(), filepath.FromSlash(id))
	for _, candidate := range []string{base + ".md", filepath.Join(base, "index.md")} {
		info, err := os.Stat(candidate)
		if errors.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", errors.FileOperationError("stat", candidate, err)
		}
		if info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", nil
}

func (m *Manager) loadPage(ctx context.Context, md *Markdown, id, source string) (*Page, error) {
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.FileOperationError("read", source, err)
	}

	dirOpts, err := m.readDirOptions(ctx, filepath.Dir(source))
	if err != nil {
		return nil, err
	}
	text, frontMatter := ReadFrontMatter(string(raw))

	rendered, err := md.Render(text)
	if err != nil {
		return nil, errors.NewRenderError("rendering markdown", err).WithFile(source)
	}
	headings, err := ExtractHeadings(rendered)
	if err != nil {
		return nil, errors.NewRenderError("extracting headings", err).WithFile(source)
	}

	title := ""
	if len(headings) > 0 {
		title = headings[0].Text
	}
	if title == "" {
		title = FallbackTitle(id)
	}

	return &Page{
		ID:         id,
		Title:      title,
		SourceFile: source,
		TargetFile: filepath.Join(m.store.DistDir(), filepath.FromSlash(id)+".html"),
		Text:       text,
		HTML:       template.HTML(rendered),
		Headings:   headings,
		Opts:       options.Merge(dirOpts, frontMatter),
	}, nil
}

// readDirOptions returns the cached index.yaml of dir. A missing file is
// empty options; a file that does not parse is logged and ignored.
func (m *Manager) readDirOptions(ctx context.Context, dir string) (options.Options, error) {
	file := filepath.Join(dir, DirOptionsFile)

	m.mu.RLock()
	cached, ok := m.dirOpts[file]
	gen := m.generation
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := os.ReadFile(file)
	var opts options.Options
	switch {
	case errors.IsNotExist(err):
		opts = options.Options{}
	case err != nil:
		return nil, errors.FileOperationError("read", file, err)
	default:
		opts, err = parseDirOptions(data)
		if err != nil {
			m.logger.Warn(ctx, err, "Could not parse directory options", "file", file)
		}
	}

	m.mu.Lock()
	if m.generation == gen {
		m.dirOpts[file] = opts
	}
	m.mu.Unlock()
	return opts, nil
}
