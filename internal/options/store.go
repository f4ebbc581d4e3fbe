package options

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/watcher"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the options file at the workspace root.
const FileName = "manuscript.yaml"

// Config configures a Store.
type Config struct {
	Root      string
	Overrides Options
	Bus       *events.Bus
	Logger    logging.Logger
	// Debounce is shared with every watcher in the workspace.
	Debounce time.Duration
	// Resources are starter files copied into a fresh workspace. Defaults to
	// the bundled set.
	Resources fs.FS
}

// Store loads workspace options and exposes the directory layout. It is the
// first manager in every workspace.
type Store struct {
	root      string
	overrides Options
	bus       *events.Bus
	base      logging.Logger
	logger    logging.Logger
	debounce  time.Duration
	resources fs.FS

	mu      sync.RWMutex
	options Options
}

// NewStore creates a store rooted at cfg.Root.
func NewStore(cfg Config) (*Store, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.FileOperationError("resolve root", cfg.Root, err)
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = watcher.DefaultDebounce
	}
	if cfg.Resources == nil {
		cfg.Resources = Resources()
	}
	return &Store{
		root:      root,
		overrides: cfg.Overrides.Clone(),
		bus:       cfg.Bus,
		base:      cfg.Logger,
		logger:    cfg.Logger.WithComponent("config"),
		debounce:  cfg.Debounce,
		resources: cfg.Resources,
		options:   Merge(Defaults(), cfg.Overrides),
	}, nil
}

func (s *Store) Name() string { return "config" }

func (s *Store) RootDir() string        { return s.root }
func (s *Store) StaticDir() string      { return filepath.Join(s.root, "static") }
func (s *Store) DistDir() string        { return filepath.Join(s.root, "dist") }
func (s *Store) TemplatesDir() string   { return filepath.Join(s.root, "templates") }
func (s *Store) PagesDir() string       { return filepath.Join(s.root, "pages") }
func (s *Store) StylesheetsDir() string { return filepath.Join(s.root, "stylesheets") }
func (s *Store) ScriptsDir() string     { return filepath.Join(s.root, "scripts") }
func (s *Store) OptionsFile() string    { return filepath.Join(s.root, FileName) }

// Bus returns the workspace event bus.
func (s *Store) Bus() *events.Bus { return s.bus }

// Debounce returns the quiet period for file watchers.
func (s *Store) Debounce() time.Duration { return s.debounce }

// Logger returns the workspace logger so other managers can scope it.
func (s *Store) Logger() logging.Logger { return s.base }

// Options returns a normalized copy of the current options. If the entries
// cannot be normalized the raw copy is returned.
func (s *Store) Options() Options {
	s.mu.RLock()
	current := s.options
	s.mu.RUnlock()

	normalized, err := current.Normalized()
	if err != nil {
		s.logger.Warn(context.Background(), err, "Invalid stylesheet or script entries")
		return current.Clone()
	}
	return normalized
}

// Init creates the directory layout, copies starter resources and loads
// the options file.
func (s *Store) Init(ctx context.Context) error {
	if err := s.createDirs(); err != nil {
		return err
	}
	if err := s.copyResources(ctx); err != nil {
		return err
	}
	return s.Load(ctx)
}

func (s *Store) Build(context.Context) error { return nil }

// Watch reloads options whenever the options file changes and asks clients
// to reload.
func (s *Store) Watch(ctx context.Context) error {
	w, err := watcher.NewFileWatcher(s.debounce, s.logger)
	if err != nil {
		return err
	}
	// the directory is watched so editors that replace the file are handled
	if err := w.AddPath(s.root); err != nil {
		_ = w.Stop()
		return err
	}
	w.AddFilter(watcher.BaseNameFilter(FileName))
	w.AddHandler(func([]watcher.ChangeEvent) error {
		s.logger.Info(ctx, "watch", "file", FileName)
		if err := s.Load(ctx); err != nil {
			s.logger.Error(ctx, err, "Failed to reload options")
		}
		s.bus.Emit(events.NewReloadNeeded())
		return nil
	})
	return w.Start(ctx)
}

// Load reads the options file, creating it from defaults when missing.
// A file that does not parse leaves the current options untouched.
func (s *Store) Load(ctx context.Context) error {
	file := s.OptionsFile()

	data, err := os.ReadFile(file)
	if errors.IsNotExist(err) {
		data, err = yaml.Marshal(map[string]any(Defaults()))
		if err != nil {
			return errors.WrapConfig(err, errors.ErrCodeInvalidOptions, "serializing default options")
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return errors.FileOperationError("write", file, err)
		}
		s.logger.Info(ctx, "Created", "file", FileName)
	} else if err != nil {
		return errors.FileOperationError("read", file, err)
	}

	var fromFile map[string]any
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		s.logger.Warn(ctx, err, "Ignoring malformed options file", "file", file)
		return nil
	}

	merged := Merge(Defaults(), fromFile, s.overrides)

	s.mu.Lock()
	s.options = merged
	s.mu.Unlock()
	return nil
}

func (s *Store) createDirs() error {
	dirs := []string{
		s.DistDir(),
		s.StaticDir(),
		s.TemplatesDir(),
		s.PagesDir(),
		s.StylesheetsDir(),
		s.ScriptsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.FileOperationError("mkdir", dir, err)
		}
	}
	return nil
}
