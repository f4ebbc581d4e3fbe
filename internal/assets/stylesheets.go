// Package assets builds the non-page outputs of a workspace: stylesheets,
// script bundles and static files.
package assets

import (
	"context"
	"sync"

	"github.com/conneroisu/manuscript/internal/bundler"
	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/watcher"
)

// Stylesheets compiles the configured stylesheets into the dist directory.
type Stylesheets struct {
	store   *options.Store
	bundler bundler.Bundler
	logger  logging.Logger

	// serializes rebuilds
	mu sync.Mutex
}

// NewStylesheets creates the stylesheets manager.
func NewStylesheets(store *options.Store, b bundler.Bundler) *Stylesheets {
	return &Stylesheets{
		store:   store,
		bundler: b,
		logger:  store.Logger().WithComponent("stylesheets"),
	}
}

func (s *Stylesheets) Name() string { return "stylesheets" }

// Init builds the stylesheets so they can be served before any build.
func (s *Stylesheets) Init(ctx context.Context) error {
	_, err := s.BuildAll(ctx)
	return err
}

// Build does nothing; stylesheets are already built during init.
func (s *Stylesheets) Build(context.Context) error { return nil }

// Watch rebuilds every stylesheet when anything in the stylesheets
// directory changes and emits cssChanged for each output.
func (s *Stylesheets) Watch(ctx context.Context) error {
	w, err := watcher.NewFileWatcher(s.store.Debounce(), s.logger)
	if err != nil {
		return err
	}
	if err := w.AddRecursive(s.store.StylesheetsDir()); err != nil {
		_ = w.Stop()
		return err
	}
	w.AddFilter(watcher.NoGitFilter)
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddHandler(func(changes []watcher.ChangeEvent) error {
		s.logger.Info(ctx, "watch", "changed", len(changes))
		outputs, err := s.BuildAll(ctx)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to rebuild stylesheets")
			return nil
		}
		for _, cssFile := range outputs {
			s.store.Bus().Emit(events.NewCSSChanged(cssFile))
		}
		return nil
	})
	return w.Start(ctx)
}

// BuildAll compiles every configured stylesheet and returns the output
// file names.
func (s *Stylesheets) BuildAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.store.Options()
	entries, err := opts.Stylesheets()
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeInvalidOptions, "invalid stylesheets option")
	}

	res, err := s.bundler.Bundle(ctx, bundler.Options{
		Kind:       bundler.KindStylesheet,
		Entries:    toEntries(entries),
		SourceDir:  s.store.StylesheetsDir(),
		OutDir:     s.store.DistDir(),
		Production: opts.IsProduction(),
	})
	if err != nil {
		return nil, err
	}
	for _, out := range res.Outputs {
		s.logger.Info(ctx, "Built stylesheet", "file", out)
	}
	return res.Outputs, nil
}

func toEntries(entries []options.AssetEntry) []bundler.Entry {
	out := make([]bundler.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, bundler.Entry{Name: e.Name, Source: e.Source})
	}
	return out
}
