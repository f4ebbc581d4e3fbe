package assets

import (
	"context"

	"github.com/conneroisu/manuscript/internal/bundler"
	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/events"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/options"
)

// Scripts bundles the configured script entries.
type Scripts struct {
	store   *options.Store
	bundler bundler.Bundler
	logger  logging.Logger
}

// NewScripts creates the scripts manager.
func NewScripts(store *options.Store, b bundler.Bundler) *Scripts {
	return &Scripts{
		store:   store,
		bundler: b,
		logger:  store.Logger().WithComponent("scripts"),
	}
}

func (s *Scripts) Name() string { return "scripts" }

func (s *Scripts) Init(context.Context) error { return nil }

// Build bundles every script once.
func (s *Scripts) Build(ctx context.Context) error {
	opts, err := s.options()
	if err != nil {
		return err
	}
	res, err := s.bundler.Bundle(ctx, opts)
	if err != nil {
		return err
	}
	for _, out := range res.Outputs {
		s.logger.Info(ctx, "Built script", "file", out)
	}
	return nil
}

// Watch keeps an incremental bundler running and emits scriptChanged for
// every output of a successful rebuild.
func (s *Scripts) Watch(ctx context.Context) error {
	opts, err := s.options()
	if err != nil {
		return err
	}
	return s.bundler.Watch(ctx, opts, func(res bundler.Result) {
		if res.Failed() {
			return
		}
		for _, out := range res.Outputs {
			s.logger.Info(ctx, "watch", "script", out)
			s.store.Bus().Emit(events.NewScriptChanged(out))
		}
	})
}

func (s *Scripts) options() (bundler.Options, error) {
	opts := s.store.Options()
	entries, err := opts.Scripts()
	if err != nil {
		return bundler.Options{}, errors.WrapConfig(err, errors.ErrCodeInvalidOptions, "invalid scripts option")
	}
	return bundler.Options{
		Kind:       bundler.KindScript,
		Entries:    toEntries(entries),
		SourceDir:  s.store.ScriptsDir(),
		OutDir:     s.store.DistDir(),
		Production: opts.IsProduction(),
	}, nil
}
