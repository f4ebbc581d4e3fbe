// Package bundler bundles scripts and stylesheets with esbuild.
package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/logging"
)

// Kind selects the output type of a bundle.
type Kind int

const (
	KindScript Kind = iota
	KindStylesheet
)

func (k Kind) String() string {
	if k == KindStylesheet {
		return "stylesheet"
	}
	return "script"
}

// Ext is the output extension of the kind.
func (k Kind) Ext() string {
	if k == KindStylesheet {
		return ".css"
	}
	return ".js"
}

// Entry is one bundle: Source is bundled into <OutDir>/<Name><ext>.
type Entry struct {
	Name   string
	Source string
}

// Options configures a bundling run.
type Options struct {
	Kind    Kind
	Entries []Entry
	// SourceDir is the directory entry sources are relative to.
	SourceDir string
	OutDir    string
	// Production minifies output and drops source maps.
	Production bool
}

// Result describes a finished bundling run.
type Result struct {
	// Outputs are the output base names ("index.js"), sorted.
	Outputs  []string
	Errors   []string
	Warnings []string
}

// Failed reports whether the run produced errors.
func (r Result) Failed() bool { return len(r.Errors) > 0 }

// Err returns the run's errors as a single error, or nil.
func (r Result) Err() error {
	if !r.Failed() {
		return nil
	}
	return errors.NewBuildError(errors.ErrCodeBundleFailed, "bundling failed", fmt.Errorf("%s", strings.Join(r.Errors, "\n")))
}

// Bundler bundles assets once or continuously.
type Bundler interface {
	Bundle(ctx context.Context, opts Options) (Result, error)
	// Watch rebuilds whenever an input changes until ctx is done. onRebuild
	// runs after every build, starting with the initial one.
	Watch(ctx context.Context, opts Options, onRebuild func(Result)) error
}

// ESBuild implements Bundler with esbuild's Go API.
type ESBuild struct {
	logger logging.Logger
}

// New creates an esbuild-backed bundler.
func New(logger logging.Logger) *ESBuild {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ESBuild{logger: logger.WithComponent("bundler")}
}

// Bundle runs a single build and writes its outputs.
func (b *ESBuild) Bundle(ctx context.Context, opts Options) (Result, error) {
	if len(opts.Entries) == 0 {
		return Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := writeResult(api.Build(buildOptions(opts)), opts)
	if err != nil {
		return res, err
	}
	for _, w := range res.Warnings {
		b.logger.Warn(ctx, nil, "Bundler warning", "kind", opts.Kind, "message", w)
	}
	if err := res.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// Watch starts an incremental build context. Builds run in the background;
// failures are logged and passed to onRebuild, never returned, so fixing
// the source recovers.
func (b *ESBuild) Watch(ctx context.Context, opts Options, onRebuild func(Result)) error {
	if len(opts.Entries) == 0 {
		return nil
	}

	buildOpts := buildOptions(opts)
	buildOpts.Plugins = append(buildOpts.Plugins, api.Plugin{
		Name: "manuscript-on-end",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				res, err := writeResult(*result, opts)
				if err != nil {
					res.Errors = append(res.Errors, err.Error())
				}

				if res.Failed() {
					b.logger.Error(ctx, res.Err(), "Rebuild failed", "kind", opts.Kind)
				}
				if onRebuild != nil {
					onRebuild(res)
				}
				return api.OnEndResult{}, nil
			})
		},
	})

	bctx, cerr := api.Context(buildOpts)
	if cerr != nil {
		return errors.NewBuildError(errors.ErrCodeBundleFailed, "creating build context", cerr)
	}
	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		bctx.Dispose()
		return errors.NewBuildError(errors.ErrCodeBundleFailed, "starting watch", err)
	}

	go func() {
		<-ctx.Done()
		bctx.Dispose()
	}()
	return nil
}

func buildOptions(opts Options) api.BuildOptions {
	entries := make([]api.EntryPoint, 0, len(opts.Entries))
	for _, e := range opts.Entries {
		source := e.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(opts.SourceDir, filepath.FromSlash(source))
		}
		entries = append(entries, api.EntryPoint{InputPath: source, OutputPath: e.Name})
	}

	buildOpts := api.BuildOptions{
		EntryPointsAdvanced: entries,
		AbsWorkingDir:       opts.SourceDir,
		Outdir:              opts.OutDir,
		Bundle:              true,
		LogLevel:            api.LogLevelSilent,
		Platform:            api.PlatformBrowser,
		Engines: []api.Engine{
			{Name: api.EngineChrome, Version: "100"},
			{Name: api.EngineFirefox, Version: "100"},
			{Name: api.EngineSafari, Version: "15"},
		},
		Loader: map[string]api.Loader{
			".png":   api.LoaderFile,
			".jpg":   api.LoaderFile,
			".jpeg":  api.LoaderFile,
			".svg":   api.LoaderFile,
			".woff":  api.LoaderFile,
			".woff2": api.LoaderFile,
		},
		MinifyWhitespace:  opts.Production,
		MinifyIdentifiers: opts.Production,
		MinifySyntax:      opts.Production,
	}
	if opts.Kind == KindScript {
		buildOpts.Format = api.FormatESModule
		buildOpts.Target = api.ES2020
	}
	if !opts.Production {
		buildOpts.Sourcemap = api.SourceMapLinked
	}
	return buildOpts
}

// writeResult writes the output files of a successful build.
func writeResult(result api.BuildResult, opts Options) (Result, error) {
	res := Result{
		Errors:   formatMessages(result.Errors, api.ErrorMessage),
		Warnings: formatMessages(result.Warnings, api.WarningMessage),
	}
	if res.Failed() {
		return res, nil
	}
	for _, f := range result.OutputFiles {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return res, errors.FileOperationError("mkdir", filepath.Dir(f.Path), err)
		}
		if err := os.WriteFile(f.Path, f.Contents, 0o644); err != nil {
			return res, errors.FileOperationError("write", f.Path, err)
		}
		if filepath.Ext(f.Path) == opts.Kind.Ext() {
			res.Outputs = append(res.Outputs, filepath.Base(f.Path))
		}
	}
	sort.Strings(res.Outputs)
	return res, nil
}

func formatMessages(msgs []api.Message, kind api.MessageKind) []string {
	if len(msgs) == 0 {
		return nil
	}
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind})
	out := make([]string, 0, len(formatted))
	for _, m := range formatted {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}
