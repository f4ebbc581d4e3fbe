// Package cmd provides the command-line interface for manuscript.
//
// Tool settings come from, in increasing order of precedence: defaults, an
// optional .manuscript.yaml tool config in the working directory (or the
// file named by --config), MANUSCRIPT_* environment variables and flags.
//
//	manuscript dev -r site -p 8888   serve site/ with live reload
//	manuscript build -r site         write the production site to site/dist
//	manuscript init -r site          create the workspace layout only
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/manuscript/internal/config"
	merrors "github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/options"
	"github.com/conneroisu/manuscript/internal/workspace"
)

// app holds state shared by the subcommands of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "manuscript",
		Short: "Build and serve markdown sites",
		Long: `manuscript turns a directory of markdown pages, templates, stylesheets
and scripts into a static site, and serves it with live reload while you edit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "tool config file (default is ./.manuscript.yaml)")
	flags.StringP("root", "r", config.DefaultRoot, "workspace root directory")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text, json)")
	flags.Duration("debounce", config.DefaultDebounce, "file watcher debounce interval")

	bindFlags(a.v, flags, map[string]string{
		"root":       config.KeyRoot,
		"log-level":  config.KeyLogLevel,
		"log-format": config.KeyLogFormat,
		"debounce":   config.KeyWatchDebounce,
	})

	root.AddCommand(
		a.newDevCommand(),
		a.newBuildCommand(),
		a.newInitCommand(),
		newVersionCommand(),
	)
	return root
}

// load reads the tool config and creates the logger.
func (a *app) load(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".manuscript")
	}
	config.ConfigureEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		// only an explicitly requested file has to exist
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || a.cfgFile != "" {
			return nil, nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		file := a.v.ConfigFileUsed()
		if file == "" {
			file = ".manuscript.yaml"
		}
		return nil, nil, merrors.NewEnhancedError("Invalid configuration", err, merrors.ConfigurationError(err.Error(), file))
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if used := a.v.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "Using config file", "file", used)
	}
	return cfg, logger, nil
}

func (a *app) workspace(cfg *config.Config, logger logging.Logger, overrides options.Options) (*workspace.Workspace, error) {
	return workspace.New(workspace.Config{
		Root:      cfg.Root,
		Overrides: overrides,
		Logger:    logger,
		Debounce:  cfg.Watch.Debounce,
	})
}
