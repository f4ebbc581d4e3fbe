package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/manuscript/internal/config"
	"github.com/conneroisu/manuscript/internal/errors"
)

func (a *app) newDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dev",
		Aliases: []string{"serve", "s"},
		Short:   "Serve the workspace with live reload",
		Long: `Serve the workspace without a full build. Pages are rendered on request,
stylesheets and scripts are rebuilt when their sources change, and open
browsers are told to refresh over a websocket.

Examples:
  manuscript dev                  # serve the current directory on localhost:8888
  manuscript dev -r site -p 3000  # serve ./site on port 3000`,
		Args: cobra.NoArgs,
		RunE: a.runDev,
	}

	cmd.Flags().IntP("port", "p", config.DefaultPort, "port to serve on")
	cmd.Flags().String("host", config.DefaultHost, "host to bind to")
	bindFlags(a.v, cmd.Flags(), map[string]string{
		"port": config.KeyServerPort,
		"host": config.KeyServerHost,
	})
	return cmd
}

func (a *app) runDev(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := a.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := a.workspace(cfg, logger, nil)
	if err != nil {
		return err
	}
	if err := ws.Serve(ctx, cfg.Server.Addr()); err != nil {
		if suggestions := errors.ServerStartError(err, cfg.Server.Port); len(suggestions) > 0 {
			return errors.NewEnhancedError(fmt.Sprintf("Failed to start dev server on %s", cfg.Server.Addr()), err, suggestions)
		}
		return err
	}
	return nil
}
