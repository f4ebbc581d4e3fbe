package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/manuscript/internal/options"
)

func (a *app) newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "build",
		Aliases: []string{"b"},
		Short:   "Build the production site into dist/",
		Long: `Render every page and template page, bundle stylesheets and scripts
minified and copy static files. The output is written to <root>/dist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			ws, err := a.workspace(cfg, logger, options.Options{options.KeyIsProduction: true})
			if err != nil {
				return err
			}
			if err := ws.Build(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Built %s\n", ws.Store().DistDir())
			return nil
		},
	}
}
