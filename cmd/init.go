package cmd

import (
	"github.com/spf13/cobra"
)

func (a *app) newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "init",
		Aliases: []string{"i"},
		Short:   "Create the workspace layout and starter files",
		Long: `Create the workspace directories, copy the starter page, stylesheet and
script, and write manuscript.yaml with default options. Existing files are
left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			ws, err := a.workspace(cfg, logger, nil)
			if err != nil {
				return err
			}
			if err := ws.Init(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Initialized %s\n", ws.Store().RootDir())
			return nil
		},
	}
}
