package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/manuscript/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		format string
		short  bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetBuildInfo())
			case "text":
				if short {
					fmt.Fprintln(out, version.GetShortVersion())
					return nil
				}
				info := version.GetBuildInfo()
				fmt.Fprintf(out, "manuscript %s\n", version.GetShortVersion())
				if !info.BuildTime.IsZero() {
					fmt.Fprintf(out, "Built: %s\n", info.BuildTime.UTC().Format("2006-01-02 15:04:05 UTC"))
				}
				build := "development"
				if version.IsRelease() {
					build = "release"
				}
				fmt.Fprintf(out, "Build: %s\nGo: %s\nPlatform: %s\n", build, info.GoVersion, info.Platform)
				return nil
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&short, "short", false, "show the version only")
	return cmd
}
