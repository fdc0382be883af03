package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anlchain",
		Short: "anlchain - event analysis chain runner",
		Long: `anlchain assembles analysis chains of modules and runs them over events.

Pipelines are Starlark scripts (.star) or declarative CUE (.cue) and YAML
(.yaml) definitions. Every run is checked against the policy gate and
recorded in the run history.

Module classes come from the Sample namespace, the Global namespace and the
WASM modules found in the configured module directory.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "anlchain.yaml", "settings file path (skipped when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "log and print in JSON format")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newInteractiveCommand())
	rootCmd.AddCommand(newParamsCommand())
	rootCmd.AddCommand(newDocCommand())
	rootCmd.AddCommand(newScriptCommand())
	rootCmd.AddCommand(newLintCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
