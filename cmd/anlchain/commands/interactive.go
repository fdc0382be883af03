package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/script"
)

func newInteractiveCommand() *cobra.Command {
	var (
		policyDir string
		appName   string
	)

	cmd := &cobra.Command{
		Use:   "interactive <pipeline>",
		Short: "Run a pipeline in an interactive session",
		Long: `Assemble the chain of a pipeline, prepare it and hand control to the
interactive session on standard input.

Module commands: help, chain, show, print <id|index>, rev, mod <id|index>,
on <id|index|-1>, off <id|index|-1>, init, quit.
Analysis commands: help, run <N> [display], exit.`,
		Example: `  anlchain interactive pipelines/calibrate.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{history: true, policyDir: policyDir})
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			p, err := s.load(ctx, args[0], script.ModeBuild)
			if err != nil {
				return err
			}
			app, err := p.app(appName)
			if err != nil {
				return err
			}

			app.RunInteractive(ctx)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyDir, "policy", "", "directory or file of additional .rego policies")
	cmd.Flags().StringVar(&appName, "app", "", "app of a script to use")

	return cmd
}
