package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/script"
)

func newParamsCommand() *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "params <pipeline>",
		Short: "Print the parameters of every module",
		Long: `Assemble the chain of a pipeline, start the engine and print every
module's parameters in chain order. The values assigned by the pipeline
are committed at startup, so the printed values are the ones a run would use.`,
		Example: `  anlchain params pipelines/calibrate.star`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{})
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
			if err := app.Setup(); err != nil {
				return err
			}
			return app.PrintAllParameters(ctx, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&appName, "app", "", "app of a script to use")

	return cmd
}
