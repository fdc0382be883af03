package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/script"
)

func newDocCommand() *cobra.Command {
	var (
		output   string
		category string
		appName  string
	)

	cmd := &cobra.Command{
		Use:   "doc <pipeline>",
		Short: "Write the XML description of a pipeline's modules",
		Long: `Assemble the chain of a pipeline and write an XML document describing
every module and its parameters. The engine is not started.`,
		Example: `  # Print to stdout
  anlchain doc pipelines/calibrate.yaml

  # Write to a file with a category
  anlchain doc pipelines/calibrate.yaml -o calibrate.xml --category calibration`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			return writeDoc(ctx, s, args[0], appName, output, category)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&category, "category", "", "category attribute of the document")
	cmd.Flags().StringVar(&appName, "app", "", "app of a script to use")

	return cmd
}

func writeDoc(ctx context.Context, s *session, path, appName, output, category string) error {
	p, err := s.load(ctx, path, script.ModeBuild)
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
	return app.MakeDoc(output, category)
}
