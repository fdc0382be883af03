package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/docgen"
	"github.com/openfroyo/anlchain/pkg/script"
)

func newScriptCommand() *cobra.Command {
	var (
		output    string
		pkg       string
		namespace string
		name      string
		from      string
	)

	cmd := &cobra.Command{
		Use:   "script <pipeline>",
		Short: "Generate a Starlark script that rebuilds a pipeline",
		Long: `Assemble the chain of a pipeline and write a Starlark script that chains
the same modules with every parameter at its current value. The generated
script runs unchanged with "anlchain run".

Names of the package, namespace and app default to the script settings.`,
		Example: `  anlchain script pipelines/calibrate.yaml -o calibrate.star \
      --package sample --namespace Sample --app Calibrate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			opts := scriptOptions(s, pkg, namespace, name)
			return writeScript(ctx, s, args[0], from, output, opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&pkg, "package", "", "package loaded by the script")
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace symbol loaded from the package")
	cmd.Flags().StringVar(&name, "app", "", "name of the generated setup function")
	cmd.Flags().StringVar(&from, "from", "", "app of a source script to use")

	return cmd
}

// scriptOptions fills unset names from the settings.
func scriptOptions(s *session, pkg, namespace, name string) docgen.ScriptOptions {
	opts := docgen.ScriptOptions{
		Package:   s.settings.Script.Package,
		Namespace: s.settings.Script.Namespace,
		AppName:   s.settings.Script.AppName,
	}
	if pkg != "" {
		opts.Package = pkg
	}
	if namespace != "" {
		opts.Namespace = namespace
	}
	if name != "" {
		opts.AppName = name
	}
	return opts
}

func writeScript(ctx context.Context, s *session, path, appName, output string, opts docgen.ScriptOptions) error {
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
	// Commit the queued parameters so the script carries the pipeline's
	// values rather than the defaults. A gate rejection still commits.
	if _, err := app.Check(ctx); err != nil && !errors.Is(err, chain.ErrGateRejected) {
		return err
	}
	return app.MakeScript(output, opts)
}
