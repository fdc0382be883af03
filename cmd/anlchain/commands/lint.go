package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/policy"
	"github.com/openfroyo/anlchain/pkg/script"
)

// lintReport is the JSON form of a lint result.
type lintReport struct {
	Pipeline string                 `json:"pipeline"`
	App      string                 `json:"app"`
	Modules  []chain.ModuleSnapshot `json:"modules"`
	Policy   *policy.Result         `json:"policy"`
}

func newLintCommand() *cobra.Command {
	var (
		policyDir string
		appName   string
	)

	cmd := &cobra.Command{
		Use:   "lint <pipeline>",
		Short: "Check a pipeline against the chain policies",
		Long: `Assemble the chain of a pipeline, commit its parameters and evaluate the
policies on the result, without starting the engine. The command fails
when a blocking policy is violated.`,
		Example: `  anlchain lint pipelines/calibrate.yaml
  anlchain lint pipelines/calibrate.star --app Calibrate --policy policies/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{policyDir: policyDir})
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			return runLint(ctx, s, args[0], appName)
		},
	}

	cmd.Flags().StringVar(&policyDir, "policy", "", "directory of additional policies")
	cmd.Flags().StringVar(&appName, "app", "", "app of a script to lint")

	return cmd
}

func runLint(ctx context.Context, s *session, path, appName string) error {
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

	modules, err := app.Check(ctx)
	if err != nil && !errors.Is(err, chain.ErrGateRejected) {
		return err
	}
	result, err := s.policy.Evaluate(ctx, modules)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(lintReport{Pipeline: path, App: app.Name(), Modules: modules, Policy: result}); err != nil {
			return err
		}
	} else {
		printLint(path, modules, result)
	}

	if !result.Allowed {
		return fmt.Errorf("%s: %d policy violation(s)", path, len(result.Violations))
	}
	return nil
}

func printLint(path string, modules []chain.ModuleSnapshot, result *policy.Result) {
	fmt.Printf("Pipeline: %s\n\n", path)

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "#\tMODULE\tCLASS\tVERSION\tON\tPARAMETERS")
	for _, m := range modules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%d\n", m.Index, m.ID, m.Class, m.Version, m.On, len(m.Parameters))
	}
	tw.Flush()

	fmt.Printf("\nPolicies evaluated: %d\n", len(result.EvaluatedPolicies))
	printViolations("Violations", result.Violations)
	printViolations("Warnings", result.Warnings)
	for _, e := range result.Errors {
		fmt.Printf("  evaluation error: %s\n", e)
	}

	if result.Allowed {
		fmt.Println("\n✓ Chain accepted")
	} else {
		fmt.Println("\n✗ Chain rejected")
	}
}

func printViolations(title string, vs []policy.Violation) {
	if len(vs) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, v := range vs {
		where := v.Module
		if v.Parameter != "" {
			where += "." + v.Parameter
		}
		if where == "" {
			where = "chain"
		}
		fmt.Printf("  [%s] %s (%s): %s\n", v.Severity, v.Policy, where, v.Message)
	}
}
