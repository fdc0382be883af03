package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/config"
	"github.com/openfroyo/anlchain/pkg/script"
)

func newRunCommand() *cobra.Command {
	var (
		numLoop          int
		displayFrequency int
		policyDir        string
		appName          string
		noHistory        bool
		metricsAddr      string
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline in batch mode",
		Long: `Assemble the chain of a pipeline and run it over events.

A script runs exactly as written: every anl.run() call it makes is executed.
A CUE or YAML definition is run once with the event count taken from the
command line, the definition, or the settings, in that order. A num_loop of
-1 runs until a module quits.

Before Prepare() the committed chain is checked against the built-in
policies and the .rego files of --policy (or the policy_dir setting).`,
		Example: `  # Run a definition for 1000 events, reporting every 100
  anlchain run pipelines/calibrate.yaml -n 1000 -d 100

  # Run a script with extra policies
  anlchain run pipelines/calibrate.star --policy policies/

  # Expose metrics while a long run is going
  anlchain run pipelines/calibrate.yaml -n -1 --metrics :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{
				history:     !noHistory,
				policyDir:   policyDir,
				metricsAddr: metricsAddr,
			})
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			metricsCtx, stopMetrics := context.WithCancel(ctx)
			defer stopMetrics()
			if err := s.tel.StartMetricsServer(metricsCtx); err != nil {
				return err
			}

			if !config.IsPipelineDefinition(args[0]) && appName == "" {
				return runScript(ctx, s, args[0])
			}

			p, err := s.load(ctx, args[0], script.ModeBuild)
			if err != nil {
				return err
			}
			app, err := p.app(appName)
			if err != nil {
				return err
			}
			n, d := s.loopCounts(p, numLoop, displayFrequency,
				cmd.Flags().Changed("num-loop"), cmd.Flags().Changed("display"))

			s.logger.Info().Str("pipeline", args[0]).Str("app", app.Name()).Int("num_loop", n).Msg("Running pipeline")
			return app.Run(ctx, n, d)
		},
	}

	cmd.Flags().IntVarP(&numLoop, "num-loop", "n", 0, "number of events (-1 until a module quits)")
	cmd.Flags().IntVarP(&displayFrequency, "display", "d", 0, "progress line every N events (0 picks one)")
	cmd.Flags().StringVar(&policyDir, "policy", "", "directory or file of additional .rego policies")
	cmd.Flags().StringVar(&appName, "app", "", "app of a script to run instead of executing the script")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address while running (e.g. :9090)")

	return cmd
}

// runScript executes a script in run mode and reports the failed calls.
func runScript(ctx context.Context, s *session, path string) error {
	p, err := s.load(ctx, path, script.ModeRun)
	if err != nil {
		return err
	}

	var errs []error
	for _, inv := range p.invocations {
		if inv.Err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", inv.App.Name(), inv.Kind, inv.Err))
		}
	}
	if len(p.invocations) == 0 {
		s.logger.Warn().Str("pipeline", path).Msg("Script made no app calls")
	}
	return errors.Join(errs...)
}
