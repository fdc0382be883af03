package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/config"
)

func newWatchCommand() *cobra.Command {
	var (
		docPath    string
		scriptPath string
		category   string
		appName    string
	)

	cmd := &cobra.Command{
		Use:   "watch <pipeline>",
		Short: "Regenerate documentation or scripts when a pipeline changes",
		Long: `Watch a pipeline file and rewrite its XML description and/or generated
script every time the file is saved. Runs until interrupted.`,
		Example: `  anlchain watch pipelines/calibrate.yaml --doc calibrate.xml --script calibrate.star`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if docPath == "" && scriptPath == "" {
				return errors.New("nothing to watch for: set --doc and/or --script")
			}

			ctx := cmd.Context()
			s, err := newSession(ctx, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			opts := scriptOptions(s, "", "", "")

			regenerate := func(ctx context.Context) error {
				if docPath != "" {
					if err := writeDoc(ctx, s, path, appName, docPath, category); err != nil {
						return fmt.Errorf("doc: %w", err)
					}
				}
				if scriptPath != "" {
					if err := writeScript(ctx, s, path, appName, scriptPath, opts); err != nil {
						return fmt.Errorf("script: %w", err)
					}
				}
				return nil
			}

			if err := regenerate(ctx); err != nil {
				s.logger.Error().Err(err).Str("pipeline", path).Msg("Initial generation failed")
			}

			w, err := config.NewWatcher(s.logger, config.DefaultDebounce)
			if err != nil {
				return err
			}
			if err := w.Add(path); err != nil {
				w.Close()
				return err
			}

			s.logger.Info().Str("pipeline", path).Msg("Watching for changes")
			return w.Run(ctx, func(p string) bool { return filepath.Clean(p) == path }, regenerate)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "XML description to keep up to date")
	cmd.Flags().StringVar(&scriptPath, "script", "", "generated script to keep up to date")
	cmd.Flags().StringVar(&category, "category", "", "category attribute of the document")
	cmd.Flags().StringVar(&appName, "app", "", "app of a script to use")

	return cmd
}
