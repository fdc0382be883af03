package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/anlchain/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `Inspect the run history kept in the history database.

Every run records:
  - the pipeline, mode and outcome
  - the duration of each lifecycle phase
  - the committed parameters of every module
  - the event loop counters of every module
  - the telemetry events emitted while it ran`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())
	cmd.AddCommand(newHistoryEventsCommand())

	return cmd
}

// openHistory returns a session with the history store open.
func openHistory(ctx context.Context) (*session, error) {
	s, err := newSession(ctx, sessionOptions{history: true})
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		s.Close(ctx)
		return nil, errors.New("no history database configured (set history_db or ANLCHAIN_HISTORY_DB)")
	}
	return s, nil
}

func newHistoryListCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Example: `  # Latest 20 runs
  anlchain history list

  # Next page
  anlchain history list --limit 20 --offset 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			runs, err := s.store.ListRuns(ctx, limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			tw := newTable(os.Stdout)
			fmt.Fprintln(tw, "ID\tSTARTED\tPIPELINE\tMODE\tSTATUS\tEVENTS\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Pipeline, r.Mode, r.Status,
					r.Committed, r.Events, r.Duration().Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var withEvents bool

	cmd := &cobra.Command{
		Use:     "show <run-id>",
		Short:   "Show one recorded run",
		Example: `  anlchain history show 7f9c0e0a-2b1d-4c55-a0de-0e51f0a4c2a1 --events`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			run, err := s.store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			var events []*stores.Event
			if withEvents {
				events, err = s.store.GetEvents(ctx, &run.ID, nil, -1, 0)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return printJSON(struct {
					*stores.Run
					Events []*stores.Event `json:"events,omitempty"`
				}{run, events})
			}
			printRun(run)
			if withEvents {
				fmt.Println("\nEvents:")
				printEvents(events)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withEvents, "events", false, "include the run's events")

	return cmd
}

func printRun(r *stores.Run) {
	fmt.Printf("Run:       %s\n", r.ID)
	fmt.Printf("Pipeline:  %s\n", r.Pipeline)
	fmt.Printf("Mode:      %s\n", r.Mode)
	fmt.Printf("Status:    %s\n", r.Status)
	fmt.Printf("Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("Duration:  %s\n", r.Duration().Round(time.Millisecond))
	fmt.Printf("Events:    %d of %d\n", r.Committed, r.Events)
	if r.Error != nil {
		fmt.Printf("Error:     %s\n", *r.Error)
	}

	if len(r.Phases) > 0 {
		fmt.Println("\nPhases:")
		tw := newTable(os.Stdout)
		for _, p := range r.Phases {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.Name, p.Status, p.Duration.Round(time.Microsecond))
		}
		tw.Flush()
	}

	if len(r.Modules) > 0 {
		fmt.Println("\nModules:")
		tw := newTable(os.Stdout)
		fmt.Fprintln(tw, "  #\tMODULE\tCLASS\tVERSION\tON\tENTRY\tOK\tSKIP\tERROR\tQUIT")
		for _, m := range r.Modules {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%t\t%d\t%d\t%d\t%d\t%d\n",
				m.Index, m.ID, m.Class, m.Version, m.On, m.Entry, m.OK, m.Skip, m.Error, m.Quit)
		}
		tw.Flush()

		for _, m := range r.Modules {
			if len(m.Parameters) == 0 {
				continue
			}
			fmt.Printf("\n%s parameters:\n", m.ID)
			tw := newTable(os.Stdout)
			for _, p := range m.Parameters {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Name, p.Value, p.Unit, p.Type)
			}
			tw.Flush()
		}
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <run-id>",
		Short:   "Delete a recorded run",
		Example: `  anlchain history delete 7f9c0e0a-2b1d-4c55-a0de-0e51f0a4c2a1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			if err := s.store.DeleteRun(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newHistoryEventsCommand() *cobra.Command {
	var (
		runID string
		level string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded events",
		Example: `  # Latest errors of every run
  anlchain history events --level error

  # Events of one run
  anlchain history events --run 7f9c0e0a-2b1d-4c55-a0de-0e51f0a4c2a1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var levelFilter *stores.EventLevel
			switch l := stores.EventLevel(level); l {
			case "":
			case stores.EventLevelInfo, stores.EventLevelWarning, stores.EventLevelError:
				levelFilter = &l
			default:
				return fmt.Errorf("invalid level %q (want info, warning or error)", level)
			}
			var runFilter *string
			if runID != "" {
				runFilter = &runID
			}

			ctx := cmd.Context()
			s, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			events, err := s.store.GetEvents(ctx, runFilter, levelFilter, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(events)
			}
			printEvents(events)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only events of this run")
	cmd.Flags().StringVar(&level, "level", "", "only events of this level (info, warning, error)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")

	return cmd
}

func printEvents(events []*stores.Event) {
	if len(events) == 0 {
		fmt.Println("No events")
		return
	}
	tw := newTable(os.Stdout)
	for _, e := range events {
		phase := ""
		if e.Phase != nil {
			phase = *e.Phase
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.StampMilli), e.Level, e.Type, phase, e.Message)
	}
	tw.Flush()
}
