package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/albachteng/crontick/internal/jobs"
)

func newEnqueueCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <scope::method> [args...]",
		Short: "Queue a job for the next tick",
		Long: `Queue a job. Arguments are strings unless prefixed with a kind:

  int:42  float:1.5  bool:true  bytes:aGk=  null:  str:int:7

Examples:
  crontick enqueue log::message warn "disk nearly full"
  crontick enqueue maintenance::vacuum`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, _, err := jobs.ParseHandlerName(name); err != nil {
				return err
			}
			jobArgs := make(jobs.Args, 0, len(args)-1)
			for _, raw := range args[1:] {
				v, err := jobs.ParseArg(raw)
				if err != nil {
					return err
				}
				jobArgs = append(jobArgs, v)
			}

			return withApp(cmd, flags, func(a *app) error {
				if !a.handlers.Has(name) {
					a.logger.Warn("no handler registered for job in this process", "handler", name)
				}
				id, err := a.queue.Enqueue(cmd.Context(), name, jobArgs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %d\n", id)
				return nil
			})
		},
	}
}

func newQueueCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the job queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var limit int
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List pending jobs in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				records, err := a.queue.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				total, err := a.queue.Len(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tHANDLER\tCREATED\tARGS")
				for _, r := range records {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.HandlerName, r.CreatedAt.Format(time.RFC3339), formatArgs(r))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d pending, next tick takes up to %d\n", total, a.cfg.Scheduler.BatchSize)
				return nil
			})
		},
	}
	ls.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to display (0 for all)")

	cmd.AddCommand(ls)
	return cmd
}

func formatArgs(r *jobs.Record) string {
	args, err := r.Args()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}

func newIntervalsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "intervals",
		Short: "Show when each task last ran and is next due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				records, err := a.intervals.List(cmd.Context())
				if err != nil {
					return err
				}

				every := map[string]int{}
				for _, d := range a.tasks.Descriptors() {
					every[d.RecordCode()] = d.Task.IntervalMinutes
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "RECORD\tLAST\tEVERY\tNEXT DUE")
				for _, r := range records {
					minutes, ok := every[r.Code]
					if !ok {
						fmt.Fprintf(w, "%s\t%s\t-\t-\n", r.Code, r.UpdatedAt.Format(time.RFC3339))
						continue
					}
					period := time.Duration(minutes) * time.Minute
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Code, r.UpdatedAt.Format(time.RFC3339),
						period, r.UpdatedAt.Add(period).Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}
