package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/albachteng/crontick/internal/api"
	"github.com/albachteng/crontick/internal/cron"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var runJobs, runTasks bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one tick and print its report",
		Long: `Execute one tick and print the report as JSON.

With neither --jobs nor --tasks both phases run. A tick that aborts
exits non-zero; individual job and task failures are only reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := cron.Options{RunJobs: runJobs, RunTasks: runTasks}
			if !cmd.Flags().Changed("jobs") && !cmd.Flags().Changed("tasks") {
				opts = cron.AllPhases()
			}

			return withApp(cmd, flags, func(a *app) error {
				report := a.engine().ExecuteCron(cmd.Context(), opts)
				if err := printJSON(cmd.OutOrStdout(), api.NewReportResponse(report)); err != nil {
					return err
				}
				if report.Fatal != nil {
					return errors.Wrap(report.Fatal, "tick aborted")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&runJobs, "jobs", false, "Run the job phase")
	cmd.Flags().BoolVar(&runTasks, "tasks", false, "Run the task phase")
	return cmd
}
