package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "crontick",
		Short: "Run queued jobs and interval tasks",
		Long: `crontick executes scheduled work against a SQLite database.

Each tick drains a bounded batch of queued one-shot jobs, then runs every
registered task whose interval has elapsed.

Examples:
  crontick run                              # one tick, both phases
  crontick run --tasks                      # task phase only
  crontick enqueue log::message hello       # queue a job
  crontick queue ls                         # show pending jobs
  crontick daemon                           # tick on the configured schedules
  crontick serve --daemon                   # HTTP API plus schedules`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (toml, yaml or json)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path")

	root.AddCommand(
		newRunCmd(flags),
		newDaemonCmd(flags),
		newServeCmd(flags),
		newEnqueueCmd(flags),
		newQueueCmd(flags),
		newIntervalsCmd(flags),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
