package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/albachteng/crontick/internal/api"
	"github.com/albachteng/crontick/internal/shutdown"
	"github.com/albachteng/crontick/internal/tracking"
)

func newDaemonCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Tick on the configured schedules until interrupted",
		Long: `Run ticks on daemon.jobs_schedule and daemon.tasks_schedule (cron
expressions or descriptors such as "@every 1m"). Identical schedules share
one tick. SIGINT or SIGTERM stops scheduling and waits up to
daemon.shutdown_timeout for a running tick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				mgr := shutdown.NewManager(ctx, a.cfg.Daemon.ShutdownTimeout, a.logger)
				if err := a.startDaemon(mgr, a.engine(), &sync.Mutex{}, tracking.NewTickTracker(0)); err != nil {
					return err
				}
				a.logger.Info("daemon started")

				<-mgr.Context().Done()
				a.logger.Info("shutdown signal received")
				mgr.Shutdown()
				mgr.Wait()
				return shutdownErr(mgr.Errors())
			})
		},
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr       string
		withDaemon bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API: enqueue and list jobs, trigger ticks with
POST /cron, and inspect recent ticks, intervals and failure events.

With --daemon the configured schedules also run in this process; HTTP and
scheduled ticks never overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				mgr := shutdown.NewManager(ctx, a.cfg.Daemon.ShutdownTimeout, a.logger)
				engine := a.engine()
				lock := &sync.Mutex{}

				srv := api.NewServer(a.queue, a.intervals, a.handlers, engine, a.logger)
				srv.Lock = lock
				srv.Limiter = api.NewLimiter(a.cfg.Server.TriggerRate, a.cfg.Server.TriggerBurst)
				go srv.Events.Follow(mgr.Context(), a.bus)

				if withDaemon {
					if err := a.startDaemon(mgr, engine, lock, srv.Tracker); err != nil {
						return err
					}
				}

				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				err := srv.ListenAndServe(mgr.Context(), addr)
				mgr.Shutdown()
				mgr.Wait()
				return errors.CombineErrors(err, shutdownErr(mgr.Errors()))
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	cmd.Flags().BoolVar(&withDaemon, "daemon", false, "Also tick on the configured schedules")
	return cmd
}
