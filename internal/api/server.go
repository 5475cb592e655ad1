// Package api exposes the queue, interval table and tick trigger over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/interval"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/queue"
	"github.com/albachteng/crontick/internal/tracking"
)

// TryLocker serializes ticks with other triggers. *sync.Mutex satisfies it.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

type Server struct {
	Queue     queue.Queue
	Intervals interval.Store
	Registry  *jobs.Registry
	Engine    tracking.Ticker
	Tracker   *tracking.TickTracker
	Events    *events.Ring
	Lock      TryLocker
	Limiter   *rate.Limiter
	Logger    *slog.Logger
}

// NewServer fills in a private tick lock, an unlimited trigger rate, an
// empty tracker and event ring where the caller left them nil.
func NewServer(q queue.Queue, intervals interval.Store, registry *jobs.Registry, engine tracking.Ticker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Queue:     q,
		Intervals: intervals,
		Registry:  registry,
		Engine:    engine,
		Tracker:   tracking.NewTickTracker(0),
		Events:    events.NewRing(0),
		Lock:      &sync.Mutex{},
		Limiter:   rate.NewLimiter(rate.Inf, 0),
		Logger:    logger,
	}
}

// NewLimiter builds the POST /cron limiter; a zero rate means unlimited.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HandleHealth)
	mux.HandleFunc("POST /jobs", s.HandleEnqueue)
	mux.HandleFunc("GET /jobs", s.HandleListJobs)
	mux.HandleFunc("POST /cron", s.HandleTrigger)
	mux.HandleFunc("GET /ticks", s.HandleListTicks)
	mux.HandleFunc("GET /ticks/{id}", s.HandleGetTick)
	mux.HandleFunc("GET /intervals", s.HandleListIntervals)
	mux.HandleFunc("GET /events", s.HandleListEvents)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("server starting", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.WithoutCancel(ctx))
	}
}
