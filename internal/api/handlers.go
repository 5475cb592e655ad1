package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/cron"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/queue"
	"github.com/albachteng/crontick/internal/tracking"
)

func (s *Server) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, _, err := jobs.ParseHandlerName(req.Handler); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.Registry != nil && !s.Registry.Has(req.Handler) {
		http.Error(w, fmt.Sprintf("unknown handler: %s", req.Handler), http.StatusBadRequest)
		return
	}

	args, err := jobs.ArgsFromJSON(req.Args)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.Queue.Enqueue(r.Context(), req.Handler, args)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidHandlerName) || errors.Is(err, jobs.ErrInvalidArgs) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Logger.Error("enqueue failed", "handler", req.Handler, "error", err)
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}

	s.Logger.Info("job enqueued", "job_id", int64(id), "handler", req.Handler)
	writeJSON(w, http.StatusCreated, EnqueueResponse{JobID: id, Status: "enqueued"})
}

func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.Queue.List(r.Context(), limit)
	if err != nil {
		s.Logger.Error("list jobs failed", "error", err)
		http.Error(w, "list jobs failed", http.StatusInternalServerError)
		return
	}

	out := make([]JobResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, newJobResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleTrigger runs one tick. Phases default to both; ?jobs= and ?tasks=
// select them explicitly.
func (s *Server) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	opts, err := phaseOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.Limiter.Allow() {
		http.Error(w, "too many triggers", http.StatusTooManyRequests)
		return
	}
	if !s.Lock.TryLock() {
		http.Error(w, "a tick is already running", http.StatusConflict)
		return
	}
	defer s.Lock.Unlock()

	// Dequeued jobs are already deleted, so the tick must not die with the request.
	report := s.Engine.ExecuteCron(context.WithoutCancel(r.Context()), opts)
	s.Tracker.Record("http", report)
	writeJSON(w, http.StatusOK, NewReportResponse(report))
}

func (s *Server) HandleListTicks(w http.ResponseWriter, r *http.Request) {
	status := tracking.TickStatus(r.URL.Query().Get("status"))

	infos := s.Tracker.ListByStatus(status)
	out := make([]TickResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, newTickResponse(info))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) HandleGetTick(w http.ResponseWriter, r *http.Request) {
	info, exists := s.Tracker.Get(r.PathValue("id"))
	if !exists {
		http.Error(w, "tick not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newTickResponse(info))
}

func (s *Server) HandleListIntervals(w http.ResponseWriter, r *http.Request) {
	records, err := s.Intervals.List(r.Context())
	if err != nil {
		s.Logger.Error("list intervals failed", "error", err)
		http.Error(w, "list intervals failed", http.StatusInternalServerError)
		return
	}

	out := make([]IntervalResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, newIntervalResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Events.Snapshot()
	out := make([]EventResponse, 0, len(snapshot))
	for _, e := range snapshot {
		out = append(out, newEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK\n")
}

func phaseOptions(r *http.Request) (cron.Options, error) {
	q := r.URL.Query()
	if !q.Has("jobs") && !q.Has("tasks") {
		return cron.AllPhases(), nil
	}
	var opts cron.Options
	var err error
	if opts.RunJobs, err = boolParam(r, "jobs"); err != nil {
		return opts, err
	}
	if opts.RunTasks, err = boolParam(r, "tasks"); err != nil {
		return opts, err
	}
	return opts, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Newf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Newf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
