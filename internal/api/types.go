package api

import (
	"encoding/json"
	"time"

	"github.com/albachteng/crontick/internal/cron"
	"github.com/albachteng/crontick/internal/events"
	"github.com/albachteng/crontick/internal/interval"
	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/tracking"
)

type EnqueueRequest struct {
	Handler string            `json:"handler"`
	Args    []json.RawMessage `json:"args,omitempty"`
}

type EnqueueResponse struct {
	JobID  jobs.JobID `json:"job_id"`
	Status string     `json:"status"`
}

type JobResponse struct {
	ID        jobs.JobID `json:"id"`
	Handler   string     `json:"handler"`
	Args      []any      `json:"args"`
	CreatedAt time.Time  `json:"created_at"`
	ArgsError string     `json:"args_error,omitempty"`
}

func newJobResponse(r *jobs.Record) JobResponse {
	resp := JobResponse{ID: r.ID, Handler: r.HandlerName, CreatedAt: r.CreatedAt, Args: []any{}}
	args, err := r.Args()
	if err != nil {
		resp.ArgsError = err.Error()
		return resp
	}
	for _, v := range args {
		resp.Args = append(resp.Args, v.Any())
	}
	return resp
}

type ReportResponse struct {
	TickID     string    `json:"tick_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Jobs       struct {
		Dequeued   int `json:"dequeued"`
		Processed  int `json:"processed"`
		Failed     int `json:"failed"`
		Skipped    int `json:"skipped"`
		Unresolved int `json:"unresolved"`
	} `json:"jobs"`
	Tasks struct {
		Run          int `json:"run"`
		Succeeded    int `json:"succeeded"`
		Unsuccessful int `json:"unsuccessful"`
		Failed       int `json:"failed"`
		NotDue       int `json:"not_due"`
	} `json:"tasks"`
	PhaseFailures int    `json:"phase_failures"`
	Fatal         string `json:"fatal,omitempty"`
}

// NewReportResponse flattens a tick report for JSON output.
func NewReportResponse(r *cron.Report) ReportResponse {
	var resp ReportResponse
	resp.TickID = r.TickID
	resp.StartedAt = r.StartedAt
	resp.DurationMS = r.Duration.Milliseconds()
	resp.Jobs.Dequeued = r.JobsDequeued
	resp.Jobs.Processed = r.JobsProcessed
	resp.Jobs.Failed = r.JobsFailed
	resp.Jobs.Skipped = r.JobsSkipped
	resp.Jobs.Unresolved = r.JobsUnresolved
	resp.Tasks.Run = r.TasksRun
	resp.Tasks.Succeeded = r.TasksSucceeded
	resp.Tasks.Unsuccessful = r.TasksUnsuccessful
	resp.Tasks.Failed = r.TasksFailed
	resp.Tasks.NotDue = r.TasksNotDue
	resp.PhaseFailures = r.PhaseFailures
	if r.Fatal != nil {
		resp.Fatal = r.Fatal.Error()
	}
	return resp
}

type TickResponse struct {
	Trigger string              `json:"trigger"`
	Status  tracking.TickStatus `json:"status"`
	Report  ReportResponse      `json:"report"`
}

func newTickResponse(info *tracking.TickInfo) TickResponse {
	return TickResponse{Trigger: info.Trigger, Status: info.Status, Report: NewReportResponse(info.Report)}
}

type IntervalResponse struct {
	RecordCode string    `json:"record_code"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newIntervalResponse(r interval.Record) IntervalResponse {
	return IntervalResponse{RecordCode: r.Code, UpdatedAt: r.UpdatedAt}
}

type EventResponse struct {
	Name  string    `json:"name"`
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
}

func newEventResponse(e events.Event) EventResponse {
	resp := EventResponse{Name: e.Name, Time: e.Time}
	if e.Err != nil {
		resp.Error = e.Err.Error()
	}
	return resp
}
