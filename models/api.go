package models

import (
	"sync"
	"time"
)

// RunRequest is the payload for POST /api/v1/batch/run.
type RunRequest struct {
	// Document selects the executor variant. Required.
	Document DocumentType `json:"document" binding:"required"`

	// StartDate and EndDate bound the query where the document type takes a
	// range. Format: YYYYMMDD for payment, YYYYMM for freight. Defaults are
	// per-type (today for payment, previous month for freight).
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// RunResponse is the immediate response for POST /api/v1/batch/run.
type RunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RunStatusResponse is the response for GET /api/v1/batch/:id.
type RunStatusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Report *BatchReport `json:"report,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunJob tracks an in-progress batch run. The run goroutine writes the
// terminal state while status polls read it, so both go through the
// accessors.
type RunJob struct {
	ID        string
	CreatedAt int64 // unix timestamp

	mu     sync.Mutex
	status string // "processing", "completed", "partial", "failed"
	report *BatchReport
	err    *ErrorDetail
}

// NewRunJob returns a job in the processing state.
func NewRunJob(id string) *RunJob {
	return &RunJob{ID: id, CreatedAt: time.Now().Unix(), status: "processing"}
}

// Finish records the run's terminal state.
func (j *RunJob) Finish(status string, report *BatchReport, errDetail *ErrorDetail) {
	j.mu.Lock()
	j.status = status
	j.report = report
	j.err = errDetail
	j.mu.Unlock()
}

// State returns the job's current status, report, and error.
func (j *RunJob) State() (string, *BatchReport, *ErrorDetail) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.report, j.err
}

// ErrorResponse is the generic error envelope for rejected requests.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "busy"
	Uptime  string `json:"uptime"`
	Running int    `json:"running_batches"`
	Version string `json:"version"`
}
