package models

import "time"

// JobStatus is the lifecycle state of an upload analysis job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// Terminal reports whether no further transition can happen.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// Job is a snapshot of one asynchronous analysis.
type Job struct {
	JobID       string          `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Result      *AnalysisResult `json:"result"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
