package storage

import "time"

// Run represents one deployment of a project
type Run struct {
	ID          int        `json:"id"`
	UUID        string     `json:"uuid"`
	ProjectName string     `json:"project_name"`
	Status      string     `json:"status"` // "running", "success", "failed"
	FailedAt    string     `json:"failed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Duration    *string    `json:"duration,omitempty"`
}

// StageExecution represents execution of a single pipeline stage
type StageExecution struct {
	ID         int        `json:"id"`
	RunID      int        `json:"run_id"`
	Stage      string     `json:"stage"`
	Status     string     `json:"status"` // "running", "success", "failed"
	Kind       string     `json:"kind,omitempty"`
	Output     string     `json:"output"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   *string    `json:"duration,omitempty"`
}
