package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// Job is a persisted scheduled task. Task is the prompt handed to the
// agent loop when the trigger fires.
type Job struct {
	ID          string `json:"id"`
	Task        string `json:"task"`
	Cron        string `json:"cron"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	CreatedAt   string `json:"created_at"`
	LastRun     string `json:"last_run,omitempty"`
}

// NewJob creates an enabled job with a generated id.
func NewJob(task, cronExpr, description string) Job {
	return Job{
		ID:          uuid.New().String()[:8],
		Task:        task,
		Cron:        cronExpr,
		Description: description,
		Enabled:     true,
		CreatedAt:   time.Now().Format(time.RFC3339),
	}
}

// PendingJob is a proposed schedule awaiting user confirmation. It
// lives only in memory; a restart discards it.
type PendingJob struct {
	ID          string
	Task        string
	Cron        string
	Description string
	MessageID   int
}

// NewPendingJob creates a pending job with a generated id.
func NewPendingJob(task, cronExpr, description string) PendingJob {
	return PendingJob{
		ID:          uuid.New().String()[:8],
		Task:        task,
		Cron:        cronExpr,
		Description: description,
	}
}

// ToJob converts a confirmed pending job into a persistent one,
// keeping the id the user saw in the confirmation prompt.
func (p PendingJob) ToJob() Job {
	return Job{
		ID:          p.ID,
		Task:        p.Task,
		Cron:        p.Cron,
		Description: p.Description,
		Enabled:     true,
		CreatedAt:   time.Now().Format(time.RFC3339),
	}
}
