package model

import "time"

// JobEvent is published after a job reaches a new status.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	AssetID    string    `json:"asset_id"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	Duration   string    `json:"duration"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SweepTrigger asks the worker to run a sweep over the pending backlog.
type SweepTrigger struct {
	Reason string `json:"reason,omitempty"`
	JobID  string `json:"job_id,omitempty"`
}
