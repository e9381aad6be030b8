package domain

import (
	"encoding/json"
	"time"
)

// StageRun represents a single execution of a stage for a course.
type StageRun struct {
	RunID       string      `json:"run_id"`
	CourseID    string      `json:"course_id"`
	Stage       Stage       `json:"stage"`
	PathwayID   string      `json:"pathway_id,omitempty"`
	Status      StageStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	FailedItems []string    `json:"failed_items,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Event represents a trace event recorded during a stage run.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
