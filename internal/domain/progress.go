package domain

import "time"

// OwnerRef identifies the artifact a negotiation session is producing.
// Pathway sessions set PathwayIndex; module sessions set PathwayID,
// ModuleIndex, and Title.
type OwnerRef struct {
	PathwayIndex int    `json:"pathway_index,omitempty"`
	PathwayID    string `json:"pathway_id,omitempty"`
	ModuleIndex  int    `json:"module_index,omitempty"`
	Title        string `json:"title,omitempty"`
}

// SessionView is the immutable published snapshot of a negotiation session.
// Views are value copies; readers never observe partial state.
type SessionView struct {
	SessionID       string      `json:"session_id"`
	Kind            SessionKind `json:"kind"`
	Owner           OwnerRef    `json:"owner"`
	Step            SessionStep `json:"step"`
	Round           int         `json:"round"`
	MaxRounds       int         `json:"max_rounds"`
	RoundsDone      int         `json:"rounds_done"`
	LastSeverity    Severity    `json:"last_severity,omitempty"`
	Terminal        bool        `json:"terminal"`
	AvgRoundSeconds float64     `json:"avg_round_seconds,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Error           string      `json:"error,omitempty"`
}

// Completed reports whether the session ended with a usable final artifact,
// either by acceptance or by exhausting its round budget.
func (v SessionView) Completed() bool {
	return v.Terminal && (v.Step == SessionStepAccepted || v.Step == SessionStepCompleted)
}

// Failed reports whether the session ended without a final artifact.
func (v SessionView) Failed() bool {
	return v.Terminal && (v.Step == SessionStepFailed || v.Step == SessionStepTimedOut)
}

// ModuleProgressDetail is the per-module progress row reported for the
// content stage.
type ModuleProgressDetail struct {
	ModuleIndex int          `json:"module_index"`
	Title       string       `json:"title"`
	Status      ModuleStatus `json:"status"`
	Round       int          `json:"round,omitempty"`
	MaxRounds   int          `json:"max_rounds,omitempty"`
}

// StageProgressSnapshot is the aggregate progress view for one stage of one
// course, rebuilt on demand from published session views. The four counts
// always sum to Total.
type StageProgressSnapshot struct {
	CourseID                  string                 `json:"course_id"`
	Stage                     Stage                  `json:"stage"`
	Total                     int                    `json:"total"`
	Pending                   int                    `json:"pending"`
	Processing                int                    `json:"processing"`
	Completed                 int                    `json:"completed"`
	Failed                    int                    `json:"failed"`
	ElapsedSeconds            float64                `json:"elapsed_seconds"`
	EstimatedRemainingSeconds float64                `json:"estimated_remaining_seconds"`
	Modules                   []ModuleProgressDetail `json:"modules,omitempty"`
}
