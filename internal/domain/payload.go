package domain

// StageStartedPayload is recorded when a stage run begins.
type StageStartedPayload struct {
	Stage        Stage      `json:"stage"`
	Complexity   Complexity `json:"complexity"`
	SessionCount int        `json:"session_count"`
	MaxRounds    int        `json:"max_rounds"`
	Concurrency  int        `json:"concurrency"`
}

// SessionStartedPayload is recorded when a negotiation session is launched.
type SessionStartedPayload struct {
	SessionID string      `json:"session_id"`
	Kind      SessionKind `json:"kind"`
	Owner     OwnerRef    `json:"owner"`
}

// RoundCompletedPayload is recorded after each negotiation round.
type RoundCompletedPayload struct {
	SessionID  string   `json:"session_id"`
	Round      int      `json:"round"`
	Severity   Severity `json:"severity"`
	DurationMs int64    `json:"duration_ms"`
}

// SessionTerminalPayload is recorded when a session reaches a terminal state.
type SessionTerminalPayload struct {
	SessionID string      `json:"session_id"`
	Owner     OwnerRef    `json:"owner"`
	Step      SessionStep `json:"step"`
	Rounds    int         `json:"rounds"`
	Error     string      `json:"error,omitempty"`
}

// StageCompletedPayload is recorded when a stage run finishes.
type StageCompletedPayload struct {
	Status      StageStatus `json:"status"`
	FailedItems []string    `json:"failed_items,omitempty"`
	DurationMs  int64       `json:"duration_ms"`
}
