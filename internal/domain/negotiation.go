package domain

import "time"

// NegotiationRound is one recorded propose→critique cycle. Rounds are
// immutable once recorded and form an append-only ordered history.
type NegotiationRound struct {
	RoundNumber int       `json:"round_number"`
	Artifact    Artifact  `json:"artifact"`
	Critique    Critique  `json:"critique"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns the wall-clock duration of the round.
func (r *NegotiationRound) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
