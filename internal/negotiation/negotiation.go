// Package negotiation runs bounded proposer/critic debates. A session
// drives one artifact through propose→critique rounds until the acceptance
// policy accepts it or the round budget runs out, publishing a snapshot of
// itself after every state change. The registry aggregates those snapshots
// into per-stage progress.
package negotiation

import (
	"context"

	"github.com/courseforge/courseforge/internal/domain"
)

// Proposer drafts artifacts. When prev is non-nil the proposer revises the
// previous round's artifact against its critique rather than starting over.
type Proposer interface {
	Propose(ctx context.Context, prev *domain.NegotiationRound) (domain.Artifact, error)
}

// Critic grades artifacts. Implementations must fail safe: output that
// cannot be understood becomes a major_issues critique, not an acceptance.
type Critic interface {
	Critique(ctx context.Context, artifact domain.Artifact) (*domain.Critique, error)
}

// Decider maps a completed round's severity and the round budget to one of
// the Decision values. The policy engine satisfies this.
type Decider interface {
	Decide(ctx context.Context, severity string, round, maxRounds int) (string, error)
}

// Decisions a Decider can return.
const (
	DecisionAccept   = "accept"
	DecisionRevise   = "revise"
	DecisionFinalize = "finalize"
)
