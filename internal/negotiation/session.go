package negotiation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/logging"
)

const defaultMaxRounds = 5

// Config configures one negotiation session.
type Config struct {
	SessionID string
	Kind      domain.SessionKind
	Owner     domain.OwnerRef

	Proposer Proposer
	Critic   Critic
	Decider  Decider

	// MaxRounds bounds the debate; zero means the default of 5.
	MaxRounds int
	// Retries is the number of extra attempts after a failed proposer or
	// critic call.
	Retries int
	// CallTimeout bounds each individual proposer or critic call; zero
	// means no per-call bound beyond the run context.
	CallTimeout time.Duration

	Logger *logging.Logger

	// Publish is called with a fresh view after every state change.
	Publish func(view domain.SessionView)
	// OnRound is called after each completed propose→critique round.
	OnRound func(round domain.NegotiationRound)
}

// Session is one bounded proposer/critic debate over a single artifact.
// All exported methods are safe for concurrent use.
type Session struct {
	cfg    Config
	logger *logging.Logger

	cancelled atomic.Bool

	mu           sync.RWMutex
	step         domain.SessionStep
	round        int
	rounds       []domain.NegotiationRound
	lastSeverity domain.Severity
	roundSeconds float64
	terminal     bool
	errMsg       string
	startedAt    time.Time
	updatedAt    time.Time
}

// NewSession creates a session in the starting step. Nothing runs until Run
// is called.
func NewSession(cfg Config) *Session {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := time.Now()
	return &Session{
		cfg:       cfg,
		logger:    logger.WithSession(cfg.SessionID),
		step:      domain.SessionStepStarting,
		startedAt: now,
		updatedAt: now,
	}
}

// Cancel asks the session to stop before its next round. The round in
// flight, if any, completes; Run then returns domain.ErrCancelled.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// View returns a point-in-time snapshot of the session.
func (s *Session) View() domain.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() domain.SessionView {
	view := domain.SessionView{
		SessionID:    s.cfg.SessionID,
		Kind:         s.cfg.Kind,
		Owner:        s.cfg.Owner,
		Step:         s.step,
		Round:        s.round,
		MaxRounds:    s.cfg.MaxRounds,
		RoundsDone:   len(s.rounds),
		LastSeverity: s.lastSeverity,
		Terminal:     s.terminal,
		StartedAt:    s.startedAt,
		UpdatedAt:    s.updatedAt,
		Error:        s.errMsg,
	}
	if done := len(s.rounds); done > 0 {
		view.AvgRoundSeconds = s.roundSeconds / float64(done)
	}
	return view
}

// update applies fn under the write lock, then publishes the new view.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	s.updatedAt = time.Now()
	view := s.viewLocked()
	s.mu.Unlock()

	if s.cfg.Publish != nil {
		s.cfg.Publish(view)
	}
}

// Run drives the debate to a terminal state. It returns the accepted
// artifact, or on budget exhaustion the best artifact seen so far; running
// out of rounds is a normal outcome, not an error. Run returns an error
// only when the session produced nothing usable: a capability failure,
// cancellation, or a spent context.
func (s *Session) Run(ctx context.Context) (domain.Artifact, error) {
	var prev *domain.NegotiationRound

	for round := 1; round <= s.cfg.MaxRounds; round++ {
		if err := s.interrupted(ctx); err != nil {
			s.fail(err)
			return nil, err
		}

		roundStart := time.Now()
		s.update(func() {
			s.round = round
			s.step = domain.SessionStepProposer
		})

		artifact, err := s.propose(ctx, prev)
		if err != nil {
			s.fail(err)
			return nil, err
		}

		s.update(func() { s.step = domain.SessionStepCritic })

		critique, err := s.critique(ctx, artifact)
		if err != nil {
			s.fail(err)
			return nil, err
		}

		completed := domain.NegotiationRound{
			RoundNumber: round,
			Artifact:    artifact,
			Critique:    *critique,
			StartedAt:   roundStart,
			CompletedAt: time.Now(),
		}
		s.update(func() {
			s.rounds = append(s.rounds, completed)
			s.lastSeverity = critique.Severity
			s.roundSeconds += completed.Duration().Seconds()
		})
		if s.cfg.OnRound != nil {
			s.cfg.OnRound(completed)
		}

		s.logger.Info("round completed",
			"round", round,
			"severity", critique.Severity,
			"duration_ms", completed.Duration().Milliseconds())

		switch s.decide(ctx, critique.Severity, round) {
		case DecisionAccept:
			s.finish(domain.SessionStepAccepted)
			return artifact, nil
		case DecisionFinalize:
			best := s.best()
			s.finish(domain.SessionStepCompleted)
			return best, nil
		}

		prev = &completed
	}

	// The decider should finalize on the last round; if a custom policy
	// keeps saying revise, exhaustion still ends the debate.
	best := s.best()
	s.finish(domain.SessionStepCompleted)
	return best, nil
}

// interrupted reports why the session must stop before its next round.
func (s *Session) interrupted(ctx context.Context) error {
	if s.cancelled.Load() {
		return domain.ErrCancelled
	}
	return ctx.Err()
}

// propose calls the proposer with retries and a per-call timeout.
func (s *Session) propose(ctx context.Context, prev *domain.NegotiationRound) (domain.Artifact, error) {
	var artifact domain.Artifact
	err := s.withRetries(ctx, "propose", func(callCtx context.Context) error {
		var err error
		artifact, err = s.cfg.Proposer.Propose(callCtx, prev)
		return err
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// critique calls the critic with retries and a per-call timeout.
func (s *Session) critique(ctx context.Context, artifact domain.Artifact) (*domain.Critique, error) {
	var critique *domain.Critique
	err := s.withRetries(ctx, "critique", func(callCtx context.Context) error {
		var err error
		critique, err = s.cfg.Critic.Critique(callCtx, artifact)
		return err
	})
	if err != nil {
		return nil, err
	}
	return critique, nil
}

// withRetries runs one capability call up to Retries+1 times. A spent run
// context short-circuits remaining attempts. The terminal error is always a
// CapabilityError wrapping the last attempt's failure.
func (s *Session) withRetries(ctx context.Context, op string, call func(ctx context.Context) error) error {
	maxAttempts := s.cfg.Retries + 1
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if s.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		}
		err := call(callCtx)
		if cancel != nil {
			cancel()
		}

		attempts = attempt
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("capability call failed", "op", op, "attempt", attempt, "error", err)
	}

	if attempts == 0 {
		attempts = 1
	}
	return &domain.CapabilityError{Op: op, Attempts: attempts, Err: lastErr}
}

// decide consults the decider. A decider failure never accepts: with budget
// left the draft goes another round, otherwise the debate finalizes.
func (s *Session) decide(ctx context.Context, severity domain.Severity, round int) string {
	decision, err := s.cfg.Decider.Decide(ctx, string(severity), round, s.cfg.MaxRounds)
	if err != nil {
		s.logger.Warn("decider failed, not accepting", "round", round, "error", err)
		if round >= s.cfg.MaxRounds {
			return DecisionFinalize
		}
		return DecisionRevise
	}
	return decision
}

// best returns the strongest artifact recorded so far: highest severity
// rank, latest round winning ties. Returns nil only when no round completed.
func (s *Session) best() domain.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best domain.Artifact
	bestRank := -2
	for i := range s.rounds {
		if rank := s.rounds[i].Critique.Severity.Rank(); rank >= bestRank {
			bestRank = rank
			best = s.rounds[i].Artifact
		}
	}
	return best
}

func (s *Session) finish(step domain.SessionStep) {
	s.update(func() {
		s.step = step
		s.terminal = true
	})
}

func (s *Session) fail(err error) {
	step := domain.SessionStepFailed
	if errors.Is(err, context.DeadlineExceeded) {
		step = domain.SessionStepTimedOut
	}
	s.update(func() {
		s.step = step
		s.terminal = true
		s.errMsg = err.Error()
	})
	s.logger.Warn("session ended without artifact", "step", step, "error", err)
}
