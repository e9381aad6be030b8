// Package service implements the course generation pipeline: course and
// document management, negotiated stage runs, progress reporting, and
// pathway editing.
package service

import (
	"sync"
	"sync/atomic"

	"github.com/courseforge/courseforge/internal/adapter/llm"
	"github.com/courseforge/courseforge/internal/config"
	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/logging"
	"github.com/courseforge/courseforge/internal/negotiation"
	"github.com/courseforge/courseforge/internal/policy"
	"github.com/courseforge/courseforge/internal/store"
)

type Service struct {
	store        store.Store
	llmClient    llm.LLMClient
	policyEngine *policy.Engine
	registry     *negotiation.Registry
	config       *config.Config
	logger       *logging.Logger

	activeMu sync.Mutex
	active   map[string]*activeRun // courseID -> running stage
}

func New(store store.Store, llmClient llm.LLMClient, policyEngine *policy.Engine, registry *negotiation.Registry, cfg *config.Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:        store,
		llmClient:    llmClient,
		policyEngine: policyEngine,
		registry:     registry,
		config:       cfg,
		logger:       logger,
		active:       make(map[string]*activeRun),
	}
}

// Registry exposes the progress registry, for wiring the websocket listener.
func (s *Service) Registry() *negotiation.Registry {
	return s.registry
}

// activeRun tracks the sessions of one in-flight stage run so a cancel
// request can reach them.
type activeRun struct {
	runID    string
	stage    domain.Stage
	stageKey string

	cancelled atomic.Bool

	mu       sync.Mutex
	sessions []*negotiation.Session
}

// add registers a session with the run. A session added after the run was
// cancelled is cancelled immediately, so it stops before its first round.
func (r *activeRun) add(session *negotiation.Session) {
	r.mu.Lock()
	r.sessions = append(r.sessions, session)
	r.mu.Unlock()

	if r.cancelled.Load() {
		session.Cancel()
	}
}

// cancelAll asks every session to stop before its next round.
func (r *activeRun) cancelAll() {
	r.cancelled.Store(true)
	r.mu.Lock()
	sessions := append([]*negotiation.Session(nil), r.sessions...)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Cancel()
	}
}

// claimRun reserves the single run slot for a course. It returns false when
// a run is already active.
func (s *Service) claimRun(courseID string, run *activeRun) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if _, busy := s.active[courseID]; busy {
		return false
	}
	s.active[courseID] = run
	return true
}

func (s *Service) releaseRun(courseID string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	delete(s.active, courseID)
}

func (s *Service) activeRunFor(courseID string) *activeRun {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.active[courseID]
}
