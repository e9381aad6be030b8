package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/courseforge/internal/agents"
	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/negotiation"
)

// runPathwayStage drives the pathway negotiation sessions for one run and
// replaces the course's pathway set with the surviving drafts.
func (s *Service) runPathwayStage(params stageParams) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.StageRunTimeout)
	defer cancel()
	defer s.releaseRun(params.course.CourseID)

	startedAt := time.Now()
	run := params.run
	courseID := params.course.CourseID
	publish := s.registry.Publisher(run.stageKey)
	logger := s.logger.WithCourse(courseID).WithStage(string(domain.StagePathways))

	sessions := make([]*negotiation.Session, params.pathwayCount)
	for i := range sessions {
		sessionID := "sess_" + uuid.New().String()[:8]
		sess := negotiation.NewSession(negotiation.Config{
			SessionID: sessionID,
			Kind:      domain.SessionKindPathway,
			Owner:     domain.OwnerRef{PathwayIndex: i},
			Proposer: agents.NewPathwayProposer(s.llmClient, s.config.LLMModel,
				params.course, params.docs, params.complexity, params.instructions),
			Critic:      agents.NewPathwayCritic(s.llmClient, s.config.LLMModel, params.complexity),
			Decider:     s.policyEngine,
			MaxRounds:   params.maxRounds,
			Retries:     s.config.ProposeRetries,
			CallTimeout: s.config.LLMTimeout,
			Logger:      logger,
			Publish:     publish,
			OnRound: func(round domain.NegotiationRound) {
				s.mustRecordEvent(ctx, run.runID, domain.EventTypeRoundCompleted, domain.RoundCompletedPayload{
					SessionID:  sessionID,
					Round:      round.RoundNumber,
					Severity:   round.Critique.Severity,
					DurationMs: round.Duration().Milliseconds(),
				})
			},
		})
		run.add(sess)
		publish(sess.View())
		sessions[i] = sess
	}

	artifacts, errs := s.runSessions(ctx, run, sessions, params.concurrency)

	var pathways []*domain.Pathway
	var failedItems []string
	for i, artifact := range artifacts {
		if errs[i] != nil {
			failedItems = append(failedItems, fmt.Sprintf("pathway %d: %v", i+1, errs[i]))
			continue
		}
		pathway, ok := artifact.(*domain.Pathway)
		if !ok {
			failedItems = append(failedItems, fmt.Sprintf("pathway %d: unexpected artifact %T", i+1, artifact))
			continue
		}
		pathways = append(pathways, pathway)
	}

	// A cancelled run leaves the previously persisted pathway set alone.
	if run.cancelled.Load() {
		pathways = nil
	}

	produced := 0
	if len(pathways) > 0 {
		if err := s.replacePathways(courseID, pathways); err != nil {
			logger.Error("failed to persist pathways", "run_id", run.runID, "error", err)
			failedItems = append(failedItems, fmt.Sprintf("persistence: %v", err))
		} else {
			produced = len(pathways)
		}
	}

	s.finishStage(ctx, params, startedAt, produced, failedItems)
}

// replacePathways swaps the course's pathway set for a freshly negotiated
// one. Module contents hanging off the old pathways go with them.
func (s *Service) replacePathways(courseID string, pathways []*domain.Pathway) error {
	ctx := context.Background()

	old, err := s.store.ListPathways(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to list pathways: %w", err)
	}
	for _, pathway := range old {
		if err := s.store.DeleteModuleContentsByPathway(ctx, pathway.PathwayID); err != nil {
			return fmt.Errorf("failed to delete module contents: %w", err)
		}
	}
	if err := s.store.DeletePathwaysByCourse(ctx, courseID); err != nil {
		return fmt.Errorf("failed to delete pathways: %w", err)
	}

	now := time.Now()
	for _, pathway := range pathways {
		pathway.PathwayID = "pw_" + uuid.New().String()[:8]
		pathway.CreatedAt = now
		pathway.UpdatedAt = now
		if err := s.store.CreatePathway(ctx, pathway); err != nil {
			return fmt.Errorf("failed to create pathway: %w", err)
		}
	}
	return nil
}

// GetPathway returns one pathway of a course, or nil when it does not exist.
func (s *Service) GetPathway(ctx context.Context, courseID, pathwayID string) (*domain.Pathway, error) {
	pathway, err := s.store.GetPathway(ctx, pathwayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pathway: %w", err)
	}
	if pathway == nil || pathway.CourseID != courseID {
		return nil, nil
	}
	return pathway, nil
}

// ListPathways returns all pathways of a course.
func (s *Service) ListPathways(ctx context.Context, courseID string) ([]domain.Pathway, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	pathways, err := s.store.ListPathways(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pathways: %w", err)
	}
	return pathways, nil
}

// ReorderModules permutes the modules of a persisted pathway. The new order
// must reference every existing module index exactly once. Module contents
// are not touched; a content rerun regenerates them against the new order.
func (s *Service) ReorderModules(ctx context.Context, courseID, pathwayID string, newOrder []int) (*domain.Pathway, error) {
	pathway, err := s.requirePathway(ctx, courseID, pathwayID)
	if err != nil {
		return nil, err
	}

	if err := pathway.ReorderModules(newOrder); err != nil {
		return nil, err
	}
	if err := s.savePathwayModules(ctx, pathway); err != nil {
		return nil, err
	}

	s.logger.Info("modules reordered", "course_id", courseID, "pathway_id", pathwayID)
	return pathway, nil
}

// AddModule appends a module descriptor to a persisted pathway.
func (s *Service) AddModule(ctx context.Context, courseID, pathwayID string, req domain.ModuleRequest) (*domain.Pathway, error) {
	pathway, err := s.requirePathway(ctx, courseID, pathwayID)
	if err != nil {
		return nil, err
	}

	module := req.Module()
	if err := module.Validate(); err != nil {
		return nil, err
	}
	pathway.Modules = append(pathway.Modules, module)
	if err := s.savePathwayModules(ctx, pathway); err != nil {
		return nil, err
	}

	s.logger.Info("module added", "course_id", courseID, "pathway_id", pathwayID, "module_index", len(pathway.Modules)-1)
	return pathway, nil
}

// UpdateModule replaces one module descriptor of a persisted pathway.
func (s *Service) UpdateModule(ctx context.Context, courseID, pathwayID string, index int, req domain.ModuleRequest) (*domain.Pathway, error) {
	pathway, err := s.requirePathway(ctx, courseID, pathwayID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pathway.Modules) {
		return nil, &domain.ValidationError{Field: "module_index", Reason: "out of range"}
	}

	module := req.Module()
	if err := module.Validate(); err != nil {
		return nil, err
	}
	pathway.Modules[index] = module
	if err := s.savePathwayModules(ctx, pathway); err != nil {
		return nil, err
	}

	s.logger.Info("module updated", "course_id", courseID, "pathway_id", pathwayID, "module_index", index)
	return pathway, nil
}

// DeleteModule removes one module descriptor from a persisted pathway. The
// last remaining module cannot be deleted.
func (s *Service) DeleteModule(ctx context.Context, courseID, pathwayID string, index int) (*domain.Pathway, error) {
	pathway, err := s.requirePathway(ctx, courseID, pathwayID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pathway.Modules) {
		return nil, &domain.ValidationError{Field: "module_index", Reason: "out of range"}
	}
	if len(pathway.Modules) == 1 {
		return nil, &domain.ValidationError{Field: "module_index", Reason: "a pathway must keep at least one module"}
	}

	pathway.Modules = append(pathway.Modules[:index], pathway.Modules[index+1:]...)
	if err := s.savePathwayModules(ctx, pathway); err != nil {
		return nil, err
	}

	s.logger.Info("module deleted", "course_id", courseID, "pathway_id", pathwayID, "module_index", index)
	return pathway, nil
}

func (s *Service) requirePathway(ctx context.Context, courseID, pathwayID string) (*domain.Pathway, error) {
	pathway, err := s.store.GetPathway(ctx, pathwayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pathway: %w", err)
	}
	if pathway == nil || pathway.CourseID != courseID {
		return nil, fmt.Errorf("pathway %s: %w", pathwayID, ErrNotFound)
	}
	return pathway, nil
}

func (s *Service) savePathwayModules(ctx context.Context, pathway *domain.Pathway) error {
	if err := s.store.UpdatePathwayModules(ctx, pathway.PathwayID, pathway.Modules); err != nil {
		return fmt.Errorf("failed to update pathway modules: %w", err)
	}
	pathway.UpdatedAt = time.Now()
	return nil
}
