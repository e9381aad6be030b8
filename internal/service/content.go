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

// runContentStage generates module contents for one pathway, one negotiation
// session per module. Existing contents of the pathway are cleared first so
// a rerun never leaves stale modules behind.
func (s *Service) runContentStage(params stageParams) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.StageRunTimeout)
	defer cancel()
	defer s.releaseRun(params.course.CourseID)

	startedAt := time.Now()
	run := params.run
	courseID := params.course.CourseID
	pathway := params.pathway
	publish := s.registry.Publisher(run.stageKey)
	logger := s.logger.WithCourse(courseID).WithStage(string(domain.StageContent))

	if err := s.store.DeleteModuleContentsByPathway(ctx, pathway.PathwayID); err != nil {
		logger.Error("failed to clear module contents", "run_id", run.runID, "error", err)
		s.finishStage(ctx, params, startedAt, 0, []string{fmt.Sprintf("persistence: %v", err)})
		return
	}

	sessions := make([]*negotiation.Session, len(pathway.Modules))
	for i := range sessions {
		module := pathway.Modules[i]
		sessionID := "sess_" + uuid.New().String()[:8]
		sess := negotiation.NewSession(negotiation.Config{
			SessionID: sessionID,
			Kind:      domain.SessionKindModule,
			Owner: domain.OwnerRef{
				PathwayID:   pathway.PathwayID,
				ModuleIndex: i,
				Title:       module.Title,
			},
			Proposer: agents.NewContentProposer(s.llmClient, s.config.LLMModel,
				params.course, pathway, i, params.docs),
			Critic:      agents.NewContentCritic(s.llmClient, s.config.LLMModel, module),
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

	// Persist on a fresh context: completed modules must land even when the
	// stage context is spent.
	persistCtx := context.Background()
	produced := 0
	var failedItems []string
	for i, artifact := range artifacts {
		title := pathway.Modules[i].Title
		if errs[i] != nil {
			failedItems = append(failedItems, moduleItem(i, title, errs[i]))
			continue
		}
		content, ok := artifact.(*domain.ModuleContent)
		if !ok {
			failedItems = append(failedItems, moduleItem(i, title, fmt.Errorf("unexpected artifact %T", artifact)))
			continue
		}

		content.ContentID = "mc_" + uuid.New().String()[:8]
		content.CreatedAt = time.Now()
		if err := s.store.UpsertModuleContent(persistCtx, content); err != nil {
			logger.Error("failed to persist module content",
				"run_id", run.runID, "module_index", i, "error", err)
			failedItems = append(failedItems, moduleItem(i, title, err))
			continue
		}
		produced++
	}

	s.finishStage(ctx, params, startedAt, produced, failedItems)
}
