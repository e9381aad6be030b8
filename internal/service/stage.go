package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/negotiation"
)

// maxPathwayVariants caps how many candidate pathways one request may
// negotiate, whatever the configured default.
const maxPathwayVariants = 5

// stageParams carries the inputs of one stage run, resolved and validated
// before the run goroutine starts.
type stageParams struct {
	run    *activeRun
	course *domain.Course
	docs   []domain.AnalyzedDocument
	// pathway is set for content runs only.
	pathway *domain.Pathway

	complexity   domain.Complexity
	instructions string
	pathwayCount int
	maxRounds    int
	concurrency  int
}

// StartStage validates the request, claims the course's single run slot,
// and launches the stage in the background. The response only acknowledges
// the start; progress and results are polled separately.
func (s *Service) StartStage(ctx context.Context, courseID string, stage domain.Stage, req domain.StartStageRequest) (*domain.StartStageResponse, error) {
	if !stage.Startable() {
		return nil, &domain.ValidationError{Field: "stage", Reason: "must be pathways or content"}
	}

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	complexity := req.Complexity
	if complexity == "" {
		complexity = course.Complexity
	}
	if !complexity.Valid() {
		return nil, &domain.ValidationError{Field: "complexity", Reason: "must be beginner, intermediate, or advanced"}
	}

	docs, err := s.store.ListDocuments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, &domain.ValidationError{Field: "documents", Reason: "no documents ingested for this course"}
	}

	params := stageParams{
		course:       course,
		docs:         docs,
		complexity:   complexity,
		instructions: req.AdditionalInstructions,
		pathwayCount: s.resolvePathwayCount(req.PathwayCount),
		maxRounds:    s.resolveMaxRounds(req.MaxRounds),
		concurrency:  s.config.StageConcurrency,
	}

	if stage == domain.StageContent {
		pathway, err := s.resolveContentPathway(ctx, courseID, req.PathwayID)
		if err != nil {
			return nil, err
		}
		params.pathway = pathway
	}

	run := &activeRun{stage: stage, stageKey: negotiation.StageKey(courseID, stage)}
	if !s.claimRun(courseID, run) {
		return nil, ErrStageActive
	}

	runID := "run_" + uuid.New().String()[:8]
	run.runID = runID
	params.run = run

	stageRun := &domain.StageRun{
		RunID:     runID,
		CourseID:  courseID,
		Stage:     stage,
		Status:    domain.StageStatusInProgress,
		StartedAt: time.Now(),
	}
	if params.pathway != nil {
		stageRun.PathwayID = params.pathway.PathwayID
	}
	if err := s.store.CreateStageRun(ctx, stageRun); err != nil {
		s.releaseRun(courseID)
		return nil, fmt.Errorf("failed to create stage run: %w", err)
	}
	if err := s.store.UpdateCourseStatus(ctx, courseID, stage, domain.StageStatusInProgress); err != nil {
		s.logger.Error("failed to update course status", "course_id", courseID, "error", err)
	}

	sessionCount := params.pathwayCount
	if stage == domain.StageContent {
		sessionCount = len(params.pathway.Modules)
	}
	s.mustRecordEvent(ctx, runID, domain.EventTypeStageStarted, domain.StageStartedPayload{
		Stage:        stage,
		Complexity:   complexity,
		SessionCount: sessionCount,
		MaxRounds:    params.maxRounds,
		Concurrency:  params.concurrency,
	})

	s.registry.StartStage(run.stageKey, courseID, stage)

	switch stage {
	case domain.StagePathways:
		go s.runPathwayStage(params)
	case domain.StageContent:
		go s.runContentStage(params)
	}

	s.logger.Info("stage started",
		"course_id", courseID,
		"run_id", runID,
		"stage", stage,
		"sessions", sessionCount,
		"max_rounds", params.maxRounds)

	return &domain.StartStageResponse{RunID: runID, CourseID: courseID, Stage: stage}, nil
}

// resolveContentPathway picks the pathway a content run targets. An explicit
// ID wins; otherwise the course must have exactly one pathway.
func (s *Service) resolveContentPathway(ctx context.Context, courseID, pathwayID string) (*domain.Pathway, error) {
	if pathwayID != "" {
		pathway, err := s.store.GetPathway(ctx, pathwayID)
		if err != nil {
			return nil, fmt.Errorf("failed to get pathway: %w", err)
		}
		if pathway == nil || pathway.CourseID != courseID {
			return nil, fmt.Errorf("pathway %s: %w", pathwayID, ErrNotFound)
		}
		return pathway, nil
	}

	pathways, err := s.store.ListPathways(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pathways: %w", err)
	}
	switch len(pathways) {
	case 0:
		return nil, &domain.ValidationError{Field: "pathway_id", Reason: "no pathways exist; run the pathway stage first"}
	case 1:
		return &pathways[0], nil
	default:
		return nil, &domain.ValidationError{Field: "pathway_id", Reason: "required when the course has more than one pathway"}
	}
}

func (s *Service) resolveMaxRounds(requested int) int {
	if requested <= 0 || requested > s.config.MaxRounds {
		return s.config.MaxRounds
	}
	return requested
}

func (s *Service) resolvePathwayCount(requested int) int {
	count := requested
	if count <= 0 {
		count = s.config.PathwayCount
	}
	if count < 1 {
		count = 1
	}
	if count > maxPathwayVariants {
		count = maxPathwayVariants
	}
	return count
}

// CancelStage asks the course's running stage to stop between rounds. With
// no live run it settles persisted state instead: terminal runs are left
// alone, an in-progress run from a dead process is marked cancelled.
func (s *Service) CancelStage(ctx context.Context, courseID string) error {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	if run := s.activeRunFor(courseID); run != nil {
		run.cancelAll()
		s.logger.Info("stage cancel requested", "course_id", courseID, "run_id", run.runID)
		return nil
	}

	stageRun, err := s.store.GetLatestStageRun(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to get stage run: %w", err)
	}
	if stageRun == nil {
		return fmt.Errorf("no stage runs for course %s: %w", courseID, ErrNotFound)
	}
	if stageRun.Status.IsTerminal() {
		return nil
	}

	if err := s.store.CompleteStageRun(ctx, stageRun.RunID, domain.StageStatusCancelled, "cancelled by user", nil); err != nil {
		return fmt.Errorf("failed to cancel stage run: %w", err)
	}
	if err := s.store.UpdateCourseStatus(ctx, courseID, stageRun.Stage, domain.StageStatusCancelled); err != nil {
		s.logger.Error("failed to update course status", "course_id", courseID, "error", err)
	}
	s.mustRecordEvent(ctx, stageRun.RunID, domain.EventTypeStageCancelled, map[string]interface{}{
		"reason": "cancelled by user",
	})
	return nil
}

// GetStatus reports the coarse stage/status pair for a course.
func (s *Service) GetStatus(ctx context.Context, courseID string) (*domain.StatusResponse, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	run, err := s.store.GetLatestStageRun(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage run: %w", err)
	}
	if run != nil {
		return &domain.StatusResponse{CourseID: courseID, Stage: run.Stage, Status: run.Status}, nil
	}
	return &domain.StatusResponse{CourseID: courseID, Stage: course.Stage, Status: course.Status}, nil
}

// GetProgress returns the live progress snapshot of the latest stage run,
// falling back to a reconstruction from persisted state when no live run
// holds the registry key (after a restart).
func (s *Service) GetProgress(ctx context.Context, courseID string) (*domain.StageProgressSnapshot, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	run, err := s.store.GetLatestStageRun(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("no stage runs for course %s: %w", courseID, ErrNotFound)
	}

	if snap, ok := s.registry.Snapshot(negotiation.StageKey(courseID, run.Stage)); ok {
		return &snap, nil
	}
	return s.reconstructProgress(ctx, run)
}

// reconstructProgress rebuilds a coarse snapshot from persisted artifacts.
// Round-level detail is gone with the process that ran the stage.
func (s *Service) reconstructProgress(ctx context.Context, run *domain.StageRun) (*domain.StageProgressSnapshot, error) {
	snap := &domain.StageProgressSnapshot{
		CourseID: run.CourseID,
		Stage:    run.Stage,
	}
	if run.CompletedAt != nil {
		snap.ElapsedSeconds = run.CompletedAt.Sub(run.StartedAt).Seconds()
	} else {
		snap.ElapsedSeconds = time.Since(run.StartedAt).Seconds()
	}

	switch run.Stage {
	case domain.StagePathways:
		pathways, err := s.store.ListPathways(ctx, run.CourseID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pathways: %w", err)
		}
		snap.Completed = len(pathways)
		snap.Failed = len(run.FailedItems)
		snap.Total = snap.Completed + snap.Failed

	case domain.StageContent:
		contents, err := s.store.ListModuleContents(ctx, run.PathwayID)
		if err != nil {
			return nil, fmt.Errorf("failed to list module contents: %w", err)
		}
		done := make(map[int]bool, len(contents))
		for _, content := range contents {
			done[content.ModuleIndex] = true
		}

		pathway, err := s.store.GetPathway(ctx, run.PathwayID)
		if err != nil {
			return nil, fmt.Errorf("failed to get pathway: %w", err)
		}
		if pathway == nil {
			snap.Completed = len(contents)
			snap.Failed = len(run.FailedItems)
			snap.Total = snap.Completed + snap.Failed
			break
		}

		snap.Total = len(pathway.Modules)
		for i, module := range pathway.Modules {
			detail := domain.ModuleProgressDetail{ModuleIndex: i, Title: module.Title}
			switch {
			case done[i]:
				detail.Status = domain.ModuleStatusCompleted
				snap.Completed++
			case failedItemForModule(run.FailedItems, i):
				detail.Status = domain.ModuleStatusFailed
				snap.Failed++
			default:
				detail.Status = domain.ModuleStatusPending
				snap.Pending++
			}
			snap.Modules = append(snap.Modules, detail)
		}
	}

	return snap, nil
}

// GetResult returns the final artifacts of the latest stage run. Results
// exist only once the run completed, fully or partially.
func (s *Service) GetResult(ctx context.Context, courseID string) (*domain.StageResult, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	run, err := s.store.GetLatestStageRun(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("no stage runs for course %s: %w", courseID, ErrNotFound)
	}
	if !run.Status.Succeeded() {
		return nil, fmt.Errorf("run %s is %s: %w", run.RunID, run.Status, ErrResultNotReady)
	}

	result := &domain.StageResult{
		RunID:       run.RunID,
		CourseID:    courseID,
		Stage:       run.Stage,
		Status:      run.Status,
		FailedItems: run.FailedItems,
	}

	switch run.Stage {
	case domain.StagePathways:
		pathways, err := s.store.ListPathways(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pathways: %w", err)
		}
		result.Pathways = pathways

	case domain.StageContent:
		pathway, err := s.store.GetPathway(ctx, run.PathwayID)
		if err != nil {
			return nil, fmt.Errorf("failed to get pathway: %w", err)
		}
		contents, err := s.store.ListModuleContents(ctx, run.PathwayID)
		if err != nil {
			return nil, fmt.Errorf("failed to list module contents: %w", err)
		}
		result.Pathway = pathway
		result.Contents = contents
	}

	return result, nil
}

// GetCourseEvents returns the trace events of the latest stage run.
func (s *Service) GetCourseEvents(ctx context.Context, courseID string, afterTs int64, limit int) (string, []domain.Event, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return "", nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	run, err := s.store.GetLatestStageRun(ctx, courseID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get stage run: %w", err)
	}
	if run == nil {
		return "", nil, fmt.Errorf("no stage runs for course %s: %w", courseID, ErrNotFound)
	}

	if limit <= 0 || limit > 500 {
		limit = 200
	}
	events, err := s.store.GetEvents(ctx, run.RunID, afterTs, limit)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get events: %w", err)
	}
	return run.RunID, events, nil
}

// runSessions executes the run's sessions with bounded concurrency and
// waits for all of them. Results and errors are aligned with the input.
func (s *Service) runSessions(ctx context.Context, run *activeRun, sessions []*negotiation.Session, concurrency int) ([]domain.Artifact, []error) {
	if concurrency < 1 {
		concurrency = 1
	}

	artifacts := make([]domain.Artifact, len(sessions))
	errs := make([]error, len(sessions))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, session := range sessions {
		wg.Add(1)
		go func(i int, session *negotiation.Session) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			view := session.View()
			s.mustRecordEvent(ctx, run.runID, domain.EventTypeSessionStarted, domain.SessionStartedPayload{
				SessionID: view.SessionID,
				Kind:      view.Kind,
				Owner:     view.Owner,
			})

			artifacts[i], errs[i] = session.Run(ctx)

			view = session.View()
			payload := domain.SessionTerminalPayload{
				SessionID: view.SessionID,
				Owner:     view.Owner,
				Step:      view.Step,
				Rounds:    view.RoundsDone,
				Error:     view.Error,
			}
			switch view.Step {
			case domain.SessionStepAccepted:
				s.mustRecordEvent(ctx, run.runID, domain.EventTypeSessionAccepted, payload)
			case domain.SessionStepCompleted:
				s.mustRecordEvent(ctx, run.runID, domain.EventTypeSessionExhausted, payload)
			default:
				s.mustRecordEvent(ctx, run.runID, domain.EventTypeSessionFailed, payload)
			}
		}(i, session)
	}

	wg.Wait()
	return artifacts, errs
}

// finishStage persists the terminal state of a stage run. It runs on a
// fresh context: completion must land even when the stage context is spent.
func (s *Service) finishStage(stageCtx context.Context, params stageParams, startedAt time.Time, produced int, failedItems []string) {
	ctx := context.Background()
	run := params.run
	courseID := params.course.CourseID

	var status domain.StageStatus
	var errMsg string
	switch {
	case run.cancelled.Load():
		status = domain.StageStatusCancelled
		errMsg = "cancelled by user"
	case len(failedItems) == 0:
		status = domain.StageStatusCompleted
	case produced > 0:
		status = domain.StageStatusCompletedWithErrors
	case stageCtx.Err() == context.DeadlineExceeded:
		status = domain.StageStatusTimedOut
		errMsg = "stage run timed out"
	default:
		status = domain.StageStatusFailed
		errMsg = fmt.Sprintf("all %d sessions failed", len(failedItems))
	}

	if err := s.store.CompleteStageRun(ctx, run.runID, status, errMsg, failedItems); err != nil {
		s.logger.Error("failed to complete stage run", "run_id", run.runID, "error", err)
	}
	if err := s.store.UpdateCourseStatus(ctx, courseID, run.stage, status); err != nil {
		s.logger.Error("failed to update course status", "course_id", courseID, "error", err)
	}

	duration := time.Since(startedAt)
	if status == domain.StageStatusCancelled {
		s.mustRecordEvent(ctx, run.runID, domain.EventTypeStageCancelled, domain.StageCompletedPayload{
			Status:      status,
			FailedItems: failedItems,
			DurationMs:  duration.Milliseconds(),
		})
	} else {
		s.mustRecordEvent(ctx, run.runID, domain.EventTypeStageCompleted, domain.StageCompletedPayload{
			Status:      status,
			FailedItems: failedItems,
			DurationMs:  duration.Milliseconds(),
		})
	}

	s.logger.Info("stage finished",
		"course_id", courseID,
		"run_id", run.runID,
		"stage", run.stage,
		"status", status,
		"produced", produced,
		"failed", len(failedItems),
		"duration_ms", duration.Milliseconds())
}

// moduleItem formats one failed-item entry for a module session. The
// "module N (" prefix is what failedItemForModule matches on.
func moduleItem(index int, title string, err error) string {
	return fmt.Sprintf("module %d (%s): %v", index, title, err)
}

func failedItemForModule(items []string, index int) bool {
	prefix := fmt.Sprintf("module %d (", index)
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			return true
		}
	}
	return false
}
