package service

import (
	"context"
	"time"

	"github.com/courseforge/courseforge/internal/domain"
)

const (
	// stageRunGracePeriod is how long an in_progress row may exist without a
	// live run before the sweeper treats it as orphaned.
	stageRunGracePeriod = time.Minute
	sweepBatchSize      = 20
)

// RunStageMonitor periodically sweeps stage runs that are persisted as
// in_progress but have no live run in this process. Such rows are orphans
// of a previous process and are marked failed so their courses do not stay
// stuck. Blocks until ctx is cancelled.
func (s *Service) RunStageMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStageRuns(ctx)
		}
	}
}

func (s *Service) sweepStageRuns(ctx context.Context) {
	olderThan := time.Now().Add(-stageRunGracePeriod)
	runs, err := s.store.ListInProgressStageRuns(ctx, olderThan, sweepBatchSize)
	if err != nil {
		s.logger.Error("failed to list in-progress stage runs", "error", err)
		return
	}

	for _, run := range runs {
		if s.activeRunFor(run.CourseID) != nil {
			continue
		}
		s.logger.Warn("marking orphaned stage run as failed",
			"run_id", run.RunID,
			"course_id", run.CourseID,
			"stage", run.Stage,
			"started_at", run.StartedAt)

		if err := s.store.CompleteStageRun(ctx, run.RunID, domain.StageStatusFailed, "orchestrator restarted during run", nil); err != nil {
			s.logger.Error("failed to complete orphaned stage run", "run_id", run.RunID, "error", err)
			continue
		}
		if err := s.store.UpdateCourseStatus(ctx, run.CourseID, run.Stage, domain.StageStatusFailed); err != nil {
			s.logger.Error("failed to update course status", "course_id", run.CourseID, "error", err)
		}
		s.mustRecordEvent(ctx, run.RunID, domain.EventTypeStageCompleted, domain.StageCompletedPayload{
			Status: domain.StageStatusFailed,
		})
	}
}
