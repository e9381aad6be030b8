// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/courseforge/courseforge/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Course operations
	CreateCourse(ctx context.Context, course *domain.Course) error
	GetCourse(ctx context.Context, courseID string) (*domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.Course, error)
	UpdateCourseStatus(ctx context.Context, courseID string, stage domain.Stage, status domain.StageStatus) error

	// Document operations
	CreateDocuments(ctx context.Context, docs []domain.AnalyzedDocument) error
	ListDocuments(ctx context.Context, courseID string) ([]domain.AnalyzedDocument, error)

	// Pathway operations
	CreatePathway(ctx context.Context, pathway *domain.Pathway) error
	GetPathway(ctx context.Context, pathwayID string) (*domain.Pathway, error)
	ListPathways(ctx context.Context, courseID string) ([]domain.Pathway, error)
	UpdatePathwayModules(ctx context.Context, pathwayID string, modules []domain.Module) error
	DeletePathwaysByCourse(ctx context.Context, courseID string) error

	// Module content operations
	UpsertModuleContent(ctx context.Context, content *domain.ModuleContent) error
	ListModuleContents(ctx context.Context, pathwayID string) ([]domain.ModuleContent, error)
	DeleteModuleContentsByPathway(ctx context.Context, pathwayID string) error

	// Stage run operations
	CreateStageRun(ctx context.Context, run *domain.StageRun) error
	GetStageRun(ctx context.Context, runID string) (*domain.StageRun, error)
	GetLatestStageRun(ctx context.Context, courseID string) (*domain.StageRun, error)
	UpdateStageRunStatus(ctx context.Context, runID string, status domain.StageStatus) error
	CompleteStageRun(ctx context.Context, runID string, status domain.StageStatus, errMsg string, failedItems []string) error
	ListInProgressStageRuns(ctx context.Context, olderThan time.Time, limit int) ([]domain.StageRun, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error)

	// Lifecycle
	Close() error
}
