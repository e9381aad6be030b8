package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/courseforge/internal/domain"
)

// CreateCourse creates a new course project in the documents stage.
func (s *Service) CreateCourse(ctx context.Context, req domain.CreateCourseRequest) (*domain.Course, error) {
	if strings.TrimSpace(req.RepoURL) == "" {
		return nil, &domain.ValidationError{Field: "repo_url", Reason: "is required"}
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "is required"}
	}
	complexity := req.Complexity
	if complexity == "" {
		complexity = domain.ComplexityIntermediate
	}
	if !complexity.Valid() {
		return nil, &domain.ValidationError{Field: "complexity", Reason: "must be beginner, intermediate, or advanced"}
	}

	now := time.Now()
	course := &domain.Course{
		CourseID:   "course_" + uuid.New().String()[:8],
		RepoURL:    req.RepoURL,
		Title:      req.Title,
		Complexity: complexity,
		Stage:      domain.StageDocuments,
		Status:     domain.StageStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.logger.Info("course created", "course_id", course.CourseID, "title", course.Title, "complexity", course.Complexity)
	return course, nil
}

// GetCourse retrieves a course. Returns (nil, nil) when it does not exist.
func (s *Service) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// ListCourses lists all courses, newest first.
func (s *Service) ListCourses(ctx context.Context) ([]domain.Course, error) {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// IngestDocuments bulk-loads analyzed documents for a course. The analysis
// pipeline runs upstream; this accepts its output.
func (s *Service) IngestDocuments(ctx context.Context, courseID string, req domain.IngestDocumentsRequest) ([]domain.AnalyzedDocument, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	if len(req.Documents) == 0 {
		return nil, &domain.ValidationError{Field: "documents", Reason: "must contain at least one document"}
	}

	now := time.Now()
	docs := make([]domain.AnalyzedDocument, 0, len(req.Documents))
	for i, input := range req.Documents {
		if strings.TrimSpace(input.Path) == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("documents[%d].path", i), Reason: "is required"}
		}
		if strings.TrimSpace(input.Content) == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("documents[%d].content", i), Reason: "is required"}
		}
		filename := input.Filename
		if filename == "" {
			if idx := strings.LastIndex(input.Path, "/"); idx >= 0 {
				filename = input.Path[idx+1:]
			} else {
				filename = input.Path
			}
		}
		docs = append(docs, domain.AnalyzedDocument{
			DocumentID:         "doc_" + uuid.New().String()[:8],
			CourseID:           courseID,
			Path:               input.Path,
			Filename:           filename,
			Content:            input.Content,
			Summary:            input.Summary,
			KeyConcepts:        input.KeyConcepts,
			LearningObjectives: input.LearningObjectives,
			CreatedAt:          now,
		})
	}

	if err := s.store.CreateDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to store documents: %w", err)
	}
	if err := s.store.UpdateCourseStatus(ctx, courseID, domain.StageDocuments, domain.StageStatusCompleted); err != nil {
		s.logger.Error("failed to update course status", "course_id", courseID, "error", err)
	}

	s.logger.Info("documents ingested", "course_id", courseID, "count", len(docs))
	return docs, nil
}

// ListDocuments retrieves the analyzed documents for a course.
func (s *Service) ListDocuments(ctx context.Context, courseID string) ([]domain.AnalyzedDocument, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	docs, err := s.store.ListDocuments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
