package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/courseforge/courseforge/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			course_id TEXT PRIMARY KEY,
			repo_url TEXT NOT NULL,
			title TEXT NOT NULL,
			complexity TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			document_id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			path TEXT NOT NULL,
			filename TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			key_concepts TEXT,
			learning_objectives TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (course_id) REFERENCES courses(course_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_course ON documents(course_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS pathways (
			pathway_id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			complexity TEXT NOT NULL,
			modules TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (course_id) REFERENCES courses(course_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pathways_course ON pathways(course_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS module_contents (
			content_id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			pathway_id TEXT NOT NULL,
			module_index INTEGER NOT NULL,
			title TEXT NOT NULL,
			introduction TEXT NOT NULL,
			sections TEXT NOT NULL,
			conclusion TEXT,
			assessment TEXT,
			word_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (course_id) REFERENCES courses(course_id),
			FOREIGN KEY (pathway_id) REFERENCES pathways(pathway_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_module_contents_slot ON module_contents(pathway_id, module_index)`,
		`CREATE TABLE IF NOT EXISTS stage_runs (
			run_id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			pathway_id TEXT,
			status TEXT NOT NULL,
			error TEXT,
			failed_items TEXT,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME,
			FOREIGN KEY (course_id) REFERENCES courses(course_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_runs_course ON stage_runs(course_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_runs_status ON stage_runs(status, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES stage_runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateCourse creates a new course.
func (s *SQLiteStore) CreateCourse(ctx context.Context, course *domain.Course) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (course_id, repo_url, title, complexity, stage, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		course.CourseID, course.RepoURL, course.Title, course.Complexity, course.Stage, course.Status, course.CreatedAt, course.UpdatedAt)
	return err
}

// GetCourse retrieves a course by ID.
func (s *SQLiteStore) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	var course domain.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT course_id, repo_url, title, complexity, stage, status, created_at, updated_at FROM courses WHERE course_id = ?`,
		courseID).Scan(&course.CourseID, &course.RepoURL, &course.Title, &course.Complexity, &course.Stage, &course.Status, &course.CreatedAt, &course.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// ListCourses lists all courses, newest first.
func (s *SQLiteStore) ListCourses(ctx context.Context) ([]domain.Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, repo_url, title, complexity, stage, status, created_at, updated_at FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		var course domain.Course
		if err := rows.Scan(&course.CourseID, &course.RepoURL, &course.Title, &course.Complexity, &course.Stage, &course.Status, &course.CreatedAt, &course.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

// UpdateCourseStatus updates the stage and status of a course.
func (s *SQLiteStore) UpdateCourseStatus(ctx context.Context, courseID string, stage domain.Stage, status domain.StageStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE courses SET stage = ?, status = ?, updated_at = ? WHERE course_id = ?`,
		stage, status, time.Now(), courseID)
	return err
}

// CreateDocuments inserts a batch of analyzed documents in one transaction.
func (s *SQLiteStore) CreateDocuments(ctx context.Context, docs []domain.AnalyzedDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (document_id, course_id, path, filename, content, summary, key_concepts, learning_objectives, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		concepts, _ := json.Marshal(doc.KeyConcepts)
		objectives, _ := json.Marshal(doc.LearningObjectives)
		if _, err := stmt.ExecContext(ctx,
			doc.DocumentID, doc.CourseID, doc.Path, doc.Filename, doc.Content, doc.Summary, string(concepts), string(objectives), doc.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListDocuments retrieves the analyzed documents for a course.
func (s *SQLiteStore) ListDocuments(ctx context.Context, courseID string) ([]domain.AnalyzedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, course_id, path, filename, content, summary, key_concepts, learning_objectives, created_at FROM documents WHERE course_id = ? ORDER BY created_at ASC`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.AnalyzedDocument
	for rows.Next() {
		var doc domain.AnalyzedDocument
		var summary, concepts, objectives sql.NullString
		if err := rows.Scan(&doc.DocumentID, &doc.CourseID, &doc.Path, &doc.Filename, &doc.Content, &summary, &concepts, &objectives, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if summary.Valid {
			doc.Summary = summary.String
		}
		if concepts.Valid && concepts.String != "" {
			if err := json.Unmarshal([]byte(concepts.String), &doc.KeyConcepts); err != nil {
				return nil, fmt.Errorf("failed to decode key_concepts for %s: %w", doc.DocumentID, err)
			}
		}
		if objectives.Valid && objectives.String != "" {
			if err := json.Unmarshal([]byte(objectives.String), &doc.LearningObjectives); err != nil {
				return nil, fmt.Errorf("failed to decode learning_objectives for %s: %w", doc.DocumentID, err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CreatePathway creates a new pathway.
func (s *SQLiteStore) CreatePathway(ctx context.Context, pathway *domain.Pathway) error {
	modules, err := json.Marshal(pathway.Modules)
	if err != nil {
		return fmt.Errorf("failed to encode modules: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pathways (pathway_id, course_id, title, description, complexity, modules, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pathway.PathwayID, pathway.CourseID, pathway.Title, pathway.Description, pathway.Complexity, string(modules), pathway.CreatedAt, pathway.UpdatedAt)
	return err
}

// GetPathway retrieves a pathway by ID.
func (s *SQLiteStore) GetPathway(ctx context.Context, pathwayID string) (*domain.Pathway, error) {
	var pathway domain.Pathway
	var description sql.NullString
	var modules string
	err := s.db.QueryRowContext(ctx,
		`SELECT pathway_id, course_id, title, description, complexity, modules, created_at, updated_at FROM pathways WHERE pathway_id = ?`,
		pathwayID).Scan(&pathway.PathwayID, &pathway.CourseID, &pathway.Title, &description, &pathway.Complexity, &modules, &pathway.CreatedAt, &pathway.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if description.Valid {
		pathway.Description = description.String
	}
	if err := json.Unmarshal([]byte(modules), &pathway.Modules); err != nil {
		return nil, fmt.Errorf("failed to decode modules for %s: %w", pathwayID, err)
	}
	return &pathway, nil
}

// ListPathways retrieves the pathways for a course.
func (s *SQLiteStore) ListPathways(ctx context.Context, courseID string) ([]domain.Pathway, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pathway_id, course_id, title, description, complexity, modules, created_at, updated_at FROM pathways WHERE course_id = ? ORDER BY created_at ASC`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pathways []domain.Pathway
	for rows.Next() {
		var pathway domain.Pathway
		var description sql.NullString
		var modules string
		if err := rows.Scan(&pathway.PathwayID, &pathway.CourseID, &pathway.Title, &description, &pathway.Complexity, &modules, &pathway.CreatedAt, &pathway.UpdatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			pathway.Description = description.String
		}
		if err := json.Unmarshal([]byte(modules), &pathway.Modules); err != nil {
			return nil, fmt.Errorf("failed to decode modules for %s: %w", pathway.PathwayID, err)
		}
		pathways = append(pathways, pathway)
	}
	return pathways, rows.Err()
}

// UpdatePathwayModules replaces the module list of a pathway.
func (s *SQLiteStore) UpdatePathwayModules(ctx context.Context, pathwayID string, modules []domain.Module) error {
	encoded, err := json.Marshal(modules)
	if err != nil {
		return fmt.Errorf("failed to encode modules: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE pathways SET modules = ?, updated_at = ? WHERE pathway_id = ?`,
		string(encoded), time.Now(), pathwayID)
	return err
}

// DeletePathwaysByCourse removes all pathways for a course.
func (s *SQLiteStore) DeletePathwaysByCourse(ctx context.Context, courseID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pathways WHERE course_id = ?`, courseID)
	return err
}

// UpsertModuleContent inserts or replaces the content for one module slot.
func (s *SQLiteStore) UpsertModuleContent(ctx context.Context, content *domain.ModuleContent) error {
	sections, err := json.Marshal(content.Sections)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO module_contents (content_id, course_id, pathway_id, module_index, title, introduction, sections, conclusion, assessment, word_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pathway_id, module_index) DO UPDATE SET
			content_id = excluded.content_id,
			title = excluded.title,
			introduction = excluded.introduction,
			sections = excluded.sections,
			conclusion = excluded.conclusion,
			assessment = excluded.assessment,
			word_count = excluded.word_count,
			created_at = excluded.created_at`,
		content.ContentID, content.CourseID, content.PathwayID, content.ModuleIndex, content.Title, content.Introduction, string(sections), content.Conclusion, content.Assessment, content.WordCount, content.CreatedAt)
	return err
}

// ListModuleContents retrieves the generated contents for a pathway, ordered
// by module index.
func (s *SQLiteStore) ListModuleContents(ctx context.Context, pathwayID string) ([]domain.ModuleContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_id, course_id, pathway_id, module_index, title, introduction, sections, conclusion, assessment, word_count, created_at FROM module_contents WHERE pathway_id = ? ORDER BY module_index ASC`,
		pathwayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []domain.ModuleContent
	for rows.Next() {
		var content domain.ModuleContent
		var sections string
		var conclusion, assessment sql.NullString
		if err := rows.Scan(&content.ContentID, &content.CourseID, &content.PathwayID, &content.ModuleIndex, &content.Title, &content.Introduction, &sections, &conclusion, &assessment, &content.WordCount, &content.CreatedAt); err != nil {
			return nil, err
		}
		if conclusion.Valid {
			content.Conclusion = conclusion.String
		}
		if assessment.Valid {
			content.Assessment = assessment.String
		}
		if err := json.Unmarshal([]byte(sections), &content.Sections); err != nil {
			return nil, fmt.Errorf("failed to decode sections for %s: %w", content.ContentID, err)
		}
		contents = append(contents, content)
	}
	return contents, rows.Err()
}

// DeleteModuleContentsByPathway removes all generated contents for a pathway.
func (s *SQLiteStore) DeleteModuleContentsByPathway(ctx context.Context, pathwayID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM module_contents WHERE pathway_id = ?`, pathwayID)
	return err
}

// CreateStageRun creates a new stage run.
func (s *SQLiteStore) CreateStageRun(ctx context.Context, run *domain.StageRun) error {
	var pathwayID sql.NullString
	if run.PathwayID != "" {
		pathwayID = sql.NullString{String: run.PathwayID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (run_id, course_id, stage, pathway_id, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CourseID, run.Stage, pathwayID, run.Status, run.StartedAt)
	return err
}

// GetStageRun retrieves a stage run by ID.
func (s *SQLiteStore) GetStageRun(ctx context.Context, runID string) (*domain.StageRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, course_id, stage, pathway_id, status, error, failed_items, started_at, completed_at FROM stage_runs WHERE run_id = ?`,
		runID)
	return scanStageRun(row)
}

// GetLatestStageRun retrieves the most recently started run for a course.
func (s *SQLiteStore) GetLatestStageRun(ctx context.Context, courseID string) (*domain.StageRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, course_id, stage, pathway_id, status, error, failed_items, started_at, completed_at FROM stage_runs WHERE course_id = ? ORDER BY started_at DESC, run_id DESC LIMIT 1`,
		courseID)
	return scanStageRun(row)
}

func scanStageRun(row *sql.Row) (*domain.StageRun, error) {
	var run domain.StageRun
	var pathwayID, errMsg, failedItems sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&run.RunID, &run.CourseID, &run.Stage, &pathwayID, &run.Status, &errMsg, &failedItems, &run.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pathwayID.Valid {
		run.PathwayID = pathwayID.String
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if failedItems.Valid && failedItems.String != "" {
		if err := json.Unmarshal([]byte(failedItems.String), &run.FailedItems); err != nil {
			return nil, fmt.Errorf("failed to decode failed_items for %s: %w", run.RunID, err)
		}
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// UpdateStageRunStatus updates the status of a stage run.
func (s *SQLiteStore) UpdateStageRunStatus(ctx context.Context, runID string, status domain.StageStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stage_runs SET status = ? WHERE run_id = ?`,
		status, runID)
	return err
}

// CompleteStageRun updates a stage run to a terminal state.
func (s *SQLiteStore) CompleteStageRun(ctx context.Context, runID string, status domain.StageStatus, errMsg string, failedItems []string) error {
	now := time.Now()
	var errStr, failedStr sql.NullString
	if errMsg != "" {
		errStr = sql.NullString{String: errMsg, Valid: true}
	}
	if len(failedItems) > 0 {
		encoded, _ := json.Marshal(failedItems)
		failedStr = sql.NullString{String: string(encoded), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE stage_runs SET status = ?, error = ?, failed_items = ?, completed_at = ? WHERE run_id = ?`,
		status, errStr, failedStr, now, runID)
	return err
}

// ListInProgressStageRuns lists in-progress runs started before the given
// time, oldest first.
func (s *SQLiteStore) ListInProgressStageRuns(ctx context.Context, olderThan time.Time, limit int) ([]domain.StageRun, error) {
	query := `SELECT run_id, course_id, stage, pathway_id, status, error, failed_items, started_at, completed_at FROM stage_runs WHERE status = ? AND started_at < ? ORDER BY started_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, domain.StageStatusInProgress, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.StageRun
	for rows.Next() {
		var run domain.StageRun
		var pathwayID, errMsg, failedItems sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&run.RunID, &run.CourseID, &run.Stage, &pathwayID, &run.Status, &errMsg, &failedItems, &run.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		if pathwayID.Valid {
			run.PathwayID = pathwayID.String
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		if failedItems.Valid && failedItems.String != "" {
			if err := json.Unmarshal([]byte(failedItems.String), &run.FailedItems); err != nil {
				return nil, fmt.Errorf("failed to decode failed_items for %s: %w", run.RunID, err)
			}
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a run.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM events WHERE run_id = ?`
	args := []interface{}{runID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	query += ` ORDER BY ts ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
