package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/courseforge/courseforge/internal/adapter/llm"
	"github.com/courseforge/courseforge/internal/config"
	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/logging"
	"github.com/courseforge/courseforge/internal/negotiation"
	"github.com/courseforge/courseforge/internal/policy"
	"github.com/courseforge/courseforge/tests/helpers"
)

// scriptedClient wraps the mock LLM client so tests can fail targeted calls,
// slow everything down, or force a critique severity.
type scriptedClient struct {
	inner    llm.LLMClient
	delay    time.Duration
	failWhen func(req *llm.ChatCompletionRequest) bool
	severity string
}

func (c *scriptedClient) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.failWhen != nil && c.failWhen(req) {
		return nil, fmt.Errorf("simulated provider outage")
	}
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	if err != nil || c.severity == "" {
		return resp, err
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil &&
		strings.Contains(resp.Choices[0].Message.Content, `"severity"`) {
		resp.Choices[0].Message.Content = strings.Replace(resp.Choices[0].Message.Content, "acceptable", c.severity, 1)
	}
	return resp, nil
}

func requestMentions(req *llm.ChatCompletionRequest, needle string) bool {
	for _, msg := range req.Messages {
		if strings.Contains(msg.Content, needle) {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, client llm.LLMClient) *Service {
	t.Helper()

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	cfg := &config.Config{
		LLMModel:         "test-model",
		LLMTimeout:       2 * time.Second,
		MaxRounds:        3,
		ProposeRetries:   0,
		StageConcurrency: 2,
		PathwayCount:     1,
		StageRunTimeout:  10 * time.Second,
	}
	return New(helpers.NewTestSQLiteStore(t), client, engine, negotiation.NewRegistry(), cfg, logging.Nop())
}

func seedCourse(t *testing.T, svc *Service) *domain.Course {
	t.Helper()
	course, err := svc.CreateCourse(context.Background(), domain.CreateCourseRequest{
		RepoURL: "https://github.com/acme/widgets",
		Title:   "Widgets Internals",
	})
	if err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	return course
}

func seedDocuments(t *testing.T, svc *Service, courseID string) {
	t.Helper()
	_, err := svc.IngestDocuments(context.Background(), courseID, domain.IngestDocumentsRequest{
		Documents: []domain.DocumentInput{
			{Path: "internal/server/server.go", Content: "package server", Summary: "HTTP server setup"},
			{Path: "internal/store/store.go", Content: "package store", Summary: "Persistence layer"},
		},
	})
	if err != nil {
		t.Fatalf("IngestDocuments failed: %v", err)
	}
}

func seedPathway(t *testing.T, svc *Service, courseID, pathwayID string, moduleTitles ...string) *domain.Pathway {
	t.Helper()
	modules := make([]domain.Module, len(moduleTitles))
	for i, title := range moduleTitles {
		modules[i] = domain.Module{Title: title, Description: "About " + title}
	}
	now := time.Now()
	pathway := &domain.Pathway{
		PathwayID:  pathwayID,
		CourseID:   courseID,
		Title:      "Seeded Pathway",
		Complexity: domain.ComplexityIntermediate,
		Modules:    modules,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := svc.store.CreatePathway(context.Background(), pathway); err != nil {
		t.Fatalf("CreatePathway failed: %v", err)
	}
	return pathway
}

func waitForRun(t *testing.T, svc *Service, courseID string) domain.StageStatus {
	t.Helper()
	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		status, err := svc.GetStatus(context.Background(), courseID)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		if status.Status.IsTerminal() {
			return status.Status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("stage run did not finish in time")
	return ""
}

func TestStartStageRejectsNonStartableStage(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)

	_, err := svc.StartStage(context.Background(), course.CourseID, domain.StageDocuments, domain.StartStageRequest{})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartStageUnknownCourse(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())

	_, err := svc.StartStage(context.Background(), "course_missing", domain.StagePathways, domain.StartStageRequest{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartStageRequiresDocuments(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)

	_, err := svc.StartStage(context.Background(), course.CourseID, domain.StagePathways, domain.StartStageRequest{})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartStageContentRequiresPathway(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)

	_, err := svc.StartStage(context.Background(), course.CourseID, domain.StageContent, domain.StartStageRequest{})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error without pathways, got %v", err)
	}

	seedPathway(t, svc, course.CourseID, "p1", "Routing")
	seedPathway(t, svc, course.CourseID, "p2", "Persistence")
	_, err = svc.StartStage(context.Background(), course.CourseID, domain.StageContent, domain.StartStageRequest{})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error with ambiguous pathway, got %v", err)
	}

	// An explicit pathway id resolves the ambiguity.
	resp, err := svc.StartStage(context.Background(), course.CourseID, domain.StageContent, domain.StartStageRequest{PathwayID: "p2"})
	if err != nil {
		t.Fatalf("StartStage with explicit pathway failed: %v", err)
	}
	if resp.Stage != domain.StageContent {
		t.Fatalf("unexpected response: %+v", resp)
	}
	waitForRun(t, svc, course.CourseID)
}

func TestPathwayStageEndToEnd(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	ctx := context.Background()

	resp, err := svc.StartStage(ctx, course.CourseID, domain.StagePathways, domain.StartStageRequest{})
	if err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}
	if resp.RunID == "" || resp.Stage != domain.StagePathways {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if status := waitForRun(t, svc, course.CourseID); status != domain.StageStatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}

	pathways, err := svc.ListPathways(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("ListPathways failed: %v", err)
	}
	if len(pathways) != 1 {
		t.Fatalf("expected 1 pathway, got %d", len(pathways))
	}
	if len(pathways[0].Modules) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(pathways[0].Modules))
	}
	if pathways[0].PathwayID == "" || pathways[0].CourseID != course.CourseID {
		t.Fatalf("pathway not fully persisted: %+v", pathways[0])
	}

	result, err := svc.GetResult(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if result.RunID != resp.RunID || len(result.Pathways) != 1 || len(result.FailedItems) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	snap, err := svc.GetProgress(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if snap.Total != 1 || snap.Completed != 1 || snap.Failed != 0 {
		t.Fatalf("unexpected progress: %+v", snap)
	}
	if snap.Pending+snap.Processing+snap.Completed+snap.Failed != snap.Total {
		t.Fatalf("progress counts do not sum to total: %+v", snap)
	}

	runID, events, err := svc.GetCourseEvents(ctx, course.CourseID, 0, 100)
	if err != nil {
		t.Fatalf("GetCourseEvents failed: %v", err)
	}
	if runID != resp.RunID {
		t.Fatalf("expected run %s, got %s", resp.RunID, runID)
	}
	seen := make(map[domain.EventType]bool)
	for _, event := range events {
		seen[event.Type] = true
	}
	for _, want := range []domain.EventType{
		domain.EventTypeStageStarted,
		domain.EventTypeSessionStarted,
		domain.EventTypeRoundCompleted,
		domain.EventTypeSessionAccepted,
		domain.EventTypeStageCompleted,
	} {
		if !seen[want] {
			t.Fatalf("missing %s event, saw %v", want, seen)
		}
	}
}

func TestStartStageConflict(t *testing.T) {
	client := &scriptedClient{inner: llm.NewMockClient(), delay: 150 * time.Millisecond}
	svc := newTestService(t, client)
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	ctx := context.Background()

	if _, err := svc.StartStage(ctx, course.CourseID, domain.StagePathways, domain.StartStageRequest{}); err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}

	_, err := svc.StartStage(ctx, course.CourseID, domain.StagePathways, domain.StartStageRequest{})
	if !errors.Is(err, ErrStageActive) {
		t.Fatalf("expected ErrStageActive, got %v", err)
	}

	waitForRun(t, svc, course.CourseID)

	// The slot frees up once the run finishes.
	if _, err := svc.StartStage(ctx, course.CourseID, domain.StagePathways, domain.StartStageRequest{}); err != nil {
		t.Fatalf("StartStage after completion failed: %v", err)
	}
	waitForRun(t, svc, course.CourseID)
}

func TestContentStagePartialFailure(t *testing.T) {
	client := &scriptedClient{
		inner: llm.NewMockClient(),
		failWhen: func(req *llm.ChatCompletionRequest) bool {
			return requestMentions(req, "Doomed Module")
		},
	}
	svc := newTestService(t, client)
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	seedPathway(t, svc, course.CourseID, "p1",
		"Routing", "Doomed Module", "Persistence", "Observability", "Deployment")
	ctx := context.Background()

	resp, err := svc.StartStage(ctx, course.CourseID, domain.StageContent, domain.StartStageRequest{})
	if err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}

	if status := waitForRun(t, svc, course.CourseID); status != domain.StageStatusCompletedWithErrors {
		t.Fatalf("expected completed_with_errors, got %s", status)
	}

	run, err := svc.store.GetStageRun(ctx, resp.RunID)
	if err != nil {
		t.Fatalf("GetStageRun failed: %v", err)
	}
	if len(run.FailedItems) != 1 || !strings.Contains(run.FailedItems[0], "Doomed Module") {
		t.Fatalf("unexpected failed items: %+v", run.FailedItems)
	}

	contents, err := svc.store.ListModuleContents(ctx, "p1")
	if err != nil {
		t.Fatalf("ListModuleContents failed: %v", err)
	}
	if len(contents) != 4 {
		t.Fatalf("expected 4 module contents, got %d", len(contents))
	}
	for _, content := range contents {
		if content.ModuleIndex == 1 {
			t.Fatalf("failed module should not have persisted content: %+v", content)
		}
	}

	result, err := svc.GetResult(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if result.Status != domain.StageStatusCompletedWithErrors || len(result.Contents) != 4 || len(result.FailedItems) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Pathway == nil || result.Pathway.PathwayID != "p1" {
		t.Fatalf("result missing pathway: %+v", result.Pathway)
	}

	snap, err := svc.GetProgress(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if snap.Total != 5 || snap.Completed != 4 || snap.Failed != 1 {
		t.Fatalf("unexpected progress: %+v", snap)
	}
	if len(snap.Modules) != 5 {
		t.Fatalf("expected 5 module rows, got %d", len(snap.Modules))
	}
}

func TestContentStageAllFail(t *testing.T) {
	client := &scriptedClient{
		inner: llm.NewMockClient(),
		failWhen: func(req *llm.ChatCompletionRequest) bool {
			return requestMentions(req, "course author")
		},
	}
	svc := newTestService(t, client)
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	seedPathway(t, svc, course.CourseID, "p1", "Routing", "Persistence")
	ctx := context.Background()

	if _, err := svc.StartStage(ctx, course.CourseID, domain.StageContent, domain.StartStageRequest{}); err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}

	if status := waitForRun(t, svc, course.CourseID); status != domain.StageStatusFailed {
		t.Fatalf("expected failed, got %s", status)
	}

	_, err := svc.GetResult(ctx, course.CourseID)
	if !errors.Is(err, ErrResultNotReady) {
		t.Fatalf("expected ErrResultNotReady, got %v", err)
	}
}

func TestContentStageReplacesStaleContents(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	seedPathway(t, svc, course.CourseID, "p1", "Routing", "Persistence")
	ctx := context.Background()

	// Leftover from an earlier run against a longer module list.
	stale := &domain.ModuleContent{
		ContentID:    "mc_stale",
		CourseID:     course.CourseID,
		PathwayID:    "p1",
		ModuleIndex:  5,
		Title:        "Removed Module",
		Introduction: "No longer part of the pathway.",
		Sections:     []domain.ContentSection{{Heading: "Old", Body: "Old"}},
		CreatedAt:    time.Now(),
	}
	if err := svc.store.UpsertModuleContent(ctx, stale); err != nil {
		t.Fatalf("UpsertModuleContent failed: %v", err)
	}

	if _, err := svc.StartStage(ctx, course.CourseID, domain.StageContent, domain.StartStageRequest{}); err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}
	if status := waitForRun(t, svc, course.CourseID); status != domain.StageStatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}

	contents, err := svc.store.ListModuleContents(ctx, "p1")
	if err != nil {
		t.Fatalf("ListModuleContents failed: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 module contents, got %d", len(contents))
	}
	for _, content := range contents {
		if content.ModuleIndex > 1 {
			t.Fatalf("stale content survived the rerun: %+v", content)
		}
	}
}

func TestCancelStageKeepsExistingPathways(t *testing.T) {
	// Slow calls and a never-satisfied critic keep the run going until the
	// cancel lands.
	client := &scriptedClient{inner: llm.NewMockClient(), delay: 100 * time.Millisecond, severity: "minor_issues"}
	svc := newTestService(t, client)
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	seedPathway(t, svc, course.CourseID, "p1", "Routing")
	ctx := context.Background()

	if _, err := svc.StartStage(ctx, course.CourseID, domain.StagePathways, domain.StartStageRequest{}); err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := svc.CancelStage(ctx, course.CourseID); err != nil {
		t.Fatalf("CancelStage failed: %v", err)
	}

	if status := waitForRun(t, svc, course.CourseID); status != domain.StageStatusCancelled {
		t.Fatalf("expected cancelled, got %s", status)
	}

	// Cancelling is idempotent once the run is terminal.
	if err := svc.CancelStage(ctx, course.CourseID); err != nil {
		t.Fatalf("CancelStage after completion failed: %v", err)
	}

	pathways, err := svc.ListPathways(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("ListPathways failed: %v", err)
	}
	if len(pathways) != 1 || pathways[0].PathwayID != "p1" {
		t.Fatalf("cancelled run must not replace existing pathways: %+v", pathways)
	}
}

func TestGetStatusWithoutRuns(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)

	status, err := svc.GetStatus(context.Background(), course.CourseID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.Stage != domain.StageDocuments || status.Status != domain.StageStatusPending {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestGetProgressSurvivesRestart(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient())
	course := seedCourse(t, svc)
	seedDocuments(t, svc, course.CourseID)
	seedPathway(t, svc, course.CourseID, "p1", "Routing", "Persistence")
	ctx := context.Background()

	if _, err := svc.StartStage(ctx, course.CourseID, domain.StageContent, domain.StartStageRequest{}); err != nil {
		t.Fatalf("StartStage failed: %v", err)
	}
	if status := waitForRun(t, svc, course.CourseID); status != domain.StageStatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}

	// A fresh service over the same store has an empty registry, as after a
	// process restart. Progress comes from persisted artifacts instead.
	restarted := New(svc.store, svc.llmClient, svc.policyEngine, negotiation.NewRegistry(), svc.config, logging.Nop())

	snap, err := restarted.GetProgress(ctx, course.CourseID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if snap.Total != 2 || snap.Completed != 2 || snap.Failed != 0 || snap.Pending != 0 {
		t.Fatalf("unexpected reconstructed progress: %+v", snap)
	}
	if len(snap.Modules) != 2 {
		t.Fatalf("expected 2 module rows, got %d", len(snap.Modules))
	}
	for _, module := range snap.Modules {
		if module.Status != domain.ModuleStatusCompleted {
			t.Fatalf("unexpected module status: %+v", module)
		}
	}
}
