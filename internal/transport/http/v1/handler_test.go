package v1

import (
	"context"
	"testing"
	"time"

	"github.com/courseforge/courseforge/internal/adapter/llm"
	"github.com/courseforge/courseforge/internal/config"
	"github.com/courseforge/courseforge/internal/logging"
	"github.com/courseforge/courseforge/internal/negotiation"
	"github.com/courseforge/courseforge/internal/policy"
	"github.com/courseforge/courseforge/internal/service"
	"github.com/courseforge/courseforge/internal/store"
	"github.com/courseforge/courseforge/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service, store.Store) {
	t.Helper()
	return newTestHandlerWithClient(t, llm.NewMockClient())
}

func newTestHandlerWithClient(t *testing.T, client llm.LLMClient) (*Handler, *service.Service, store.Store) {
	t.Helper()

	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	cfg := &config.Config{
		LLMModel:         "test-model",
		LLMTimeout:       2 * time.Second,
		MaxRounds:        3,
		StageConcurrency: 2,
		PathwayCount:     1,
		StageRunTimeout:  10 * time.Second,
	}
	svc := service.New(db, client, policyEngine, negotiation.NewRegistry(), cfg, logging.Nop())
	return NewHandler(svc), svc, db
}

// waitTerminal blocks until the course's latest run reaches a terminal
// status, so fire-and-forget runs do not outlive their test store.
func waitTerminal(t *testing.T, svc *service.Service, courseID string) {
	t.Helper()
	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		status, err := svc.GetStatus(context.Background(), courseID)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		if status.Status.IsTerminal() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("stage run did not finish in time")
}
