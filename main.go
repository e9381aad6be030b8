package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courseforge/courseforge/internal/adapter/llm"
	"github.com/courseforge/courseforge/internal/config"
	"github.com/courseforge/courseforge/internal/domain"
	"github.com/courseforge/courseforge/internal/logging"
	"github.com/courseforge/courseforge/internal/negotiation"
	"github.com/courseforge/courseforge/internal/policy"
	"github.com/courseforge/courseforge/internal/service"
	"github.com/courseforge/courseforge/internal/store"
	handler "github.com/courseforge/courseforge/internal/transport/http"
	"github.com/courseforge/courseforge/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	logger.Info("starting courseforge",
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"llm_base_url", cfg.LLMBaseURL,
		"llm_model", cfg.LLMModel)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize LLM client
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)

	// Initialize policy engine
	ctx := context.Background()
	policyContent, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize progress registry and service
	registry := negotiation.NewRegistry()
	svc := service.New(db, llmClient, policyEngine, registry, cfg, logger)

	// Initialize the progress hub and feed it every published snapshot
	hub := ws.NewHub(logger)
	go hub.Run()
	registry.SetListener(func(stageKey string, snapshot domain.StageProgressSnapshot) {
		if err := hub.BroadcastJSON(snapshot.CourseID, ws.ProgressMessage{
			Type:     "progress",
			Snapshot: &snapshot,
		}); err != nil {
			logger.Warn("failed to broadcast progress", "course_id", snapshot.CourseID, "error", err)
		}
	})
	wsServer := ws.NewServer(svc, hub, logger)

	// Sweep orphaned stage runs left behind by a previous process
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go svc.RunStageMonitor(monitorCtx, 30*time.Second)

	// Create the HTTP server
	e := handler.NewServer(svc, wsServer)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Info("api started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down courseforge")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", "error", err)
	}

	logger.Info("courseforge stopped")
}
