package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/courseforge/internal/domain"
)

// recordEvent records a trace event to the store.
func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	return s.store.CreateEvent(ctx, event)
}

// mustRecordEvent records an event and logs instead of failing; a trace gap
// must not break a run.
func (s *Service) mustRecordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, runID, eventType, payload); err != nil {
		s.logger.Error("failed to record event", "run_id", runID, "type", eventType, "error", err)
	}
}
