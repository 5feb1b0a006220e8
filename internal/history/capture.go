package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
)

// CaptureEngine durably records completed exchanges and schedules background
// embedding enrichment. Unlike the read path, write failures are surfaced to
// the caller.
type CaptureEngine struct {
	store     MessageStore
	scheduler EnrichmentScheduler
}

// NewCaptureEngine creates the capture engine. scheduler may be nil; capture
// then persists without enrichment.
func NewCaptureEngine(store MessageStore, scheduler EnrichmentScheduler) *CaptureEngine {
	return &CaptureEngine{store: store, scheduler: scheduler}
}

// Capture appends the user/assistant pair to the session in one transaction:
// both sequence numbers are assigned atomically and the session counters move
// in the same commit. On success the user message is handed to the
// enrichment scheduler; a scheduling failure never fails the capture.
func (e *CaptureEngine) Capture(ctx context.Context, sessionID, userText, assistantText, sqlText, externalRunID string) error {
	session, err := e.store.GetSessionByID(sessionID)
	if err != nil {
		return fmt.Errorf("%w: session %s: %v", ErrSessionNotResolved, sessionID, err)
	}

	var metadata datatypes.JSON
	if externalRunID != "" {
		raw, err := json.Marshal(map[string]string{"external_run_id": externalRunID})
		if err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	userMsg := &model.ChatMessage{
		ID:       uuid.New().String(),
		Content:  userText,
		Metadata: metadata,
	}
	assistantMsg := &model.ChatMessage{
		ID:       uuid.New().String(),
		Content:  assistantText,
		SQLQuery: sqlText,
		Metadata: metadata,
	}

	if err := e.store.AppendExchange(sessionID, userMsg, assistantMsg); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}

	if e.scheduler != nil {
		if !e.scheduler.Schedule(userMsg, session.UserID, session.AgentID) {
			log.Printf("Warning: embedding enrichment not scheduled for message %s", userMsg.ID)
		}
	}

	return nil
}

// GetOrCreateSession returns the most recent active session for the
// (user, agent) pair whose last activity falls within the 24-hour window,
// bumping its last_activity, or creates a fresh one.
//
// The read-then-create is not guarded by a unique constraint: two concurrent
// callers inside the race window may each create a session. Known, accepted
// behavior.
func (e *CaptureEngine) GetOrCreateSession(ctx context.Context, userID, agentID, title string) (string, error) {
	now := time.Now()

	session, err := e.store.FindActiveSession(userID, agentID, now.Add(-activeSessionWindow))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionNotResolved, err)
	}
	if session != nil {
		if err := e.store.TouchSession(session.ID, now); err != nil {
			log.Printf("Warning: failed to touch session %s: %v", session.ID, err)
		}
		return session.ID, nil
	}

	if title == "" {
		title = "Nova conversa"
	}
	created := &model.ChatSession{
		ID:            uuid.New().String(),
		UserID:        userID,
		AgentID:       agentID,
		Title:         title,
		Status:        model.SessionStatusActive,
		TotalMessages: 0,
		LastActivity:  now,
	}
	if err := e.store.CreateSession(created); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}
	return created.ID, nil
}
