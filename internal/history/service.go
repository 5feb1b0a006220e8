package history

import (
	"context"
	"log"
)

// Options configures the history service.
type Options struct {
	Enabled             bool
	MaxMessages         int
	SimilarityThreshold float64
}

// Service is the facade the answering-agent boundary talks to: one call to
// assemble context before generation, one call to record the exchange after.
type Service struct {
	store       MessageStore
	retriever   *Retriever
	capture     *CaptureEngine
	enabled     bool
	maxMessages int
}

// NewService wires the retrieval and capture engines. vectors, embedder and
// scheduler may all be nil; the service degrades accordingly.
func NewService(store MessageStore, vectors VectorSearcher, embedder Embedder, scheduler EnrichmentScheduler, opts Options) *Service {
	maxMessages := opts.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Service{
		store:       store,
		retriever:   NewRetriever(store, vectors, embedder, opts.SimilarityThreshold),
		capture:     NewCaptureEngine(store, scheduler),
		enabled:     opts.Enabled,
		maxMessages: maxMessages,
	}
}

// ContextResult is the assembled context for one question.
type ContextResult struct {
	Messages         []RetrievedMessage `json:"messages"`
	FormattedContext string             `json:"formatted_context"`
}

// RetrieveContext surfaces prior exchanges relevant to the question and
// renders them into the prompt block. Best-effort: it never fails the
// question-answering flow, returning an empty context when nothing can be
// resolved.
func (s *Service) RetrieveContext(ctx context.Context, userID, agentID, questionText, sessionID string) *ContextResult {
	empty := &ContextResult{Messages: []RetrievedMessage{}}
	if !s.enabled {
		return empty
	}

	// Backfill identifiers from the session when the caller only has a
	// session id. Unresolved identifiers mean "no history available", not an
	// error.
	if (userID == "" || agentID == "") && sessionID != "" {
		session, err := s.store.GetSessionByID(sessionID)
		if err != nil {
			log.Printf("Warning: could not resolve session %s for context: %v", sessionID, err)
			return empty
		}
		if userID == "" {
			userID = session.UserID
		}
		if agentID == "" {
			agentID = session.AgentID
		}
	}
	if userID == "" && sessionID == "" {
		return empty
	}

	retrieved := s.retriever.Retrieve(ctx, userID, agentID, questionText, sessionID)
	ranked := Rank(retrieved, s.maxMessages)

	return &ContextResult{
		Messages:         ranked,
		FormattedContext: FormatContext(ranked),
	}
}

// CaptureRequest is one completed exchange to record.
type CaptureRequest struct {
	UserID        string
	AgentID       string
	SessionID     string
	QuestionText  string
	AnswerText    string
	SQL           string
	ExternalRunID string
}

// CaptureResult reports where the exchange landed.
type CaptureResult struct {
	SessionID string `json:"session_id"`
	Captured  bool   `json:"captured"`
}

// CaptureExchange resolves (or creates) the session and records the
// exchange. Write failures are returned to the caller, typed so it can
// distinguish session resolution from rejected writes.
func (s *Service) CaptureExchange(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if !s.enabled {
		return &CaptureResult{SessionID: req.SessionID, Captured: false}, nil
	}

	sessionID := req.SessionID
	if sessionID == "" {
		var err error
		sessionID, err = s.capture.GetOrCreateSession(ctx, req.UserID, req.AgentID, defaultTitle(req.QuestionText))
		if err != nil {
			return nil, err
		}
	}

	if err := s.capture.Capture(ctx, sessionID, req.QuestionText, req.AnswerText, req.SQL, req.ExternalRunID); err != nil {
		return nil, err
	}

	return &CaptureResult{SessionID: sessionID, Captured: true}, nil
}

// GetOrCreateSession exposes session resolution to the API layer.
func (s *Service) GetOrCreateSession(ctx context.Context, userID, agentID, title string) (string, error) {
	return s.capture.GetOrCreateSession(ctx, userID, agentID, title)
}

// defaultTitle derives a session title from the first question.
func defaultTitle(question string) string {
	const maxLen = 60
	runes := []rune(question)
	if len(runes) == 0 {
		return ""
	}
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return question
}
