// Package history implements durable, rankable conversation memory for the
// SQL-answering agent: hybrid retrieval over prior exchanges, ranking with
// deduplication, deterministic context formatting and transactional capture
// of completed exchanges.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
	"github.com/raki39/FRONTGraph-sub001/internal/repository"
)

// Source identifies which retrieval strategy produced a message.
type Source string

const (
	SourceRecentSession   Source = "recent_session"
	SourceSemanticSearch  Source = "semantic_search"
	SourceTextSearch      Source = "text_search"
	SourceLastInteraction Source = "last_interaction"
)

// Relevance scores per source. Last-interaction scores sit above 1.0 so that
// pair always wins ranking and is never dropped by the limit.
const (
	scoreRecentSession            = 1.0
	scoreTextSearch               = 0.5
	scoreLastInteractionUser      = 1.1
	scoreLastInteractionAssistant = 1.05
)

// Retrieval tuning.
const (
	recentMessageCount  = 5
	semanticSearchLimit = 10
	textSearchLimit     = 5
	textSearchMaxWords  = 3

	// DefaultMaxMessages caps ranked output when no limit is configured.
	DefaultMaxMessages = 15

	// DefaultSimilarityThreshold converts to a max cosine distance of 0.25.
	DefaultSimilarityThreshold = 0.75

	// activeSessionWindow is the rolling window within which an existing
	// active session is reused instead of creating a new one.
	activeSessionWindow = 24 * time.Hour
)

// Write-path error taxonomy. Callers distinguish "no session could be
// resolved" from "write rejected" and decide whether to retry.
var (
	ErrSessionNotResolved = errors.New("session could not be resolved")
	ErrWriteRejected      = errors.New("write rejected")
)

// RetrievedMessage is a transient view of a stored message enriched with its
// retrieval source and relevance score. It lives only for one retrieval call
// and is never persisted.
type RetrievedMessage struct {
	Message        *model.ChatMessage `json:"message"`
	Source         Source             `json:"source"`
	RelevanceScore float64            `json:"relevance_score"`
}

// MessageStore is the persistence surface the history engine reads and writes.
// Implemented by repository.ChatRepository.
type MessageStore interface {
	CreateSession(session *model.ChatSession) error
	GetSessionByID(id string) (*model.ChatSession, error)
	FindActiveSession(userID, agentID string, since time.Time) (*model.ChatSession, error)
	TouchSession(id string, at time.Time) error
	GetRecentMessages(sessionID string, limit int) ([]*model.ChatMessage, error)
	GetLastUserMessage(sessionID string) (*model.ChatMessage, error)
	GetAssistantAt(sessionID string, sequenceOrder int) (*model.ChatMessage, error)
	GetAssistantAfter(sessionID string, t time.Time) (*model.ChatMessage, error)
	SearchMessagesByKeywords(userID, agentID, sessionID string, words []string, limit int) ([]*model.ChatMessage, error)
	AppendExchange(sessionID string, user, assistant *model.ChatMessage) error
}

// VectorSearcher is the nearest-neighbor lookup over message embeddings.
// Implemented by repository.EmbeddingRepository; may be nil when the index is
// unavailable, in which case retrieval degrades to text search.
type VectorSearcher interface {
	SearchNearest(userID, agentID, sessionID string, vec []float32, maxDistance float64, limit int) ([]repository.NearestMessage, error)
}

// Embedder turns text into a query vector. Implemented by embedding.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EnrichmentScheduler accepts background embedding work. Schedule must never
// block; it reports false when the work could not be accepted.
type EnrichmentScheduler interface {
	Schedule(msg *model.ChatMessage, userID, agentID string) bool
}
