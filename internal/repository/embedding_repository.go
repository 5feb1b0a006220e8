package repository

import (
	"errors"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
)

// EmbeddingRepository stores message embeddings and runs nearest-neighbor
// queries over them.
type EmbeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates the embedding repository.
func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// NearestMessage is one semantic search hit: the matched user message and its
// cosine distance to the query vector.
type NearestMessage struct {
	Message  *model.ChatMessage
	Distance float64
}

// Save upserts the embedding for a message.
func (r *EmbeddingRepository) Save(emb *model.MessageEmbedding) error {
	return r.db.Save(emb).Error
}

// GetByMessageID loads the embedding for one message, or nil when absent.
func (r *EmbeddingRepository) GetByMessageID(messageID string) (*model.MessageEmbedding, error) {
	var emb model.MessageEmbedding
	err := r.db.Where("message_id = ?", messageID).First(&emb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// nearestRow is the raw scan target for the vector query.
type nearestRow struct {
	model.ChatMessage
	Distance float64
}

// SearchNearest returns up to limit user messages whose embedding is within
// maxDistance (cosine) of the query vector, scoped to user/agent and
// optionally to one session. The whole lookup runs in its own transaction so
// a mid-query fault leaves the connection clean for the textual fallback.
func (r *EmbeddingRepository) SearchNearest(userID, agentID, sessionID string, vec []float32, maxDistance float64, limit int) ([]NearestMessage, error) {
	var rows []nearestRow

	err := r.db.Transaction(func(tx *gorm.DB) error {
		query := tx.Table("message_embeddings").
			Select("chat_messages.*, message_embeddings.embedding <=> ? AS distance", pgvector.NewVector(vec)).
			Joins("JOIN chat_messages ON chat_messages.id = message_embeddings.message_id").
			Where("chat_messages.role = ?", model.RoleUser).
			Where("message_embeddings.user_id = ? AND message_embeddings.agent_id = ?", userID, agentID)
		if sessionID != "" {
			query = query.Where("message_embeddings.session_id = ?", sessionID)
		}
		return query.
			Where("message_embeddings.embedding <=> ? <= ?", pgvector.NewVector(vec), maxDistance).
			Order("distance ASC").
			Limit(limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	results := make([]NearestMessage, 0, len(rows))
	for i := range rows {
		msg := rows[i].ChatMessage
		results = append(results, NearestMessage{Message: &msg, Distance: rows[i].Distance})
	}
	return results, nil
}
