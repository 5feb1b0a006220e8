package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
)

// ChatRepository handles chat session and message persistence.
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates the chat repository.
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateSession inserts a new session.
func (r *ChatRepository) CreateSession(session *model.ChatSession) error {
	return r.db.Create(session).Error
}

// GetSessionByID loads a session without its messages.
func (r *ChatRepository) GetSessionByID(id string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveSession returns the most recently active session for the
// (user, agent) pair whose last_activity is at or after the cutoff, or nil
// when none qualifies.
func (r *ChatRepository) FindActiveSession(userID, agentID string, since time.Time) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("user_id = ? AND agent_id = ? AND status = ? AND last_activity >= ?",
		userID, agentID, model.SessionStatusActive, since).
		Order("last_activity DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// TouchSession bumps last_activity on a session.
func (r *ChatRepository) TouchSession(id string, at time.Time) error {
	return r.db.Model(&model.ChatSession{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
}

// ListSessions lists sessions for a user, newest activity first.
func (r *ChatRepository) ListSessions(userID, agentID string, offset, limit int) ([]*model.ChatSession, error) {
	var sessions []*model.ChatSession
	query := r.db.Order("last_activity DESC").Offset(offset).Limit(limit)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if agentID != "" {
		query = query.Where("agent_id = ?", agentID)
	}
	err := query.Find(&sessions).Error
	return sessions, err
}

// GetMessagesBySessionID returns all messages of a session in sequence order.
func (r *ChatRepository) GetMessagesBySessionID(sessionID string) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("sequence_order ASC").
		Find(&messages).Error
	return messages, err
}

// GetRecentMessages returns the newest messages of a session by sequence order.
func (r *ChatRepository) GetRecentMessages(sessionID string, limit int) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("sequence_order DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// GetLastUserMessage returns the user message with the highest sequence_order,
// or nil when the session has none.
func (r *ChatRepository) GetLastUserMessage(sessionID string) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.Where("session_id = ? AND role = ?", sessionID, model.RoleUser).
		Order("sequence_order DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetAssistantAt returns the assistant message at an exact sequence position,
// or nil when absent.
func (r *ChatRepository) GetAssistantAt(sessionID string, sequenceOrder int) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.Where("session_id = ? AND role = ? AND sequence_order = ?",
		sessionID, model.RoleAssistant, sequenceOrder).
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetAssistantAfter returns the earliest assistant message created at or after
// the given time, or nil when absent. Used when clock skew or gaps break the
// sequence_order+1 pairing.
func (r *ChatRepository) GetAssistantAfter(sessionID string, t time.Time) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.Where("session_id = ? AND role = ? AND created_at >= ?",
		sessionID, model.RoleAssistant, t).
		Order("created_at ASC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// SearchMessagesByKeywords matches user messages whose content contains any of
// the given words, case-insensitive. Scoped to the session when sessionID is
// set, otherwise to the (user, agent) pair.
func (r *ChatRepository) SearchMessagesByKeywords(userID, agentID, sessionID string, words []string, limit int) ([]*model.ChatMessage, error) {
	if len(words) == 0 {
		return nil, nil
	}

	query := r.db.Where("role = ?", model.RoleUser)
	if sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	} else {
		query = query.Where(
			"session_id IN (?)",
			r.db.Model(&model.ChatSession{}).Select("id").
				Where("user_id = ? AND agent_id = ?", userID, agentID),
		)
	}

	cond := r.db.Where("content ILIKE ?", "%"+words[0]+"%")
	for _, w := range words[1:] {
		cond = cond.Or("content ILIKE ?", "%"+w+"%")
	}

	var messages []*model.ChatMessage
	err := query.Where(cond).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// AppendExchange appends a user/assistant pair atomically. Sequence numbers
// are assigned inside the transaction as max(sequence_order)+1 and +2, and the
// session counters are updated in the same commit.
func (r *ChatRepository) AppendExchange(sessionID string, user, assistant *model.ChatMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		err := tx.Model(&model.ChatMessage{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(sequence_order), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return fmt.Errorf("failed to read sequence: %w", err)
		}

		user.SessionID = sessionID
		user.Role = model.RoleUser
		user.SequenceOrder = maxSeq + 1
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to insert user message: %w", err)
		}

		assistant.SessionID = sessionID
		assistant.Role = model.RoleAssistant
		assistant.SequenceOrder = maxSeq + 2
		if err := tx.Create(assistant).Error; err != nil {
			return fmt.Errorf("failed to insert assistant message: %w", err)
		}

		return tx.Model(&model.ChatSession{}).
			Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"total_messages": gorm.Expr("total_messages + 2"),
				"last_activity":  assistant.CreatedAt,
			}).Error
	})
}
