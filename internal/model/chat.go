package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Session status values.
const (
	SessionStatusActive   = "active"
	SessionStatusArchived = "archived"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatSession is one bounded conversation between a user and an agent.
// At most one active session per (user, agent) is preferred within a rolling
// 24-hour window; older sessions are not retroactively deactivated.
type ChatSession struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"index:idx_sessions_user_agent;size:36" json:"user_id"`
	AgentID       string    `gorm:"index:idx_sessions_user_agent;size:36" json:"agent_id"`
	Title         string    `gorm:"size:255" json:"title"`
	Status        string    `gorm:"index;size:20;default:active" json:"status"`
	TotalMessages int       `gorm:"default:0" json:"total_messages"`
	LastActivity  time.Time `gorm:"index" json:"last_activity"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Messages []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

// ChatMessage is a single message inside a session. SequenceOrder is assigned
// at write time as max(sequence_order)+1 and totally orders the session.
type ChatMessage struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID     string         `gorm:"index:idx_messages_session_seq;size:36" json:"session_id"`
	Role          string         `gorm:"size:20;index" json:"role"` // user, assistant, system
	Content       string         `gorm:"type:text" json:"content"`
	SQLQuery      string         `gorm:"column:sql_query;type:text" json:"sql_query,omitempty"`
	SequenceOrder int            `gorm:"index:idx_messages_session_seq" json:"sequence_order"`
	Metadata      datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// MessageEmbedding holds the vector for one user-role message. Absence is
// legal; semantic search simply skips that message.
type MessageEmbedding struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	MessageID string          `gorm:"uniqueIndex;size:36" json:"message_id"`
	SessionID string          `gorm:"index;size:36" json:"session_id"`
	UserID    string          `gorm:"index;size:36" json:"user_id"`
	AgentID   string          `gorm:"index;size:36" json:"agent_id"`
	Model     string          `gorm:"size:128" json:"model"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (MessageEmbedding) TableName() string {
	return "message_embeddings"
}
