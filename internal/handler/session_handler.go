package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/raki39/FRONTGraph-sub001/internal/repository"
)

// SessionHandler exposes read access to sessions and their messages.
type SessionHandler struct {
	repo *repository.ChatRepository
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(repo *repository.ChatRepository) *SessionHandler {
	return &SessionHandler{repo: repo}
}

// ListSessions lists sessions filtered by user and agent, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	agentID := c.Query("agent_id")

	sessions, err := h.repo.ListSessions(userID, agentID, 0, 50)
	if err != nil {
		InternalServerError(c, "failed to list sessions: "+err.Error())
		return
	}
	Success(c, sessions)
}

// GetSession returns one session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.repo.GetSessionByID(c.Param("id"))
	if err != nil {
		NotFound(c, "session not found")
		return
	}
	Success(c, session)
}

// GetMessages returns all messages of a session in sequence order.
func (h *SessionHandler) GetMessages(c *gin.Context) {
	messages, err := h.repo.GetMessagesBySessionID(c.Param("id"))
	if err != nil {
		InternalServerError(c, "failed to load messages: "+err.Error())
		return
	}
	Success(c, messages)
}
