package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/raki39/FRONTGraph-sub001/internal/history"
)

// HistoryHandler exposes the context-retrieval and capture endpoints.
type HistoryHandler struct {
	svc *history.Service
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(svc *history.Service) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// RetrieveContextRequest is the inbound payload for context assembly.
type RetrieveContextRequest struct {
	UserID       string `json:"user_id"`
	AgentID      string `json:"agent_id"`
	QuestionText string `json:"question_text" binding:"required"`
	SessionID    string `json:"session_id"`
}

// RetrieveContext assembles the prompt context for a new question. The read
// path never fails the caller; degraded retrieval returns an empty context.
func (h *HistoryHandler) RetrieveContext(c *gin.Context) {
	var req RetrieveContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result := h.svc.RetrieveContext(c.Request.Context(), req.UserID, req.AgentID, req.QuestionText, req.SessionID)
	Success(c, result)
}

// CaptureExchangeRequest is the inbound payload for exchange capture.
type CaptureExchangeRequest struct {
	UserID        string `json:"user_id"`
	AgentID       string `json:"agent_id"`
	SessionID     string `json:"session_id"`
	QuestionText  string `json:"question_text" binding:"required"`
	AnswerText    string `json:"answer_text" binding:"required"`
	SQL           string `json:"sql"`
	ExternalRunID string `json:"external_run_id"`
}

// CaptureExchange records a completed exchange. Write failures surface to
// the caller with a status distinguishing resolution from rejection.
func (h *HistoryHandler) CaptureExchange(c *gin.Context) {
	var req CaptureExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.svc.CaptureExchange(c.Request.Context(), history.CaptureRequest{
		UserID:        req.UserID,
		AgentID:       req.AgentID,
		SessionID:     req.SessionID,
		QuestionText:  req.QuestionText,
		AnswerText:    req.AnswerText,
		SQL:           req.SQL,
		ExternalRunID: req.ExternalRunID,
	})
	if err != nil {
		switch {
		case errors.Is(err, history.ErrSessionNotResolved):
			NotFound(c, err.Error())
		case errors.Is(err, history.ErrWriteRejected):
			UnprocessableEntity(c, err.Error())
		default:
			InternalServerError(c, err.Error())
		}
		return
	}

	Created(c, result)
}
