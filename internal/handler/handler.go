package handler

import (
	"github.com/raki39/FRONTGraph-sub001/internal/history"
	"github.com/raki39/FRONTGraph-sub001/internal/repository"
)

// Handlers groups all HTTP handlers.
type Handlers struct {
	History *HistoryHandler
	Session *SessionHandler
}

// NewHandlers creates all handlers.
func NewHandlers(svc *history.Service, repos *repository.Repositories) *Handlers {
	return &Handlers{
		History: NewHistoryHandler(svc),
		Session: NewSessionHandler(repos.Chat),
	}
}
