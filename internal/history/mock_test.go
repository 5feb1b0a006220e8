package history

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
	"github.com/raki39/FRONTGraph-sub001/internal/repository"
)

// baseTime anchors deterministic timestamps in tests.
var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

var errSessionMissing = errors.New("session not found")

// mockStore is an in-memory MessageStore with per-method error injection.
type mockStore struct {
	sessions map[string]*model.ChatSession
	messages map[string][]*model.ChatMessage

	clock time.Time

	createSessionErr error
	getSessionErr    error
	findActiveErr    error
	recentErr        error
	lastUserErr      error
	assistantAtErr   error
	searchErr        error
	appendErr        error

	touched []string
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: make(map[string]*model.ChatSession),
		messages: make(map[string][]*model.ChatMessage),
		clock:    baseTime,
	}
}

// nextTime returns strictly increasing timestamps.
func (m *mockStore) nextTime() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// addMessage appends a message with the next sequence number and timestamp.
func (m *mockStore) addMessage(sessionID, role, content, sqlQuery string) *model.ChatMessage {
	msgs := m.messages[sessionID]
	msg := &model.ChatMessage{
		ID:            sessionID + "-" + role + "-" + string(rune('a'+len(msgs))),
		SessionID:     sessionID,
		Role:          role,
		Content:       content,
		SQLQuery:      sqlQuery,
		SequenceOrder: len(msgs) + 1,
		CreatedAt:     m.nextTime(),
	}
	m.messages[sessionID] = append(msgs, msg)
	return msg
}

func (m *mockStore) CreateSession(session *model.ChatSession) error {
	if m.createSessionErr != nil {
		return m.createSessionErr
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockStore) GetSessionByID(id string) (*model.ChatSession, error) {
	if m.getSessionErr != nil {
		return nil, m.getSessionErr
	}
	if session, ok := m.sessions[id]; ok {
		return session, nil
	}
	return nil, errSessionMissing
}

func (m *mockStore) FindActiveSession(userID, agentID string, since time.Time) (*model.ChatSession, error) {
	if m.findActiveErr != nil {
		return nil, m.findActiveErr
	}
	var best *model.ChatSession
	for _, s := range m.sessions {
		if s.UserID != userID || s.AgentID != agentID || s.Status != model.SessionStatusActive {
			continue
		}
		if s.LastActivity.Before(since) {
			continue
		}
		if best == nil || s.LastActivity.After(best.LastActivity) {
			best = s
		}
	}
	return best, nil
}

func (m *mockStore) TouchSession(id string, at time.Time) error {
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = at
	}
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockStore) GetRecentMessages(sessionID string, limit int) ([]*model.ChatMessage, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	msgs := append([]*model.ChatMessage{}, m.messages[sessionID]...)
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].SequenceOrder > msgs[j].SequenceOrder
	})
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *mockStore) GetLastUserMessage(sessionID string) (*model.ChatMessage, error) {
	if m.lastUserErr != nil {
		return nil, m.lastUserErr
	}
	var last *model.ChatMessage
	for _, msg := range m.messages[sessionID] {
		if msg.Role != model.RoleUser {
			continue
		}
		if last == nil || msg.SequenceOrder > last.SequenceOrder {
			last = msg
		}
	}
	return last, nil
}

func (m *mockStore) GetAssistantAt(sessionID string, sequenceOrder int) (*model.ChatMessage, error) {
	if m.assistantAtErr != nil {
		return nil, m.assistantAtErr
	}
	for _, msg := range m.messages[sessionID] {
		if msg.Role == model.RoleAssistant && msg.SequenceOrder == sequenceOrder {
			return msg, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetAssistantAfter(sessionID string, t time.Time) (*model.ChatMessage, error) {
	var earliest *model.ChatMessage
	for _, msg := range m.messages[sessionID] {
		if msg.Role != model.RoleAssistant || msg.CreatedAt.Before(t) {
			continue
		}
		if earliest == nil || msg.CreatedAt.Before(earliest.CreatedAt) {
			earliest = msg
		}
	}
	return earliest, nil
}

func (m *mockStore) SearchMessagesByKeywords(userID, agentID, sessionID string, words []string, limit int) ([]*model.ChatMessage, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var matched []*model.ChatMessage
	for sid, msgs := range m.messages {
		if sessionID != "" && sid != sessionID {
			continue
		}
		for _, msg := range msgs {
			if msg.Role != model.RoleUser {
				continue
			}
			content := strings.ToLower(msg.Content)
			for _, w := range words {
				if strings.Contains(content, w) {
					matched = append(matched, msg)
					break
				}
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *mockStore) AppendExchange(sessionID string, user, assistant *model.ChatMessage) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	msgs := m.messages[sessionID]
	maxSeq := 0
	for _, msg := range msgs {
		if msg.SequenceOrder > maxSeq {
			maxSeq = msg.SequenceOrder
		}
	}

	user.SessionID = sessionID
	user.Role = model.RoleUser
	user.SequenceOrder = maxSeq + 1
	user.CreatedAt = m.nextTime()

	assistant.SessionID = sessionID
	assistant.Role = model.RoleAssistant
	assistant.SequenceOrder = maxSeq + 2
	assistant.CreatedAt = m.nextTime()

	m.messages[sessionID] = append(msgs, user, assistant)

	if s, ok := m.sessions[sessionID]; ok {
		s.TotalMessages += 2
		s.LastActivity = assistant.CreatedAt
	}
	return nil
}

// mockVectors is a canned VectorSearcher.
type mockVectors struct {
	hits  []repository.NearestMessage
	err   error
	calls int
}

func (m *mockVectors) SearchNearest(userID, agentID, sessionID string, vec []float32, maxDistance float64, limit int) ([]repository.NearestMessage, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

// mockEmbedder returns a fixed vector.
type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

// mockScheduler records scheduled messages.
type mockScheduler struct {
	scheduled []*model.ChatMessage
	reject    bool
}

func (m *mockScheduler) Schedule(msg *model.ChatMessage, userID, agentID string) bool {
	if m.reject {
		return false
	}
	m.scheduled = append(m.scheduled, msg)
	return true
}
