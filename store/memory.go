package store

import (
	"context"
	"sync"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]plan.ConversationMessage
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]plan.ConversationMessage)}
}

func (m *Memory) Load(_ context.Context, sessionID string) ([]plan.ConversationMessage, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.sessions[sessionID]), nil
}

func (m *Memory) Save(_ context.Context, sessionID string, msgs []plan.ConversationMessage) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = clone(msgs)
	return nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
