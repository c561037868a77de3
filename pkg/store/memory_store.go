package store

import (
	"sync"
	"time"

	"briefly/pkg/domain"
)

// MemoryStore keeps conversations, messages, and settings in-process.
// Useful for tests and single-node deployments without Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	convs     map[string]domain.Conversation
	order     []string
	messages  map[string][]domain.Message
	artifacts map[string]domain.Artifact
	settings  map[string]domain.Settings
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:     make(map[string]domain.Conversation),
		messages:  make(map[string][]domain.Message),
		artifacts: make(map[string]domain.Artifact),
		settings:  make(map[string]domain.Settings),
	}
}

// CreateConversation stores a conversation and tracks insertion order.
func (m *MemoryStore) CreateConversation(c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.convs[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.convs[c.ID] = c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	return c, ok, nil
}

// ListConversationsBySession returns a session's conversations,
// most recently created first.
func (m *MemoryStore) ListConversationsBySession(sessionID string, limit int) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0, limit)
	for i := len(m.order) - 1; i >= 0; i-- {
		c, ok := m.convs[m.order[i]]
		if !ok || c.SessionID != sessionID {
			continue
		}
		res = append(res, c)
		if limit > 0 && len(res) >= limit {
			break
		}
	}
	return res, nil
}

// UpdateConversation sets an optional new title and the last message time.
func (m *MemoryStore) UpdateConversation(id string, title string, lastMessageAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil
	}
	if title != "" {
		c.Title = title
	}
	if !lastMessageAt.IsZero() {
		t := lastMessageAt
		c.LastMessageAt = &t
	}
	c.UpdatedAt = time.Now().UTC()
	m.convs[id] = c
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (m *MemoryStore) DeleteConversation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, id)
	delete(m.messages, id)
	filtered := m.order[:0]
	for _, item := range m.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.order = filtered
	return nil
}

// AppendMessage records a message at the end of a conversation's history.
func (m *MemoryStore) AppendMessage(conversationID string, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return nil
}

// ListMessages returns messages in chronological order, capped at limit.
// A positive limit keeps the most recent messages.
func (m *MemoryStore) ListMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}

// SaveArtifact records an export artifact.
func (m *MemoryStore) SaveArtifact(a domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.ID] = a
	return nil
}

// GetArtifact returns an artifact by ID.
func (m *MemoryStore) GetArtifact(id string) (domain.Artifact, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id]
	return a, ok, nil
}

// DeleteArtifactsByConversation removes a conversation's artifact records
// and returns them so callers can clean up the backing objects.
func (m *MemoryStore) DeleteArtifactsByConversation(conversationID string) ([]domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []domain.Artifact
	for id, a := range m.artifacts {
		if a.ConversationID == conversationID {
			removed = append(removed, a)
			delete(m.artifacts, id)
		}
	}
	return removed, nil
}

// GetSettings returns session settings when present.
func (m *MemoryStore) GetSettings(sessionID string) (domain.Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[sessionID]
	return s, ok, nil
}

// SaveSettings stores session settings.
func (m *MemoryStore) SaveSettings(sessionID string, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[sessionID] = s
	return nil
}
