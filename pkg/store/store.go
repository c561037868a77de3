package store

import (
	"time"

	"briefly/pkg/domain"
)

// Store defines persistence operations for conversations, messages, and
// export artifacts. History order is append-only and preserved.
type Store interface {
	// conversations
	CreateConversation(c domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversationsBySession(sessionID string, limit int) ([]domain.Conversation, error)
	UpdateConversation(id string, title string, lastMessageAt time.Time) error
	DeleteConversation(id string) error

	// messages
	AppendMessage(conversationID string, msg domain.Message) error
	ListMessages(conversationID string, limit int) ([]domain.Message, error)

	// export artifacts
	SaveArtifact(a domain.Artifact) error
	GetArtifact(id string) (domain.Artifact, bool, error)
	DeleteArtifactsByConversation(conversationID string) ([]domain.Artifact, error)
}

// SettingsStore persists session-scoped settings.
type SettingsStore interface {
	GetSettings(sessionID string) (domain.Settings, bool, error)
	SaveSettings(sessionID string, s domain.Settings) error
}
