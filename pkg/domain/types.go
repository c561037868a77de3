package domain

import "time"

// GenerationRequest carries one bounded generation call to the backend.
type GenerationRequest struct {
	SystemInstruction string `json:"systemInstruction"`
	UserText          string `json:"userText"`
	MaxOutputTokens   int    `json:"maxOutputTokens"`
}

// GenerationResult is the single string outcome of a request.
// Immutable after creation; not persisted unless the caller exports it.
type GenerationResult struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Conversation struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	Title         string     `json:"title"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversationId"`
	Role           string            `json:"role"`
	Content        string            `json:"content"`
	Meta           map[string]string `json:"meta,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// ChatReply is the outcome of one chat turn.
type ChatReply struct {
	ConversationID string    `json:"conversationId"`
	Message        string    `json:"message"`
	Reply          string    `json:"reply"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Settings is session-scoped UI state, passed explicitly to handlers
// rather than kept in ambient globals.
type Settings struct {
	AssistantName  string `json:"assistantName"`
	ResponseStyle  string `json:"responseStyle"`
	HistoryLimit   int    `json:"historyLimit"`
	ShowTimestamps bool   `json:"showTimestamps"`
}

// DefaultSettings returns the state a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		AssistantName:  "Briefly Assistant",
		ResponseStyle:  "Friendly",
		HistoryLimit:   30,
		ShowTimestamps: true,
	}
}

// Artifact describes an exported conversation transcript in object storage.
type Artifact struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	StorageKey     string    `json:"-"`
	DownloadURL    string    `json:"downloadUrl,omitempty"`
	SizeBytes      int64     `json:"sizeBytes"`
	CreatedAt      time.Time `json:"createdAt"`
}
