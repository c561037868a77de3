package export

import (
	"strings"
	"time"

	"briefly/pkg/domain"
)

// RenderTranscript formats a conversation as plain UTF-8 text, one block
// per message. Timestamps are included only when the session asks for them.
func RenderTranscript(conv domain.Conversation, messages []domain.Message, settings domain.Settings) string {
	assistant := strings.TrimSpace(settings.AssistantName)
	if assistant == "" {
		assistant = "Assistant"
	}

	var sb strings.Builder
	sb.WriteString("Chat: " + conv.Title + "\n")
	sb.WriteString("Exported: " + time.Now().UTC().Format(time.RFC3339) + "\n\n")
	for _, msg := range messages {
		label := "You"
		if msg.Role == "assistant" {
			label = assistant
		}
		if settings.ShowTimestamps && !msg.CreatedAt.IsZero() {
			sb.WriteString("[" + msg.CreatedAt.UTC().Format("15:04:05") + "] ")
		}
		sb.WriteString(label + ": " + msg.Content + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
