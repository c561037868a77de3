package app

import (
	"fmt"
	"strings"

	"briefly/pkg/domain"
)

// EmptyInputGuidance is the fixed user-facing message returned instead of
// dispatching when the input is empty after trimming.
const EmptyInputGuidance = "Please enter text."

const defaultConversationTitle = "New Chat"

const defaultSummarySystemPrompt = "You are a careful writing assistant. Summarize the user's text clearly and concisely, keeping the key points."

// systemPromptForStyle renders the session's response style into the fixed
// system directive for chat turns.
func systemPromptForStyle(settings domain.Settings) string {
	var directive string
	switch settings.ResponseStyle {
	case "Friendly":
		directive = "Be friendly, clear, and helpful."
	case "Professional":
		directive = "Be professional, structured, and concise."
	case "Direct":
		directive = "Be direct, no fluff, focus on actions."
	default:
		directive = "Be helpful."
	}
	name := strings.TrimSpace(settings.AssistantName)
	if name == "" {
		return directive
	}
	return fmt.Sprintf("You are %s. %s", name, directive)
}

// buildChatPrompt folds prior history and the current message into the
// literal user part of the prompt. History order is preserved.
func buildChatPrompt(history []domain.Message, message string) string {
	historyText := buildHistory(history)
	if historyText == "" {
		return message
	}
	return fmt.Sprintf("Conversation so far:\n%s\n\nCurrent message: %s", historyText, message)
}

func buildHistory(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		switch role {
		case "user":
			role = "User"
		case "assistant":
			role = "Assistant"
		default:
			role = "Message"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// generateConversationTitle turns the first user message into a short title:
// the first six words, capped at 40 runes.
func generateConversationTitle(message string) string {
	words := strings.Fields(strings.TrimSpace(message))
	if len(words) == 0 {
		return defaultConversationTitle
	}
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	runes := []rune(title)
	if len(runes) > 40 {
		title = string(runes[:40])
	}
	return title
}

// clampTokens bounds the caller-supplied output limit to the configured
// range, using the default when no bound is given.
func clampTokens(requested, min, max, fallback int) int {
	if requested <= 0 {
		return fallback
	}
	if requested < min {
		return min
	}
	if requested > max {
		return max
	}
	return requested
}

// truncateInput bounds the literal user text before dispatch, so backend
// truncation behavior is never inherited implicitly.
func truncateInput(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
