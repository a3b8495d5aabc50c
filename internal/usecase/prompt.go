package usecase

import (
	"strings"

	"site-assistant/internal/domain"
)

type promptContext struct {
	ownerName  string
	ownerTitle string
	context    string
}

func buildPromptMessages(ctx promptContext, prompt string, history []domain.ChatMessage) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: buildSystemPrompt(ctx),
	})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: prompt,
	})
	return messages
}

func buildSystemPrompt(ctx promptContext) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant for ")
	sb.WriteString(strings.TrimSpace(ctx.ownerName))
	if title := strings.TrimSpace(ctx.ownerTitle); title != "" {
		sb.WriteString(", a ")
		sb.WriteString(title)
	}
	sb.WriteString(".")
	if extra := strings.TrimSpace(ctx.context); extra != "" {
		sb.WriteString(" ")
		sb.WriteString(extra)
	}
	return sb.String()
}

// selectHistory keeps the most recent limit turns that have a client role and
// non-empty content. System turns from clients are never replayed.
func selectHistory(history []domain.ChatMessage, limit int) []domain.ChatMessage {
	valid := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
			valid = append(valid, domain.ChatMessage{Role: m.Role, Content: content})
		}
	}
	if limit > 0 && len(valid) > limit {
		valid = valid[len(valid)-limit:]
	}
	return valid
}
