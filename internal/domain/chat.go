package domain

// Chat roles accepted from clients and sent upstream.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape shared by the
// browser-facing API, the client core and the upstream integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body accepted by the chat endpoint.
type ChatRequest struct {
	Prompt  string        `json:"prompt"`
	Context string        `json:"context,omitempty"`
	History []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the JSON body returned by the chat endpoint on success.
type ChatResponse struct {
	Content string `json:"content"`
}

// ErrorResponse is the JSON body returned by the chat endpoint on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}
