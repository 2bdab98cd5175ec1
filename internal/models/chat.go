package models

import "time"

// ChatRequest is the body of POST /api/chat/.
type ChatRequest struct {
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ChatSuggestions is the body of GET /api/chat/suggestions.
type ChatSuggestions struct {
	Suggestions []string `json:"suggestions"`
	Context     string   `json:"context"`
	User        string   `json:"user"`
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"message"`
	Sender    Sender                 `json:"sender"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
}
