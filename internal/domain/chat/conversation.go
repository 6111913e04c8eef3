package chat

import (
	"strings"
	"time"
)

// ===============================================
// Conversation Types
// ===============================================

// Conversation is the client-side view of a conversation. Title and
// ActiveBranchID are mutable: the server renames conversations via
// titleUpdated stream events and branch switches move ActiveBranchID.
type Conversation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	AssistantID    string    `json:"assistant_id,omitempty"`
	ModelID        string    `json:"model_id,omitempty"`
	ActiveBranchID string    `json:"active_branch_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConversationSummary is the list-view projection of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AssistantID  string    `json:"assistant_id,omitempty"`
	ModelID      string    `json:"model_id,omitempty"`
	LastMessage  string    `json:"last_message,omitempty"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MessageBranch is one version in the edit history of a logical
// message. Branch siblings share the originated-from id of the message
// they were forked around.
type MessageBranch struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	IsClone        bool      `json:"is_clone"`
	CreatedAt      time.Time `json:"created_at"`
}

// File is a resolved message attachment.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// DeriveTitle produces a fallback conversation title from the first
// user message, truncated at a word boundary.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "New Conversation"
	}
	if len(content) <= 60 {
		return content
	}
	truncated := content[:60]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 30 {
		return content[:lastSpace] + "..."
	}
	return truncated + "..."
}
