package chatstore

import (
	"context"

	"jan-client/chat-core/internal/domain/chat"
)

// Transport is the backend client the stores drive. Streaming calls
// return a channel that delivers the session's events in arrival order
// and closes after the terminal complete or error event; a transport
// level failure mid-stream surfaces as a final ErrorEvent before the
// channel closes.
type Transport interface {
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
	ListConversations(ctx context.Context) ([]chat.ConversationSummary, error)
	CreateConversation(ctx context.Context, req CreateConversationRequest) (*chat.Conversation, error)
	ListMessages(ctx context.Context, conversationID, branchID string) ([]chat.Message, error)
	SwitchBranch(ctx context.Context, conversationID, branchID string) error
	ListMessageBranches(ctx context.Context, messageID string) ([]chat.MessageBranch, error)
	ResolveFiles(ctx context.Context, fileIDs []string) ([]chat.File, error)
	SendMessageStream(ctx context.Context, req SendMessageRequest) (<-chan chat.StreamEvent, error)
	EditMessageStream(ctx context.Context, req EditMessageRequest) (<-chan chat.StreamEvent, error)
}

// BranchDisposer tears down message-branch bookkeeping that an edit
// made stale. Implemented by the branchstore registry.
type BranchDisposer interface {
	RemoveByOriginatedID(originatedID string)
}

type CreateConversationRequest struct {
	Title       string `json:"title"`
	AssistantID string `json:"assistant_id,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
}

type SendMessageRequest struct {
	ConversationID string   `json:"conversation_id" validate:"required"`
	Content        string   `json:"content" validate:"required"`
	AssistantID    string   `json:"assistant_id" validate:"required"`
	ModelID        string   `json:"model_id" validate:"required"`
	FileIDs        []string `json:"file_ids,omitempty"`
	EnabledTools   []string `json:"enabled_tools,omitempty"`
}

type EditMessageRequest struct {
	ConversationID string   `json:"conversation_id" validate:"required"`
	MessageID      string   `json:"message_id" validate:"required"`
	Content        string   `json:"content" validate:"required"`
	AssistantID    string   `json:"assistant_id,omitempty"`
	ModelID        string   `json:"model_id,omitempty"`
	EnabledTools   []string `json:"enabled_tools,omitempty"`
}
