package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ===============================================
// Message Types
// ===============================================

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentTypeText                    ContentType = "text"
	ContentTypeToolCall                ContentType = "tool_call"
	ContentTypeToolCallPendingApproval ContentType = "tool_call_pending_approval"
	ContentTypeToolResult              ContentType = "tool_result"
)

// StreamingTempMessageID is the transient placeholder id appended
// during an edit while the regenerated assistant response streams in.
const StreamingTempMessageID = "streaming-temp"

// Message is one entry in a conversation branch. The ID starts as a
// client-generated UUID and is swapped exactly once for the server id;
// OriginatedFromID is the stable identity surviving edits and is used
// to correlate branch siblings.
type Message struct {
	ID               string        `json:"id"`
	ConversationID   string        `json:"conversation_id"`
	Role             Role          `json:"role"`
	Contents         []ContentItem `json:"contents,omitempty"`
	OriginatedFromID string        `json:"originated_from_id,omitempty"`
	EditCount        int           `json:"edit_count,omitempty"`
	Files            []File        `json:"files,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ContentItem is one ordered part of a message. Items are appended,
// never reordered; streaming only appends deltas to the Text payload
// of an existing item.
type ContentItem struct {
	ID         string             `json:"id"`
	MessageID  string             `json:"message_id"`
	Type       ContentType        `json:"content_type"`
	Sequence   int                `json:"sequence_order"`
	Text       string             `json:"text,omitempty"`
	ToolCall   *ToolCallContent   `json:"tool_call,omitempty"`
	ToolResult *ToolResultContent `json:"tool_result,omitempty"`
}

// ToolCallContent is the payload of tool_call and
// tool_call_pending_approval items. AwaitingApproval is true while a
// pending-approval item waits on the user and is flipped false when
// the server cancels the approval request.
type ToolCallContent struct {
	CallID           string          `json:"call_id,omitempty"`
	ToolName         string          `json:"tool_name"`
	ServerID         string          `json:"server_id,omitempty"`
	Arguments        json.RawMessage `json:"arguments,omitempty"`
	AwaitingApproval bool            `json:"awaiting_approval,omitempty"`
}

// ToolResultContent is the payload of tool_result items.
type ToolResultContent struct {
	CallID       string          `json:"call_id"`
	Result       json.RawMessage `json:"result,omitempty"`
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// ===============================================
// Factory Functions
// ===============================================

// NewUserMessage builds the optimistic local user message appended
// before the streaming request is opened.
func NewUserMessage(conversationID, content string, files []File) Message {
	now := time.Now().UTC()
	id := uuid.NewString()
	return Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           RoleUser,
		Contents: []ContentItem{{
			ID:        uuid.NewString(),
			MessageID: id,
			Type:      ContentTypeText,
			Sequence:  0,
			Text:      content,
		}},
		Files:     files,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewAssistantPlaceholder builds the empty assistant message that
// stream events fill in.
func NewAssistantPlaceholder(conversationID string) Message {
	now := time.Now().UTC()
	return Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           RoleAssistant,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewStreamingTempMessage builds the transient placeholder used during
// an edit.
func NewStreamingTempMessage(conversationID string) Message {
	now := time.Now().UTC()
	return Message{
		ID:             StreamingTempMessageID,
		ConversationID: conversationID,
		Role:           RoleAssistant,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ===============================================
// Message Mutations
// ===============================================

// SetID replaces the message id and every content item's MessageID in
// lockstep. This happens exactly once per lifecycle, when the server
// confirms the real id for a client-generated placeholder.
func (m *Message) SetID(id string) {
	m.ID = id
	for i := range m.Contents {
		m.Contents[i].MessageID = id
	}
}

// AppendContent adds a content item at the next sequence position.
func (m *Message) AppendContent(item ContentItem) {
	item.MessageID = m.ID
	item.Sequence = len(m.Contents)
	m.Contents = append(m.Contents, item)
	m.UpdatedAt = time.Now().UTC()
}

// AppendDelta appends delta to the text payload of the content item
// with the given id. It reports whether the item was found; empty
// deltas are a no-op.
func (m *Message) AppendDelta(contentID, delta string) bool {
	if delta == "" {
		return true
	}
	for i := range m.Contents {
		if m.Contents[i].ID == contentID {
			m.Contents[i].Text += delta
			m.UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// ContentByID returns a pointer to the content item with the given id.
func (m *Message) ContentByID(contentID string) *ContentItem {
	for i := range m.Contents {
		if m.Contents[i].ID == contentID {
			return &m.Contents[i]
		}
	}
	return nil
}

// TextContent concatenates the text payloads of the message in
// sequence order.
func (m *Message) TextContent() string {
	var out string
	for _, item := range m.Contents {
		if item.Type == ContentTypeText {
			out += item.Text
		}
	}
	return out
}

// RewriteText replaces the message contents with a single text item,
// used when an edit rewrites a message in place.
func (m *Message) RewriteText(content string) {
	m.Contents = []ContentItem{{
		ID:        uuid.NewString(),
		MessageID: m.ID,
		Type:      ContentTypeText,
		Sequence:  0,
		Text:      content,
	}}
	m.UpdatedAt = time.Now().UTC()
}

// Clone deep-copies the message so cached snapshots do not alias live
// store state.
func (m Message) Clone() Message {
	out := m
	if m.Contents != nil {
		out.Contents = make([]ContentItem, len(m.Contents))
		copy(out.Contents, m.Contents)
		for i := range out.Contents {
			if tc := out.Contents[i].ToolCall; tc != nil {
				copied := *tc
				out.Contents[i].ToolCall = &copied
			}
			if tr := out.Contents[i].ToolResult; tr != nil {
				copied := *tr
				out.Contents[i].ToolResult = &copied
			}
		}
	}
	if m.Files != nil {
		out.Files = make([]File, len(m.Files))
		copy(out.Files, m.Files)
	}
	return out
}

// CloneMessages deep-copies a message list.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i := range messages {
		out[i] = messages[i].Clone()
	}
	return out
}
