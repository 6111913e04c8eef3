package chat

import (
	"encoding/json"
	"fmt"
)

// ===============================================
// Stream Event Vocabulary
// ===============================================

// Wire names of the streaming events emitted by the backend during a
// send or edit session. Every session terminates in exactly one of
// complete or error.
const (
	EventConnected                     = "connected"
	EventNewUserMessage                = "newUserMessage"
	EventNewAssistantMessage           = "newAssistantMessage"
	EventNewMessageContent             = "newMessageContent"
	EventMessageContentChunk           = "messageContentChunk"
	EventToolCall                      = "toolCall"
	EventToolCallPendingApproval       = "toolCallPendingApproval"
	EventToolCallPendingApprovalCancel = "toolCallPendingApprovalCancel"
	EventToolResult                    = "toolResult"
	EventEditedMessage                 = "editedMessage"
	EventCreatedBranch                 = "createdBranch"
	EventTitleUpdated                  = "titleUpdated"
	EventComplete                      = "complete"
	EventError                         = "error"
)

// StreamEvent is the sum type over stream event kinds. Routing happens
// with an exhaustive type switch; events the client does not recognise
// decode to UnknownEvent and are logged and ignored.
type StreamEvent interface {
	EventName() string
}

type ConnectedEvent struct{}

type NewUserMessageEvent struct {
	MessageID string `json:"message_id"`
}

type NewAssistantMessageEvent struct {
	MessageID string `json:"message_id"`
}

type NewMessageContentEvent struct {
	MessageContentID string `json:"message_content_id"`
	MessageID        string `json:"message_id"`
}

type MessageContentChunkEvent struct {
	MessageContentID string `json:"message_content_id"`
	Delta            string `json:"delta"`
}

type ToolCallEvent struct {
	MessageContentID string          `json:"message_content_id"`
	MessageID        string          `json:"message_id"`
	CallID           string          `json:"call_id"`
	ToolName         string          `json:"tool_name"`
	ServerID         string          `json:"server_id"`
	Arguments        json.RawMessage `json:"arguments,omitempty"`
}

type ToolCallPendingApprovalEvent struct {
	MessageContentID string          `json:"message_content_id"`
	MessageID        string          `json:"message_id"`
	ToolName         string          `json:"tool_name"`
	ServerID         string          `json:"server_id"`
	Arguments        json.RawMessage `json:"arguments,omitempty"`
}

type ToolCallPendingApprovalCancelEvent struct {
	MessageContentID string `json:"message_content_id"`
}

type ToolResultEvent struct {
	MessageContentID string          `json:"message_content_id"`
	MessageID        string          `json:"message_id"`
	CallID           string          `json:"call_id"`
	Result           json.RawMessage `json:"result,omitempty"`
	Success          bool            `json:"success"`
	ErrorMessage     string          `json:"error_message,omitempty"`
}

// EditedMessageEvent carries the server's full replacement for an
// edited message.
type EditedMessageEvent struct {
	Message Message
}

// CreatedBranchEvent announces the branch forked by an edit.
type CreatedBranchEvent struct {
	Branch MessageBranch
}

type TitleUpdatedEvent struct {
	Title string `json:"title"`
}

type CompleteEvent struct{}

type ErrorEvent struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// UnknownEvent carries an event the client does not recognise.
// Forward-compatible: new server event types must never be fatal.
type UnknownEvent struct {
	Name string
	Data json.RawMessage
}

func (ConnectedEvent) EventName() string                     { return EventConnected }
func (NewUserMessageEvent) EventName() string                { return EventNewUserMessage }
func (NewAssistantMessageEvent) EventName() string           { return EventNewAssistantMessage }
func (NewMessageContentEvent) EventName() string             { return EventNewMessageContent }
func (MessageContentChunkEvent) EventName() string           { return EventMessageContentChunk }
func (ToolCallEvent) EventName() string                      { return EventToolCall }
func (ToolCallPendingApprovalEvent) EventName() string       { return EventToolCallPendingApproval }
func (ToolCallPendingApprovalCancelEvent) EventName() string { return EventToolCallPendingApprovalCancel }
func (ToolResultEvent) EventName() string                    { return EventToolResult }
func (EditedMessageEvent) EventName() string                 { return EventEditedMessage }
func (CreatedBranchEvent) EventName() string                 { return EventCreatedBranch }
func (TitleUpdatedEvent) EventName() string                  { return EventTitleUpdated }
func (CompleteEvent) EventName() string                      { return EventComplete }
func (ErrorEvent) EventName() string                         { return EventError }
func (e UnknownEvent) EventName() string                     { return e.Name }

// ParseStreamEvent decodes a wire frame into the event sum type.
// Unrecognised names produce UnknownEvent, never an error; a decode
// failure on a known event is an error since the session cannot apply
// a half-read payload.
func ParseStreamEvent(name string, data []byte) (StreamEvent, error) {
	switch name {
	case EventConnected:
		return ConnectedEvent{}, nil
	case EventNewUserMessage:
		return decodeValue[NewUserMessageEvent](name, data)
	case EventNewAssistantMessage:
		return decodeValue[NewAssistantMessageEvent](name, data)
	case EventNewMessageContent:
		return decodeValue[NewMessageContentEvent](name, data)
	case EventMessageContentChunk:
		return decodeValue[MessageContentChunkEvent](name, data)
	case EventToolCall:
		return decodeValue[ToolCallEvent](name, data)
	case EventToolCallPendingApproval:
		return decodeValue[ToolCallPendingApprovalEvent](name, data)
	case EventToolCallPendingApprovalCancel:
		return decodeValue[ToolCallPendingApprovalCancelEvent](name, data)
	case EventToolResult:
		return decodeValue[ToolResultEvent](name, data)
	case EventEditedMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", name, err)
		}
		return EditedMessageEvent{Message: msg}, nil
	case EventCreatedBranch:
		var branch MessageBranch
		if err := json.Unmarshal(data, &branch); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", name, err)
		}
		return CreatedBranchEvent{Branch: branch}, nil
	case EventTitleUpdated:
		return decodeValue[TitleUpdatedEvent](name, data)
	case EventComplete:
		return CompleteEvent{}, nil
	case EventError:
		return decodeValue[ErrorEvent](name, data)
	default:
		return UnknownEvent{Name: name, Data: append(json.RawMessage(nil), data...)}, nil
	}
}

func decodeValue[T StreamEvent](name string, data []byte) (StreamEvent, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", name, err)
	}
	return v, nil
}
