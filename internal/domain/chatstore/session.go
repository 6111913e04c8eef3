package chatstore

import (
	"github.com/rs/zerolog"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/infrastructure/metrics"
)

// streamSession routes one streaming request's events into the store.
// It tracks the placeholder-to-server id handover: outbound messages
// carry client-generated UUIDs until newUserMessage/newAssistantMessage
// confirm the real ids, and every later event resolves against the
// server id when one is known.
type streamSession struct {
	store *Store
	log   zerolog.Logger

	userPlaceholderID      string
	assistantPlaceholderID string
	actualAssistantID      string

	edit               bool
	editMessageID      string
	editedOriginatedID string
}

func newStreamSession(store *Store, userPlaceholderID, assistantPlaceholderID string) *streamSession {
	return &streamSession{
		store:                  store,
		log:                    store.log.With().Str("session", "send").Logger(),
		userPlaceholderID:      userPlaceholderID,
		assistantPlaceholderID: assistantPlaceholderID,
	}
}

func newEditStreamSession(store *Store, editMessageID, editedOriginatedID string) *streamSession {
	return &streamSession{
		store:                  store,
		log:                    store.log.With().Str("session", "edit").Logger(),
		assistantPlaceholderID: chat.StreamingTempMessageID,
		edit:                   true,
		editMessageID:          editMessageID,
		editedOriginatedID:     editedOriginatedID,
	}
}

// assistantTargetID resolves the id of the assistant message stream
// events should mutate. The server-confirmed id wins over the local
// placeholder so that events referencing either id land on the same
// message.
func (ss *streamSession) assistantTargetID() string {
	if ss.actualAssistantID != "" {
		return ss.actualAssistantID
	}
	return ss.assistantPlaceholderID
}

// apply routes one event. The switch is exhaustive over the event
// vocabulary; unknown events are logged and dropped, never fatal.
func (ss *streamSession) apply(ev chat.StreamEvent) {
	metrics.StreamEventsTotal.WithLabelValues(ev.EventName()).Inc()

	switch e := ev.(type) {
	case chat.ConnectedEvent:
		ss.log.Debug().Msg("stream connected")
	case chat.NewUserMessageEvent:
		ss.onNewUserMessage(e)
	case chat.NewAssistantMessageEvent:
		ss.onNewAssistantMessage(e)
	case chat.NewMessageContentEvent:
		ss.onNewMessageContent(e)
	case chat.MessageContentChunkEvent:
		ss.onMessageContentChunk(e)
	case chat.ToolCallEvent:
		ss.onToolCall(e)
	case chat.ToolCallPendingApprovalEvent:
		ss.onToolCallPendingApproval(e)
	case chat.ToolCallPendingApprovalCancelEvent:
		ss.onToolCallPendingApprovalCancel(e)
	case chat.ToolResultEvent:
		ss.onToolResult(e)
	case chat.EditedMessageEvent:
		ss.onEditedMessage(e)
	case chat.CreatedBranchEvent:
		ss.onCreatedBranch(e)
	case chat.TitleUpdatedEvent:
		ss.onTitleUpdated(e)
	case chat.CompleteEvent:
		ss.onComplete()
	case chat.ErrorEvent:
		ss.onError(e)
	case chat.UnknownEvent:
		ss.log.Warn().Str("event", e.Name).Msg("ignoring unrecognised stream event")
	default:
		ss.log.Warn().Str("event", ev.EventName()).Msg("ignoring unhandled stream event")
	}
}

func (ss *streamSession) onNewUserMessage(e chat.NewUserMessageEvent) {
	if ss.userPlaceholderID == "" || e.MessageID == "" {
		return
	}
	s := ss.store
	s.mu.Lock()
	if msg := findMessage(s.state.Messages, ss.userPlaceholderID); msg != nil {
		msg.SetID(e.MessageID)
	}
	s.mu.Unlock()
	s.broadcast()
}

func (ss *streamSession) onNewAssistantMessage(e chat.NewAssistantMessageEvent) {
	if e.MessageID == "" {
		return
	}
	s := ss.store
	s.mu.Lock()
	if msg := findMessage(s.state.Messages, ss.assistantTargetID()); msg != nil {
		msg.SetID(e.MessageID)
	} else {
		s.state.Messages = append(s.state.Messages, chat.Message{
			ID:             e.MessageID,
			ConversationID: s.conversationID,
			Role:           chat.RoleAssistant,
		})
	}
	ss.actualAssistantID = e.MessageID
	s.mu.Unlock()
	s.broadcast()
}

func (ss *streamSession) onNewMessageContent(e chat.NewMessageContentEvent) {
	s := ss.store
	s.mu.Lock()
	msg := ss.resolveTarget(e.MessageID)
	if msg == nil {
		s.mu.Unlock()
		ss.log.Warn().Str("message_id", e.MessageID).Msg("content event for unknown message")
		return
	}
	if msg.ContentByID(e.MessageContentID) == nil {
		msg.AppendContent(chat.ContentItem{
			ID:   e.MessageContentID,
			Type: chat.ContentTypeText,
		})
	}
	s.mu.Unlock()
	s.broadcast()
}

func (ss *streamSession) onMessageContentChunk(e chat.MessageContentChunkEvent) {
	s := ss.store
	s.mu.Lock()
	applied := false
	for i := range s.state.Messages {
		if s.state.Messages[i].AppendDelta(e.MessageContentID, e.Delta) {
			applied = true
			break
		}
	}
	s.mu.Unlock()
	if applied {
		s.broadcast()
	} else {
		ss.log.Warn().Str("message_content_id", e.MessageContentID).Msg("dropping chunk for unknown content item")
	}
}

func (ss *streamSession) onToolCall(e chat.ToolCallEvent) {
	ss.appendToolItem(e.MessageID, chat.ContentItem{
		ID:   e.MessageContentID,
		Type: chat.ContentTypeToolCall,
		ToolCall: &chat.ToolCallContent{
			CallID:    e.CallID,
			ToolName:  e.ToolName,
			ServerID:  e.ServerID,
			Arguments: e.Arguments,
		},
	})
}

// onToolCallPendingApproval is a suspension point, not a terminal
// state: execution pauses until the user approves, so the streaming
// flags drop while the session stays open.
func (ss *streamSession) onToolCallPendingApproval(e chat.ToolCallPendingApprovalEvent) {
	ss.appendToolItem(e.MessageID, chat.ContentItem{
		ID:   e.MessageContentID,
		Type: chat.ContentTypeToolCallPendingApproval,
		ToolCall: &chat.ToolCallContent{
			ToolName:         e.ToolName,
			ServerID:         e.ServerID,
			Arguments:        e.Arguments,
			AwaitingApproval: true,
		},
	})

	s := ss.store
	s.mu.Lock()
	s.state.Sending = false
	s.state.Streaming = false
	s.mu.Unlock()
	s.broadcast()
}

func (ss *streamSession) onToolCallPendingApprovalCancel(e chat.ToolCallPendingApprovalCancelEvent) {
	s := ss.store
	s.mu.Lock()
	changed := false
	for i := range s.state.Messages {
		if item := s.state.Messages[i].ContentByID(e.MessageContentID); item != nil {
			if item.ToolCall != nil {
				item.ToolCall.AwaitingApproval = false
			}
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
}

func (ss *streamSession) onToolResult(e chat.ToolResultEvent) {
	ss.appendToolItem(e.MessageID, chat.ContentItem{
		ID:   e.MessageContentID,
		Type: chat.ContentTypeToolResult,
		ToolResult: &chat.ToolResultContent{
			CallID:       e.CallID,
			Result:       e.Result,
			Success:      e.Success,
			ErrorMessage: e.ErrorMessage,
		},
	})
}

func (ss *streamSession) appendToolItem(messageID string, item chat.ContentItem) {
	s := ss.store
	s.mu.Lock()
	msg := ss.resolveTarget(messageID)
	if msg == nil {
		s.mu.Unlock()
		ss.log.Warn().Str("message_id", messageID).Msg("tool event for unknown message")
		return
	}
	if existing := msg.ContentByID(item.ID); existing != nil {
		*existing = item
		existing.MessageID = msg.ID
	} else {
		msg.AppendContent(item)
	}
	s.mu.Unlock()
	s.broadcast()
}

// onEditedMessage swaps in the server's canonical version of the
// edited message and drops any cached branch list rooted at it, since
// the edit forked a new sibling.
func (ss *streamSession) onEditedMessage(e chat.EditedMessageEvent) {
	s := ss.store
	s.mu.Lock()
	replaced := false
	for i := range s.state.Messages {
		m := &s.state.Messages[i]
		if m.ID == ss.editMessageID || (m.OriginatedFromID != "" && m.OriginatedFromID == e.Message.OriginatedFromID) {
			s.state.Messages[i] = e.Message.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.state.Messages = append(s.state.Messages, e.Message.Clone())
	}
	s.mu.Unlock()
	s.broadcast()

	if s.branches != nil {
		originated := ss.editedOriginatedID
		if originated == "" {
			originated = e.Message.OriginatedFromID
		}
		if originated != "" {
			s.branches.RemoveByOriginatedID(originated)
		}
	}
}

func (ss *streamSession) onCreatedBranch(e chat.CreatedBranchEvent) {
	s := ss.store
	s.mu.Lock()
	s.state.ActiveBranchID = e.Branch.ID
	if s.state.Conversation != nil {
		s.state.Conversation.ActiveBranchID = e.Branch.ID
	}
	s.mu.Unlock()
	s.broadcast()
}

func (ss *streamSession) onTitleUpdated(e chat.TitleUpdatedEvent) {
	s := ss.store
	s.mu.Lock()
	if s.state.Conversation != nil {
		s.state.Conversation.Title = e.Title
	}
	s.mu.Unlock()
	s.broadcast()

	if s.list != nil {
		s.list.SetTitle(s.conversationID, e.Title)
	}
}

// onComplete clears the streaming flags and writes the final message
// list through to the branch cache so an immediate branch switch and
// back is a cache hit.
func (ss *streamSession) onComplete() {
	s := ss.store
	s.mu.Lock()
	s.state.Sending = false
	s.state.Streaming = false
	branch := s.state.ActiveBranchID
	messages := s.state.Messages
	if branch != "" {
		s.cache.Put(s.conversationID, branch, messages)
	}
	s.mu.Unlock()
	s.broadcast()
}

// onError records the failure and, in an edit session, discards the
// streaming-temp placeholder: the server rejected the regeneration so
// there is no response for it to stand in for. Optimistic send
// messages are kept for retry.
func (ss *streamSession) onError(e chat.ErrorEvent) {
	metrics.StreamErrorsTotal.WithLabelValues("stream").Inc()
	s := ss.store
	s.mu.Lock()
	s.state.Err = e.Error
	s.state.Sending = false
	s.state.Streaming = false
	if ss.edit {
		kept := s.state.Messages[:0]
		for _, msg := range s.state.Messages {
			if msg.ID != chat.StreamingTempMessageID {
				kept = append(kept, msg)
			}
		}
		s.state.Messages = kept
	}
	s.mu.Unlock()
	s.broadcast()
	ss.log.Warn().Str("code", e.Code).Str("error", e.Error).Msg("stream reported error")
}

// resolveTarget finds the message stream events should land on: the
// explicitly named message when it exists locally, otherwise the
// session's assistant target. Caller holds the store lock.
func (ss *streamSession) resolveTarget(messageID string) *chat.Message {
	s := ss.store
	if messageID != "" {
		if msg := findMessage(s.state.Messages, messageID); msg != nil {
			return msg
		}
	}
	return findMessage(s.state.Messages, ss.assistantTargetID())
}

func findMessage(messages []chat.Message, id string) *chat.Message {
	if id == "" {
		return nil
	}
	for i := range messages {
		if messages[i].ID == id {
			return &messages[i]
		}
	}
	return nil
}
