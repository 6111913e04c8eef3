package chatstore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/infrastructure/logger"
	"jan-client/chat-core/internal/infrastructure/metrics"
	"jan-client/chat-core/internal/infrastructure/observability"
	"jan-client/chat-core/internal/utils/platformerrors"
)

// State is the observable snapshot of one conversation. Loading,
// Sending and Streaming are UI-facing flags; Err holds the last
// recoverable failure.
type State struct {
	Conversation   *chat.Conversation
	Messages       []chat.Message
	ActiveBranchID string
	Loading        bool
	Sending        bool
	Streaming      bool
	Err            string
}

// Store owns the live state of one conversation: metadata, the active
// branch's message list and the streaming flags, and orchestrates
// send/edit/switch-branch against the transport. Each conversation has
// exactly one store; stores for different conversations never contend.
type Store struct {
	conversationID string
	api            Transport
	cache          *BranchCache
	branches       BranchDisposer
	list           *ConversationList
	onRemove       func()
	log            zerolog.Logger

	mu          sync.Mutex
	state       State
	convLoading bool
	msgLoading  bool
	listeners   map[int]func()
	listenerSeq int
}

// StoreOption configures optional store collaborators.
type StoreOption func(*Store)

// WithBranchDisposer wires the message-branch registry swept when an
// edit replaces a message.
func WithBranchDisposer(d BranchDisposer) StoreOption {
	return func(s *Store) { s.branches = d }
}

// WithConversationList wires the conversation list patched by
// titleUpdated events.
func WithConversationList(l *ConversationList) StoreOption {
	return func(s *Store) { s.list = l }
}

func withOnRemove(fn func()) StoreOption {
	return func(s *Store) { s.onRemove = fn }
}

// NewStore creates a store for the conversation. Callers normally go
// through the Registry, which also auto-loads the conversation.
func NewStore(conversationID string, api Transport, cache *BranchCache, opts ...StoreOption) *Store {
	s := &Store{
		conversationID: conversationID,
		api:            api,
		cache:          cache,
		log:            logger.GetLogger().With().Str("conversation_id", conversationID).Logger(),
		listeners:      make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.StoresCreatedTotal.Inc()
	return s
}

// ConversationID returns the id this store owns.
func (s *Store) ConversationID() string {
	return s.conversationID
}

// Subscribe registers a change listener and returns its unsubscribe
// function. Listeners run after every state mutation, outside the
// store lock.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	s.listenerSeq++
	id := s.listenerSeq
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	out := s.state
	out.Messages = chat.CloneMessages(s.state.Messages)
	if s.state.Conversation != nil {
		conv := *s.state.Conversation
		out.Conversation = &conv
	}
	return out
}

func (s *Store) broadcast() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ===============================================
// Load Operations
// ===============================================

// LoadConversation fetches the conversation metadata. Failures are
// recorded in Err and returned. The reentrant guard is independent of
// message loads; Loading stays set while either fetch is in flight.
func (s *Store) LoadConversation(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "Store.LoadConversation")
	defer span.End()
	observability.AddSpanAttributes(ctx, attribute.String("conversation.id", s.conversationID))

	s.mu.Lock()
	if s.convLoading {
		s.mu.Unlock()
		return nil
	}
	s.convLoading = true
	s.state.Loading = true
	s.mu.Unlock()
	s.broadcast()

	conv, err := s.api.GetConversation(ctx, s.conversationID)

	s.mu.Lock()
	s.convLoading = false
	s.state.Loading = s.msgLoading
	if err != nil {
		s.state.Err = err.Error()
		s.mu.Unlock()
		s.broadcast()
		observability.RecordError(ctx, err)
		return platformerrors.AsError(ctx, platformerrors.LayerStore, err, "failed to load conversation")
	}
	s.state.Conversation = conv
	if s.state.ActiveBranchID == "" {
		s.state.ActiveBranchID = conv.ActiveBranchID
	}
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// LoadMessages loads the message list for branchID, or for the
// conversation's active branch when branchID is empty. The cache is
// consulted first; on a hit no network call happens. Before switching
// away, the previous branch is cached and scheduled for eviction, and
// any pending eviction for the target is cancelled — in that order, so
// a branch is never simultaneously cached-for-eviction and loading.
func (s *Store) LoadMessages(ctx context.Context, branchID string) error {
	ctx, span := observability.StartSpan(ctx, "Store.LoadMessages")
	defer span.End()

	s.mu.Lock()
	target := branchID
	if target == "" {
		target = s.state.ActiveBranchID
	}
	if target == "" && s.state.Conversation != nil {
		target = s.state.Conversation.ActiveBranchID
	}

	if prev := s.state.ActiveBranchID; prev != "" && prev != target {
		s.cache.Put(s.conversationID, prev, s.state.Messages)
		s.cache.ScheduleEviction(s.conversationID, prev)
	}
	s.cache.CancelEviction(s.conversationID, target)

	if messages, ok := s.cache.Get(s.conversationID, target); ok {
		s.state.Messages = messages
		s.state.ActiveBranchID = target
		s.mu.Unlock()
		s.broadcast()
		return nil
	}

	s.msgLoading = true
	s.state.Loading = true
	s.mu.Unlock()
	s.broadcast()

	messages, err := s.api.ListMessages(ctx, s.conversationID, target)

	s.mu.Lock()
	s.msgLoading = false
	s.state.Loading = s.convLoading
	if err != nil {
		s.state.Err = err.Error()
		s.mu.Unlock()
		s.broadcast()
		observability.RecordError(ctx, err)
		return platformerrors.AsError(ctx, platformerrors.LayerStore, err, "failed to load messages")
	}
	s.state.Messages = messages
	s.state.ActiveBranchID = target
	s.cache.Put(s.conversationID, target, messages)
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// ===============================================
// Send / Edit / Branch Operations
// ===============================================

// SendMessage appends an optimistic user message and an empty
// assistant placeholder, then opens a streaming request and feeds its
// events through the session router. A call while a send is already in
// flight is a no-op. On failure the optimistic messages stay in place:
// the user's intent and any partial server-side work are preserved for
// retry.
func (s *Store) SendMessage(ctx context.Context, content, assistantID, modelID string, fileIDs, enabledTools []string) error {
	ctx, span := observability.StartSpan(ctx, "Store.SendMessage")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("conversation.id", s.conversationID),
		attribute.String("model.id", modelID),
	)

	s.mu.Lock()
	if s.state.Sending {
		s.mu.Unlock()
		return nil
	}
	s.state.Sending = true
	s.state.Streaming = true
	s.state.Err = ""
	s.mu.Unlock()
	s.broadcast()
	metrics.StreamSessionsTotal.WithLabelValues("send").Inc()

	var files []chat.File
	if len(fileIDs) > 0 {
		resolved, err := s.api.ResolveFiles(ctx, fileIDs)
		if err != nil {
			return s.failStream(ctx, "send", err, "failed to resolve files")
		}
		files = resolved
	}

	userMsg := chat.NewUserMessage(s.conversationID, content, files)
	assistantMsg := chat.NewAssistantPlaceholder(s.conversationID)

	s.mu.Lock()
	s.state.Messages = append(s.state.Messages, userMsg, assistantMsg)
	s.mu.Unlock()
	s.broadcast()

	events, err := s.api.SendMessageStream(ctx, SendMessageRequest{
		ConversationID: s.conversationID,
		Content:        content,
		AssistantID:    assistantID,
		ModelID:        modelID,
		FileIDs:        fileIDs,
		EnabledTools:   enabledTools,
	})
	if err != nil {
		return s.failStream(ctx, "send", err, "failed to open message stream")
	}

	sess := newStreamSession(s, userMsg.ID, assistantMsg.ID)
	for ev := range events {
		sess.apply(ev)
	}
	return nil
}

// EditMessage rewrites a message in place and regenerates everything
// after it. The local list is truncated to entries at-or-before the
// edited message's timestamp (downstream messages are stale once the
// edit forks a branch), a transient streaming-temp placeholder is
// appended for the regenerated response, and the stream runs with the
// edited message bound so editedMessage can replace the right entry.
func (s *Store) EditMessage(ctx context.Context, messageID, newContent, assistantID, modelID string, enabledTools []string) error {
	ctx, span := observability.StartSpan(ctx, "Store.EditMessage")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("conversation.id", s.conversationID),
		attribute.String("message.id", messageID),
	)

	s.mu.Lock()
	if s.state.Sending {
		s.mu.Unlock()
		return nil
	}

	idx := -1
	for i := range s.state.Messages {
		if s.state.Messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return platformerrors.NewError(ctx, platformerrors.LayerStore, platformerrors.ErrorTypeNotFound, "message not found", nil)
	}

	edited := &s.state.Messages[idx]
	editedAt := edited.CreatedAt
	originatedID := edited.OriginatedFromID
	if originatedID == "" {
		originatedID = edited.ID
	}

	kept := s.state.Messages[:0]
	for _, msg := range s.state.Messages {
		if !msg.CreatedAt.After(editedAt) {
			kept = append(kept, msg)
		}
	}
	s.state.Messages = kept

	for i := range s.state.Messages {
		if s.state.Messages[i].ID == messageID {
			s.state.Messages[i].RewriteText(newContent)
			break
		}
	}
	s.state.Messages = append(s.state.Messages, chat.NewStreamingTempMessage(s.conversationID))

	s.state.Sending = true
	s.state.Streaming = true
	s.state.Err = ""
	s.mu.Unlock()
	s.broadcast()
	metrics.StreamSessionsTotal.WithLabelValues("edit").Inc()

	events, err := s.api.EditMessageStream(ctx, EditMessageRequest{
		ConversationID: s.conversationID,
		MessageID:      messageID,
		Content:        newContent,
		AssistantID:    assistantID,
		ModelID:        modelID,
		EnabledTools:   enabledTools,
	})
	if err != nil {
		return s.failStream(ctx, "edit", err, "failed to open edit stream")
	}

	sess := newEditStreamSession(s, messageID, originatedID)
	for ev := range events {
		sess.apply(ev)
	}
	return nil
}

// SwitchBranch caches the current branch, persists the switch on the
// server, reloads messages for the target and commits the new active
// branch id.
func (s *Store) SwitchBranch(ctx context.Context, branchID string) error {
	ctx, span := observability.StartSpan(ctx, "Store.SwitchBranch")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("conversation.id", s.conversationID),
		attribute.String("branch.id", branchID),
	)

	s.mu.Lock()
	current := s.state.ActiveBranchID
	if current == branchID {
		s.mu.Unlock()
		return nil
	}
	if current != "" {
		s.cache.Put(s.conversationID, current, s.state.Messages)
		s.cache.ScheduleEviction(s.conversationID, current)
	}
	s.mu.Unlock()

	if err := s.api.SwitchBranch(ctx, s.conversationID, branchID); err != nil {
		s.mu.Lock()
		s.state.Err = err.Error()
		s.mu.Unlock()
		s.broadcast()
		observability.RecordError(ctx, err)
		return platformerrors.AsError(ctx, platformerrors.LayerStore, err, "failed to switch branch")
	}

	if err := s.LoadMessages(ctx, branchID); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.ActiveBranchID = branchID
	if s.state.Conversation != nil {
		s.state.Conversation.ActiveBranchID = branchID
	}
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// ===============================================
// Lifecycle
// ===============================================

// StopStreaming force-clears the streaming flags without cancelling
// the underlying request. This is a UI-level unstick: the transport
// keeps draining the stream in the background.
func (s *Store) StopStreaming() {
	s.mu.Lock()
	s.state.Sending = false
	s.state.Streaming = false
	s.mu.Unlock()
	s.broadcast()
}

// Reset restores all fields to initial values. Used when a store is
// recycled rather than destroyed.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	s.broadcast()
}

// Destroy purges every cache entry and eviction timer belonging to
// this conversation and removes the store from its registry.
func (s *Store) Destroy() {
	s.cache.PurgeConversation(s.conversationID)
	if s.onRemove != nil {
		s.onRemove()
	}
	metrics.StoresDestroyedTotal.Inc()
	s.log.Debug().Msg("store destroyed")
}

func (s *Store) failStream(ctx context.Context, kind string, err error, message string) error {
	s.mu.Lock()
	if kind == "edit" {
		// The regeneration placeholder is the store's own transient
		// artifact; it must not survive a failed edit. Optimistic user
		// messages are a different matter and stay.
		kept := s.state.Messages[:0]
		for _, msg := range s.state.Messages {
			if msg.ID != chat.StreamingTempMessageID {
				kept = append(kept, msg)
			}
		}
		s.state.Messages = kept
	}
	s.state.Err = err.Error()
	s.state.Sending = false
	s.state.Streaming = false
	s.mu.Unlock()
	s.broadcast()
	metrics.StreamErrorsTotal.WithLabelValues(kind).Inc()
	observability.RecordError(ctx, err)
	return platformerrors.AsError(ctx, platformerrors.LayerStore, err, message)
}
