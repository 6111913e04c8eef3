package chatstore

import (
	"context"
	"sync"
	"time"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/infrastructure/observability"
	"jan-client/chat-core/internal/utils/platformerrors"
)

// ConversationList is the sidebar-style list of conversation
// summaries. It is patched in place by titleUpdated events and by
// creating conversations rather than refetched, so the list stays
// consistent with the per-conversation stores without extra requests.
type ConversationList struct {
	api Transport

	mu          sync.Mutex
	summaries   []chat.ConversationSummary
	loaded      bool
	listeners   map[int]func()
	listenerSeq int
}

func NewConversationList(api Transport) *ConversationList {
	return &ConversationList{
		api:       api,
		listeners: make(map[int]func()),
	}
}

// Subscribe registers a change listener and returns its unsubscribe
// function.
func (l *ConversationList) Subscribe(fn func()) func() {
	l.mu.Lock()
	l.listenerSeq++
	id := l.listenerSeq
	l.listeners[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

// Snapshot returns a copy of the current summaries.
func (l *ConversationList) Snapshot() []chat.ConversationSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chat.ConversationSummary, len(l.summaries))
	copy(out, l.summaries)
	return out
}

// Load fetches the conversation list from the backend.
func (l *ConversationList) Load(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "ConversationList.Load")
	defer span.End()

	summaries, err := l.api.ListConversations(ctx)
	if err != nil {
		observability.RecordError(ctx, err)
		return platformerrors.AsError(ctx, platformerrors.LayerStore, err, "failed to list conversations")
	}

	l.mu.Lock()
	l.summaries = summaries
	l.loaded = true
	l.mu.Unlock()
	l.broadcast()
	return nil
}

// Create creates a conversation on the backend and prepends its
// summary. An empty title falls back to a derived placeholder.
func (l *ConversationList) Create(ctx context.Context, req CreateConversationRequest) (*chat.Conversation, error) {
	ctx, span := observability.StartSpan(ctx, "ConversationList.Create")
	defer span.End()

	if req.Title == "" {
		req.Title = chat.DeriveTitle("")
	}

	conv, err := l.api.CreateConversation(ctx, req)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, platformerrors.AsError(ctx, platformerrors.LayerStore, err, "failed to create conversation")
	}

	l.mu.Lock()
	l.summaries = append([]chat.ConversationSummary{{
		ID:          conv.ID,
		Title:       conv.Title,
		AssistantID: conv.AssistantID,
		ModelID:     conv.ModelID,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
	}}, l.summaries...)
	l.mu.Unlock()
	l.broadcast()
	return conv, nil
}

// SetTitle patches the title of one summary, typically from a
// titleUpdated stream event. Unknown ids are ignored since the list
// may not have been loaded yet.
func (l *ConversationList) SetTitle(conversationID, title string) {
	l.mu.Lock()
	changed := false
	for i := range l.summaries {
		if l.summaries[i].ID == conversationID {
			l.summaries[i].Title = title
			l.summaries[i].UpdatedAt = time.Now().UTC()
			changed = true
			break
		}
	}
	l.mu.Unlock()
	if changed {
		l.broadcast()
	}
}

func (l *ConversationList) broadcast() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
