package chatstore

import (
	"context"
	"sync"

	"jan-client/chat-core/internal/domain/chat"
)

// fakeTransport is an in-memory Transport. Stream calls replay a
// scripted event slice over a channel.
type fakeTransport struct {
	mu sync.Mutex

	conversation  *chat.Conversation
	conversations []chat.ConversationSummary
	branches      map[string][]chat.Message
	files         []chat.File

	sendEvents []chat.StreamEvent
	editEvents []chat.StreamEvent

	getErr    error
	listErr   error
	sendErr   error
	editErr   error
	switchErr error

	// When set, ListMessages blocks until the channel is closed.
	listGate chan struct{}

	listMessagesCalls int
	switchedTo        []string
	lastSend          SendMessageRequest
	lastEdit          EditMessageRequest
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{branches: make(map[string][]chat.Message)}
}

func (f *fakeTransport) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	conv := *f.conversation
	return &conv, nil
}

func (f *fakeTransport) ListConversations(ctx context.Context) ([]chat.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]chat.ConversationSummary, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeTransport) CreateConversation(ctx context.Context, req CreateConversationRequest) (*chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &chat.Conversation{ID: "conv-new", Title: req.Title, AssistantID: req.AssistantID, ModelID: req.ModelID}, nil
}

func (f *fakeTransport) ListMessages(ctx context.Context, conversationID, branchID string) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	f.listMessagesCalls++
	messages := chat.CloneMessages(f.branches[branchID])
	gate := f.listGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return messages, nil
}

func (f *fakeTransport) SwitchBranch(ctx context.Context, conversationID, branchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switchErr != nil {
		return f.switchErr
	}
	f.switchedTo = append(f.switchedTo, branchID)
	return nil
}

func (f *fakeTransport) ListMessageBranches(ctx context.Context, messageID string) ([]chat.MessageBranch, error) {
	return nil, nil
}

func (f *fakeTransport) ResolveFiles(ctx context.Context, fileIDs []string) ([]chat.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files, nil
}

func (f *fakeTransport) SendMessageStream(ctx context.Context, req SendMessageRequest) (<-chan chat.StreamEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.lastSend = req
	return replay(f.sendEvents), nil
}

func (f *fakeTransport) EditMessageStream(ctx context.Context, req EditMessageRequest) (<-chan chat.StreamEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.lastEdit = req
	return replay(f.editEvents), nil
}

func replay(events []chat.StreamEvent) <-chan chat.StreamEvent {
	ch := make(chan chat.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}
