// Package branchstore tracks the sibling branches of individual
// messages, so the UI can page between the variants an edit produced.
package branchstore

import (
	"context"
	"sync"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/infrastructure/observability"
	"jan-client/chat-core/internal/utils/platformerrors"
)

// BranchLister is the slice of the backend client this package needs.
type BranchLister interface {
	ListMessageBranches(ctx context.Context, messageID string) ([]chat.MessageBranch, error)
}

// Store holds the branch list of one message. Branch lists are small
// and immutable server-side except when an edit forks a sibling, at
// which point the registry discards the store wholesale.
type Store struct {
	messageID    string
	originatedID string
	api          BranchLister

	mu          sync.Mutex
	branches    []chat.MessageBranch
	loading     bool
	loaded      bool
	err         string
	listeners   map[int]func()
	listenerSeq int
}

func NewStore(messageID, originatedID string, api BranchLister) *Store {
	if originatedID == "" {
		originatedID = messageID
	}
	return &Store{
		messageID:    messageID,
		originatedID: originatedID,
		api:          api,
		listeners:    make(map[int]func()),
	}
}

// MessageID returns the id of the message this store tracks.
func (s *Store) MessageID() string { return s.messageID }

// OriginatedID returns the stable pre-edit identity of the message.
func (s *Store) OriginatedID() string { return s.originatedID }

// Subscribe registers a change listener and returns its unsubscribe
// function.
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

// Branches returns a copy of the loaded branch list.
func (s *Store) Branches() []chat.MessageBranch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.MessageBranch, len(s.branches))
	copy(out, s.branches)
	return out
}

// Err returns the last load failure, empty when the last load
// succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Load fetches the branch list once. Calls while a load is in flight
// or after a successful load are no-ops; use Refresh to force a
// refetch.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	return s.fetch(ctx)
}

// Refresh refetches the branch list unconditionally, unless a load is
// already in flight.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	return s.fetch(ctx)
}

func (s *Store) fetch(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "BranchStore.Load")
	defer span.End()

	branches, err := s.api.ListMessageBranches(ctx, s.messageID)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
		s.mu.Unlock()
		s.broadcast()
		observability.RecordError(ctx, err)
		return platformerrors.AsError(ctx, platformerrors.LayerStore, err, "failed to load message branches")
	}
	s.branches = branches
	s.loaded = true
	s.err = ""
	s.mu.Unlock()
	s.broadcast()
	return nil
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
