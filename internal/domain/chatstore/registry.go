package chatstore

import (
	"context"
	"sync"
	"time"

	"jan-client/chat-core/internal/infrastructure/logger"
	"jan-client/chat-core/internal/utils/debounce"
)

// DefaultStoreDestroyDelay is how long an unreferenced store lingers
// before it is destroyed. Navigating back within the window reuses the
// store with its state intact.
const DefaultStoreDestroyDelay = 5 * time.Minute

// Registry hands out the single live store per conversation and
// manages their lifecycle with reference counting. Releasing the last
// reference arms a delayed destroy instead of tearing down
// immediately; re-acquiring within the window disarms it. The empty
// conversation id maps to a permanent sentinel store that is never
// loaded or destroyed, so callers rendering "no conversation selected"
// need no special casing.
type Registry struct {
	api          Transport
	cache        *BranchCache
	sched        debounce.Scheduler
	destroyDelay time.Duration
	opts         []StoreOption

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	store   *Store
	refs    int
	destroy debounce.Handle
}

// NewRegistry creates a registry. A destroyDelay of zero or less falls
// back to DefaultStoreDestroyDelay; opts are applied to every store it
// creates.
func NewRegistry(api Transport, cache *BranchCache, sched debounce.Scheduler, destroyDelay time.Duration, opts ...StoreOption) *Registry {
	if destroyDelay <= 0 {
		destroyDelay = DefaultStoreDestroyDelay
	}
	return &Registry{
		api:          api,
		cache:        cache,
		sched:        sched,
		destroyDelay: destroyDelay,
		opts:         opts,
		entries:      make(map[string]*registryEntry),
	}
}

// Acquire returns the store for the conversation, creating it on first
// use, together with a release function. The first acquisition of a
// real conversation kicks off loading its metadata and messages in the
// background; failures land in the store's Err state. Release is
// idempotent.
func (r *Registry) Acquire(ctx context.Context, conversationID string) (*Store, func()) {
	r.mu.Lock()
	entry, ok := r.entries[conversationID]
	created := false
	if !ok {
		entry = &registryEntry{store: r.newStoreLocked(conversationID)}
		r.entries[conversationID] = entry
		created = true
	}
	entry.refs++
	if entry.destroy != nil {
		entry.destroy.Cancel()
		entry.destroy = nil
	}
	store := entry.store
	r.mu.Unlock()

	if created && conversationID != "" {
		// The load belongs to the store, which outlives the acquiring
		// screen; it must not die with the caller's context.
		loadCtx := context.WithoutCancel(ctx)
		go func() {
			if err := store.LoadConversation(loadCtx); err != nil {
				logger.GetLogger().Warn().Err(err).Str("conversation_id", conversationID).Msg("initial conversation load failed")
				return
			}
			if err := store.LoadMessages(loadCtx, ""); err != nil {
				logger.GetLogger().Warn().Err(err).Str("conversation_id", conversationID).Msg("initial message load failed")
			}
		}()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(conversationID) })
	}
	return store, release
}

// Get returns the store for the conversation without affecting its
// lifecycle, or nil when none exists.
func (r *Registry) Get(conversationID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[conversationID]; ok {
		return entry.store
	}
	return nil
}

// Len reports how many stores are currently alive.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) newStoreLocked(conversationID string) *Store {
	opts := append([]StoreOption{withOnRemove(func() { r.remove(conversationID) })}, r.opts...)
	return NewStore(conversationID, r.api, r.cache, opts...)
}

func (r *Registry) release(conversationID string) {
	// The sentinel store outlives every screen that borrows it.
	if conversationID == "" {
		r.mu.Lock()
		if entry, ok := r.entries[conversationID]; ok && entry.refs > 0 {
			entry.refs--
		}
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	entry, ok := r.entries[conversationID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if entry.refs > 0 {
		entry.refs--
	}
	if entry.refs == 0 && entry.destroy == nil {
		store := entry.store
		entry.destroy = r.sched.Schedule(r.destroyDelay, func() {
			store.Destroy()
		})
	}
	r.mu.Unlock()
}

func (r *Registry) remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[conversationID]
	if !ok {
		return
	}
	// A re-acquire that raced the destroy keeps the store alive.
	if entry.refs > 0 {
		entry.destroy = nil
		return
	}
	delete(r.entries, conversationID)
}
