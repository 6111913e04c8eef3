package branchstore

import (
	"sync"
	"time"

	"jan-client/chat-core/internal/utils/debounce"
)

// DefaultRemoveDelay is how long an unreferenced branch store lingers
// before removal, mirroring the conversation-store lifecycle.
const DefaultRemoveDelay = 5 * time.Minute

// Registry hands out one branch store per message, with the same
// refcount-plus-debounced-teardown discipline as the conversation
// store registry. An edit invalidates a whole lineage at once via
// RemoveByOriginatedID regardless of references, since the stale
// branch list must not survive the fork.
type Registry struct {
	api         BranchLister
	sched       debounce.Scheduler
	removeDelay time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	store  *Store
	refs   int
	remove debounce.Handle
}

// NewRegistry creates a registry. A removeDelay of zero or less falls
// back to DefaultRemoveDelay.
func NewRegistry(api BranchLister, sched debounce.Scheduler, removeDelay time.Duration) *Registry {
	if removeDelay <= 0 {
		removeDelay = DefaultRemoveDelay
	}
	return &Registry{
		api:         api,
		sched:       sched,
		removeDelay: removeDelay,
		entries:     make(map[string]*registryEntry),
	}
}

// Acquire returns the store for the message, creating it on first use,
// together with an idempotent release function. Releasing the last
// reference arms a delayed removal; re-acquiring disarms it.
func (r *Registry) Acquire(messageID, originatedID string) (*Store, func()) {
	r.mu.Lock()
	entry, ok := r.entries[messageID]
	if !ok {
		entry = &registryEntry{store: NewStore(messageID, originatedID, r.api)}
		r.entries[messageID] = entry
	}
	entry.refs++
	if entry.remove != nil {
		entry.remove.Cancel()
		entry.remove = nil
	}
	store := entry.store
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(messageID) })
	}
	return store, release
}

// Get returns the store for the message, or nil.
func (r *Registry) Get(messageID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[messageID]; ok {
		return entry.store
	}
	return nil
}

// RemoveByOriginatedID drops every store belonging to the edited
// message lineage. An edit forks a new sibling, so any cached branch
// list for that lineage is stale.
func (r *Registry) RemoveByOriginatedID(originatedID string) {
	if originatedID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		if entry.store.originatedID == originatedID || key == originatedID {
			if entry.remove != nil {
				entry.remove.Cancel()
			}
			delete(r.entries, key)
		}
	}
}

// Len reports how many stores are alive.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) release(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[messageID]
	if !ok {
		return
	}
	if entry.refs > 0 {
		entry.refs--
	}
	if entry.refs == 0 && entry.remove == nil {
		entry.remove = r.sched.Schedule(r.removeDelay, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if current, ok := r.entries[messageID]; ok && current.refs == 0 {
				delete(r.entries, messageID)
			}
		})
	}
}
