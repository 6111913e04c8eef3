package chatstore

import (
	"strings"
	"sync"
	"time"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/infrastructure/metrics"
	"jan-client/chat-core/internal/utils/debounce"
)

// DefaultBranchCacheTTL is the idle window after which an inactive
// branch's message snapshot is dropped.
const DefaultBranchCacheTTL = time.Minute

// BranchCache holds message-list snapshots keyed by conversation and
// branch, so switching back to a recently left branch needs no network
// call. Entries for inactive branches are evicted after an idle
// window; the active branch of a store must never carry a pending
// eviction timer.
type BranchCache struct {
	mu      sync.Mutex
	sched   debounce.Scheduler
	ttl     time.Duration
	entries map[string][]chat.Message
	timers  map[string]debounce.Handle
}

// NewBranchCache builds a cache over the given scheduler. A zero ttl
// falls back to DefaultBranchCacheTTL.
func NewBranchCache(sched debounce.Scheduler, ttl time.Duration) *BranchCache {
	if ttl <= 0 {
		ttl = DefaultBranchCacheTTL
	}
	return &BranchCache{
		sched:   sched,
		ttl:     ttl,
		entries: make(map[string][]chat.Message),
		timers:  make(map[string]debounce.Handle),
	}
}

func cacheKey(conversationID, branchID string) string {
	return conversationID + ":" + branchID
}

// Get returns a copy of the cached snapshot for the branch.
func (c *BranchCache) Get(conversationID, branchID string) ([]chat.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages, ok := c.entries[cacheKey(conversationID, branchID)]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return chat.CloneMessages(messages), true
}

// Put overwrites the snapshot for the branch.
func (c *BranchCache) Put(conversationID, branchID string, messages []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(conversationID, branchID)] = chat.CloneMessages(messages)
}

// ScheduleEviction starts (or restarts) the idle timer for the branch.
func (c *BranchCache) ScheduleEviction(conversationID, branchID string) {
	key := cacheKey(conversationID, branchID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[key]; ok {
		timer.Cancel()
	}
	c.timers[key] = c.sched.Schedule(c.ttl, func() {
		c.evict(key)
	})
}

// CancelEviction cancels a pending idle timer without touching the
// entry, used when the branch becomes active again before expiry.
func (c *BranchCache) CancelEviction(conversationID, branchID string) {
	key := cacheKey(conversationID, branchID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[key]; ok {
		timer.Cancel()
		delete(c.timers, key)
	}
}

// PurgeConversation drops every entry and timer belonging to the
// conversation. Called when its store is destroyed.
func (c *BranchCache) PurgeConversation(conversationID string) {
	prefix := conversationID + ":"

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	for key, timer := range c.timers {
		if strings.HasPrefix(key, prefix) {
			timer.Cancel()
			delete(c.timers, key)
		}
	}
}

func (c *BranchCache) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		metrics.CacheEvictionsTotal.Inc()
	}
	delete(c.timers, key)
}
