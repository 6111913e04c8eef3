package chatstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/utils/debounce"
)

func textMessage(id, text string) chat.Message {
	return chat.Message{
		ID:   id,
		Role: chat.RoleAssistant,
		Contents: []chat.ContentItem{{
			ID:        id + "-c0",
			MessageID: id,
			Type:      chat.ContentTypeText,
			Text:      text,
		}},
	}
}

func TestBranchCacheHitWithinTTL(t *testing.T) {
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)

	cache.Put("conv-1", "branch-a", []chat.Message{textMessage("m1", "hello")})
	cache.ScheduleEviction("conv-1", "branch-a")

	clock.Advance(59 * time.Second)
	got, ok := cache.Get("conv-1", "branch-a")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Contents[0].Text)
}

func TestBranchCacheEvictsAfterTTL(t *testing.T) {
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)

	cache.Put("conv-1", "branch-a", []chat.Message{textMessage("m1", "hello")})
	cache.ScheduleEviction("conv-1", "branch-a")

	clock.Advance(time.Minute)
	_, ok := cache.Get("conv-1", "branch-a")
	assert.False(t, ok)
}

func TestBranchCacheCancelEvictionKeepsEntry(t *testing.T) {
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)

	cache.Put("conv-1", "branch-a", []chat.Message{textMessage("m1", "hello")})
	cache.ScheduleEviction("conv-1", "branch-a")
	cache.CancelEviction("conv-1", "branch-a")

	clock.Advance(time.Hour)
	_, ok := cache.Get("conv-1", "branch-a")
	assert.True(t, ok)
}

func TestBranchCacheRescheduleResetsTimer(t *testing.T) {
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)

	cache.Put("conv-1", "branch-a", []chat.Message{textMessage("m1", "hello")})
	cache.ScheduleEviction("conv-1", "branch-a")

	clock.Advance(45 * time.Second)
	cache.ScheduleEviction("conv-1", "branch-a")

	clock.Advance(45 * time.Second)
	_, ok := cache.Get("conv-1", "branch-a")
	require.True(t, ok, "rescheduling must restart the idle window")

	clock.Advance(15 * time.Second)
	_, ok = cache.Get("conv-1", "branch-a")
	assert.False(t, ok)
}

func TestBranchCachePurgeConversation(t *testing.T) {
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)

	cache.Put("conv-1", "branch-a", []chat.Message{textMessage("m1", "a")})
	cache.Put("conv-1", "branch-b", []chat.Message{textMessage("m2", "b")})
	cache.Put("conv-2", "branch-a", []chat.Message{textMessage("m3", "c")})
	cache.ScheduleEviction("conv-1", "branch-a")

	cache.PurgeConversation("conv-1")

	_, ok := cache.Get("conv-1", "branch-a")
	assert.False(t, ok)
	_, ok = cache.Get("conv-1", "branch-b")
	assert.False(t, ok)
	_, ok = cache.Get("conv-2", "branch-a")
	assert.True(t, ok, "other conversations must survive a purge")
	assert.Zero(t, clock.Pending())
}

func TestBranchCacheSnapshotsDoNotAlias(t *testing.T) {
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)

	original := []chat.Message{textMessage("m1", "hello")}
	cache.Put("conv-1", "branch-a", original)
	original[0].Contents[0].Text = "mutated after put"

	got, ok := cache.Get("conv-1", "branch-a")
	require.True(t, ok)
	assert.Equal(t, "hello", got[0].Contents[0].Text)

	got[0].Contents[0].Text = "mutated after get"
	again, _ := cache.Get("conv-1", "branch-a")
	assert.Equal(t, "hello", again[0].Contents[0].Text)
}
