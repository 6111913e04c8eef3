package chatstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/utils/debounce"
)

func newTestRegistry(t *testing.T) (*Registry, *debounce.Manual, *BranchCache, *fakeTransport) {
	t.Helper()
	api := newFakeTransport()
	// Fail the background initial load so lifecycle assertions do not
	// race against it.
	api.getErr = errors.New("offline")
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)
	return NewRegistry(api, cache, clock, 5*time.Minute), clock, cache, api
}

func TestRegistryReusesStorePerConversation(t *testing.T) {
	registry, _, _, _ := newTestRegistry(t)

	a, releaseA := registry.Acquire(context.Background(), "conv-1")
	b, releaseB := registry.Acquire(context.Background(), "conv-1")
	defer releaseA()
	defer releaseB()

	assert.Same(t, a, b)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryDestroysAfterDelay(t *testing.T) {
	registry, clock, cache, _ := newTestRegistry(t)

	store, release := registry.Acquire(context.Background(), "conv-1")
	cache.Put("conv-1", "branch-a", []chat.Message{textMessage("m1", "hi")})
	release()

	require.Equal(t, 1, registry.Len(), "store lingers during the destroy window")

	clock.Advance(5 * time.Minute)

	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, registry.Get("conv-1"))
	_, ok := cache.Get("conv-1", "branch-a")
	assert.False(t, ok, "destroy purges the conversation's cache entries")
	_ = store
}

func TestRegistryReacquireCancelsDestroy(t *testing.T) {
	registry, clock, _, _ := newTestRegistry(t)

	first, release := registry.Acquire(context.Background(), "conv-1")
	release()

	clock.Advance(4 * time.Minute)
	second, release2 := registry.Acquire(context.Background(), "conv-1")
	defer release2()

	clock.Advance(time.Hour)

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryReleaseIsIdempotent(t *testing.T) {
	registry, clock, _, _ := newTestRegistry(t)

	_, releaseA := registry.Acquire(context.Background(), "conv-1")
	_, releaseB := registry.Acquire(context.Background(), "conv-1")

	releaseA()
	releaseA()
	clock.Advance(time.Hour)
	assert.Equal(t, 1, registry.Len(), "double release must not steal the second holder's reference")

	releaseB()
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, registry.Len())
}

func TestAcquireInitialLoadSurvivesCallerCancel(t *testing.T) {
	api := newFakeTransport()
	api.conversation = &chat.Conversation{ID: "conv-1", ActiveBranchID: "branch-a"}
	api.branches["branch-a"] = []chat.Message{textMessage("m1", "hi")}
	clock := debounce.NewManual()
	cache := NewBranchCache(clock, time.Minute)
	registry := NewRegistry(api, cache, clock, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, release := registry.Acquire(ctx, "conv-1")
	defer release()

	require.Eventually(t, func() bool {
		state := store.Snapshot()
		return state.Conversation != nil && len(state.Messages) == 1
	}, time.Second, 5*time.Millisecond, "background load runs despite the cancelled caller context")
}

func TestRegistrySentinelStoreIsNeverDestroyed(t *testing.T) {
	registry, clock, _, _ := newTestRegistry(t)

	sentinel, release := registry.Acquire(context.Background(), "")
	release()
	clock.Advance(time.Hour)

	again, release2 := registry.Acquire(context.Background(), "")
	defer release2()

	assert.Same(t, sentinel, again)
	assert.Equal(t, "", sentinel.ConversationID())
}
