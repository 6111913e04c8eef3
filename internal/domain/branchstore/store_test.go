package branchstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/utils/debounce"
)

type fakeLister struct {
	mu       sync.Mutex
	branches map[string][]chat.MessageBranch
	err      error
	calls    int
}

func (f *fakeLister) ListMessageBranches(ctx context.Context, messageID string) ([]chat.MessageBranch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.branches[messageID], nil
}

func TestStoreLoadOnce(t *testing.T) {
	api := &fakeLister{branches: map[string][]chat.MessageBranch{
		"m1": {{ID: "b1", ConversationID: "conv-1"}, {ID: "b2", ConversationID: "conv-1", IsClone: true}},
	}}
	store := NewStore("m1", "", api)

	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Load(context.Background()), "second load is a no-op")

	assert.Equal(t, 1, api.calls)
	branches := store.Branches()
	require.Len(t, branches, 2)
	assert.True(t, branches[1].IsClone)
}

func TestStoreRefreshRefetches(t *testing.T) {
	api := &fakeLister{branches: map[string][]chat.MessageBranch{"m1": {{ID: "b1"}}}}
	store := NewStore("m1", "", api)

	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 2, api.calls)
}

func TestStoreLoadFailure(t *testing.T) {
	api := &fakeLister{err: errors.New("backend unreachable")}
	store := NewStore("m1", "", api)

	require.Error(t, store.Load(context.Background()))
	assert.Contains(t, store.Err(), "backend unreachable")

	// A failed load does not latch; the next load retries.
	api.mu.Lock()
	api.err = nil
	api.mu.Unlock()
	require.NoError(t, store.Load(context.Background()))
	assert.Empty(t, store.Err())
}

func TestStoreOriginatedIDDefaultsToMessageID(t *testing.T) {
	store := NewStore("m1", "", &fakeLister{})
	assert.Equal(t, "m1", store.OriginatedID())
}

func TestRegistryReusesStorePerMessage(t *testing.T) {
	registry := NewRegistry(&fakeLister{}, debounce.NewManual(), time.Minute)

	a, releaseA := registry.Acquire("m1", "")
	b, releaseB := registry.Acquire("m1", "")
	defer releaseA()
	defer releaseB()

	assert.Same(t, a, b)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryRemovesAfterDelay(t *testing.T) {
	clock := debounce.NewManual()
	registry := NewRegistry(&fakeLister{}, clock, time.Minute)

	_, release := registry.Acquire("m1", "")
	release()

	require.Equal(t, 1, registry.Len(), "store lingers during the removal window")
	clock.Advance(time.Minute)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryReacquireCancelsRemoval(t *testing.T) {
	clock := debounce.NewManual()
	registry := NewRegistry(&fakeLister{}, clock, time.Minute)

	first, release := registry.Acquire("m1", "")
	release()

	second, release2 := registry.Acquire("m1", "")
	defer release2()
	clock.Advance(time.Hour)

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryRemoveByOriginatedID(t *testing.T) {
	registry := NewRegistry(&fakeLister{}, debounce.NewManual(), time.Minute)

	_, r1 := registry.Acquire("m1", "")
	_, r2 := registry.Acquire("m1-v2", "m1")
	_, r3 := registry.Acquire("unrelated", "")
	defer r1()
	defer r2()
	defer r3()

	registry.RemoveByOriginatedID("m1")

	assert.Nil(t, registry.Get("m1"))
	assert.Nil(t, registry.Get("m1-v2"))
	assert.NotNil(t, registry.Get("unrelated"))
}

func TestRegistryRemoveEmptyIDIsNoop(t *testing.T) {
	registry := NewRegistry(&fakeLister{}, debounce.NewManual(), time.Minute)
	_, release := registry.Acquire("m1", "")
	defer release()
	registry.RemoveByOriginatedID("")
	assert.Equal(t, 1, registry.Len())
}
