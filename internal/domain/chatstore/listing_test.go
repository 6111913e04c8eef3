package chatstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-client/chat-core/internal/domain/chat"
)

func TestConversationListLoad(t *testing.T) {
	api := newFakeTransport()
	api.conversations = []chat.ConversationSummary{
		{ID: "conv-1", Title: "Trip planning"},
		{ID: "conv-2", Title: "Weather"},
	}
	list := NewConversationList(api)

	require.NoError(t, list.Load(context.Background()))

	got := list.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "Trip planning", got[0].Title)
}

func TestConversationListCreatePrepends(t *testing.T) {
	api := newFakeTransport()
	api.conversations = []chat.ConversationSummary{{ID: "conv-1", Title: "Existing"}}
	list := NewConversationList(api)
	require.NoError(t, list.Load(context.Background()))

	conv, err := list.Create(context.Background(), CreateConversationRequest{Title: "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, "conv-new", conv.ID)

	got := list.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "conv-new", got[0].ID)
}

func TestConversationListCreateEmptyTitleFallsBack(t *testing.T) {
	api := newFakeTransport()
	list := NewConversationList(api)

	conv, err := list.Create(context.Background(), CreateConversationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", conv.Title)
}

func TestConversationListSetTitle(t *testing.T) {
	api := newFakeTransport()
	api.conversations = []chat.ConversationSummary{{ID: "conv-1", Title: "New Conversation"}}
	list := NewConversationList(api)
	require.NoError(t, list.Load(context.Background()))

	notified := 0
	unsubscribe := list.Subscribe(func() { notified++ })
	defer unsubscribe()

	list.SetTitle("conv-1", "Tokyo weather")
	assert.Equal(t, "Tokyo weather", list.Snapshot()[0].Title)
	assert.Equal(t, 1, notified)

	list.SetTitle("conv-unknown", "ignored")
	assert.Equal(t, 1, notified, "unknown ids are ignored")
}
