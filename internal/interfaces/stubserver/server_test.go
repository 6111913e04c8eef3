package stubserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/domain/chatstore"
	"jan-client/chat-core/internal/infrastructure/apiclient"
)

func newTestBackend(t *testing.T) *apiclient.Client {
	t.Helper()
	server := httptest.NewServer(New(Options{}).Handler())
	t.Cleanup(server.Close)
	client := apiclient.New(apiclient.Options{BaseURL: server.URL, Timeout: 5 * time.Second, StreamTimeout: 5 * time.Second})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func collectEvents(t *testing.T, events <-chan chat.StreamEvent) []chat.StreamEvent {
	t.Helper()
	var out []chat.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func eventNames(events []chat.StreamEvent) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.EventName()
	}
	return names
}

func TestConversationLifecycle(t *testing.T) {
	client := newTestBackend(t)
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, chatstore.CreateConversationRequest{ModelID: "model-1"})
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", conv.Title)
	assert.NotEmpty(t, conv.ActiveBranchID)

	got, err := client.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	summaries, err := client.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
}

func TestSendMessageFlow(t *testing.T) {
	client := newTestBackend(t)
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, chatstore.CreateConversationRequest{})
	require.NoError(t, err)

	events, err := client.SendMessageStream(ctx, chatstore.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "What is the weather in Tokyo",
		AssistantID:    "asst-1",
		ModelID:        "model-1",
	})
	require.NoError(t, err)

	all := collectEvents(t, events)
	names := eventNames(all)

	require.NotEmpty(t, names)
	assert.Equal(t, chat.EventConnected, names[0])
	assert.Equal(t, chat.EventComplete, names[len(names)-1])
	assert.Contains(t, names, chat.EventNewUserMessage)
	assert.Contains(t, names, chat.EventNewAssistantMessage)
	assert.Contains(t, names, chat.EventMessageContentChunk)
	assert.Contains(t, names, chat.EventTitleUpdated, "first exchange derives a title")

	messages, err := client.ListMessages(ctx, conv.ID, "")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)
	assert.NotEmpty(t, messages[1].TextContent())

	updated, err := client.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is the weather in Tokyo", updated.Title)
}

func TestEditMessageForksBranch(t *testing.T) {
	client := newTestBackend(t)
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, chatstore.CreateConversationRequest{})
	require.NoError(t, err)
	originalBranch := conv.ActiveBranchID

	events, err := client.SendMessageStream(ctx, chatstore.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "first question",
		AssistantID:    "asst-1",
		ModelID:        "model-1",
	})
	require.NoError(t, err)
	collectEvents(t, events)

	messages, err := client.ListMessages(ctx, conv.ID, "")
	require.NoError(t, err)
	userMsgID := messages[0].ID

	events, err = client.EditMessageStream(ctx, chatstore.EditMessageRequest{
		ConversationID: conv.ID,
		MessageID:      userMsgID,
		Content:        "revised question",
	})
	require.NoError(t, err)
	all := collectEvents(t, events)
	names := eventNames(all)
	assert.Contains(t, names, chat.EventEditedMessage)
	assert.Contains(t, names, chat.EventCreatedBranch)

	var edited chat.Message
	for _, ev := range all {
		if e, ok := ev.(chat.EditedMessageEvent); ok {
			edited = e.Message
		}
	}
	assert.Equal(t, userMsgID, edited.OriginatedFromID)
	assert.Equal(t, 1, edited.EditCount)
	assert.Equal(t, "revised question", edited.TextContent())

	updated, err := client.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, originalBranch, updated.ActiveBranchID, "edit switches to the forked branch")

	forked, err := client.ListMessages(ctx, conv.ID, updated.ActiveBranchID)
	require.NoError(t, err)
	require.Len(t, forked, 2)
	assert.Equal(t, "revised question", forked[0].TextContent())

	// The original branch keeps its history.
	old, err := client.ListMessages(ctx, conv.ID, originalBranch)
	require.NoError(t, err)
	require.Len(t, old, 2)
	assert.Equal(t, "first question", old[0].TextContent())

	branches, err := client.ListMessageBranches(ctx, userMsgID)
	require.NoError(t, err)
	assert.Len(t, branches, 2)
}

func TestResolveFiles(t *testing.T) {
	client := newTestBackend(t)

	files, err := client.ResolveFiles(context.Background(), []string{"f1", "f2"})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "f1.txt", files[0].Name)
}

func TestSwitchBranchUnknownBranch(t *testing.T) {
	client := newTestBackend(t)
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, chatstore.CreateConversationRequest{})
	require.NoError(t, err)

	err = client.SwitchBranch(ctx, conv.ID, "missing-branch")
	require.Error(t, err)
}
