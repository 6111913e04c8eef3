package chat

import (
	"testing"
)

func TestSetIDUpdatesContentItemsInLockstep(t *testing.T) {
	msg := NewUserMessage("conv-1", "hello", nil)
	msg.AppendContent(ContentItem{ID: "mc-2", Type: ContentTypeText})

	msg.SetID("srv-42")

	if msg.ID != "srv-42" {
		t.Fatalf("id = %q", msg.ID)
	}
	for i, item := range msg.Contents {
		if item.MessageID != "srv-42" {
			t.Fatalf("content %d message_id = %q, want srv-42", i, item.MessageID)
		}
	}
}

func TestAppendContentAssignsSequence(t *testing.T) {
	msg := NewAssistantPlaceholder("conv-1")

	msg.AppendContent(ContentItem{ID: "a", Type: ContentTypeText})
	msg.AppendContent(ContentItem{ID: "b", Type: ContentTypeToolCall, ToolCall: &ToolCallContent{ToolName: "search"}})
	msg.AppendContent(ContentItem{ID: "c", Type: ContentTypeText})

	for i, item := range msg.Contents {
		if item.Sequence != i {
			t.Fatalf("content %q sequence = %d, want %d", item.ID, item.Sequence, i)
		}
		if item.MessageID != msg.ID {
			t.Fatalf("content %q message_id not set", item.ID)
		}
	}
}

func TestAppendDelta(t *testing.T) {
	msg := NewAssistantPlaceholder("conv-1")
	msg.AppendContent(ContentItem{ID: "mc-1", Type: ContentTypeText})

	for _, delta := range []string{"Hel", "lo ", "world"} {
		if !msg.AppendDelta("mc-1", delta) {
			t.Fatalf("AppendDelta(%q) did not find content", delta)
		}
	}

	if got := msg.TextContent(); got != "Hello world" {
		t.Fatalf("text = %q", got)
	}

	// Missing content item is a no-op, reported to the caller.
	if msg.AppendDelta("missing", "x") {
		t.Fatal("AppendDelta on missing content should return false")
	}

	// Empty delta is a no-op regardless of target.
	if !msg.AppendDelta("missing", "") {
		t.Fatal("empty delta should be accepted")
	}
}

func TestCloneDoesNotAliasContents(t *testing.T) {
	msg := NewUserMessage("conv-1", "original", nil)
	clone := msg.Clone()

	clone.Contents[0].Text = "mutated"
	if msg.Contents[0].Text != "original" {
		t.Fatal("clone aliases source contents")
	}

	msg.AppendDelta(msg.Contents[0].ID, " more")
	if clone.Contents[0].Text != "mutated" {
		t.Fatal("source mutation leaked into clone")
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "   ", "New Conversation"},
		{"short", "Plan my trip", "Plan my trip"},
		{
			"long breaks at word boundary",
			"Please help me plan a two week trip through Japan visiting temples and gardens",
			"Please help me plan a two week trip through Japan visiting...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.content); got != tt.want {
				t.Errorf("DeriveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
