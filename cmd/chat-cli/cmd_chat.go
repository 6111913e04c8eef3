package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jan-client/chat-core/internal/domain/branchstore"
	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/domain/chatstore"
	"jan-client/chat-core/internal/utils/debounce"
)

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Chat interactively in a conversation",
	Long: `Opens an interactive session. Plain input is sent as a message;
slash commands inspect and manipulate the conversation:

  /messages                 show the current branch
  /edit <message-id> <text> edit a message and regenerate from it
  /branches <message-id>    list the branches forked from a message
  /switch <branch-id>       switch the active branch
  /quit                     leave`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("model", "default", "Model id for generated responses")
	chatCmd.Flags().String("assistant", "default", "Assistant id for generated responses")
}

func runChat(cmd *cobra.Command, args []string) error {
	client, cfg, err := buildClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	modelID, _ := cmd.Flags().GetString("model")
	assistantID, _ := cmd.Flags().GetString("assistant")

	sched := debounce.NewTimerScheduler()
	cache := chatstore.NewBranchCache(sched, cfg.BranchCacheTTL)
	list := chatstore.NewConversationList(client)
	branches := branchstore.NewRegistry(client, sched, cfg.StoreDestroyDelay)
	registry := chatstore.NewRegistry(client, cache, sched, cfg.StoreDestroyDelay,
		chatstore.WithBranchDisposer(branches),
		chatstore.WithConversationList(list),
	)

	conversationID := ""
	if len(args) == 1 {
		conversationID = args[0]
	} else {
		conv, err := list.Create(ctx, chatstore.CreateConversationRequest{ModelID: modelID, AssistantID: assistantID})
		if err != nil {
			return err
		}
		conversationID = conv.ID
		fmt.Fprintf(out, "started conversation %s\n", conv.ID)
	}

	store, release := registry.Acquire(ctx, conversationID)
	defer release()

	renderer := &streamRenderer{out: out}
	unsubscribe := store.Subscribe(func() { renderer.render(store.Snapshot()) })
	defer unsubscribe()

	fmt.Fprintln(out, `type a message, or "/quit" to leave`)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			if err := runSlashCommand(ctx, out, store, branches, line); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}

		renderer.begin()
		if err := store.SendMessage(ctx, line, assistantID, modelID, nil, nil); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		renderer.finish()
	}
}

func runSlashCommand(ctx context.Context, out io.Writer, store *chatstore.Store, branches *branchstore.Registry, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/messages":
		state := store.Snapshot()
		for _, msg := range state.Messages {
			fmt.Fprintf(out, "[%s] %s: %s\n", msg.ID, msg.Role, msg.TextContent())
		}
		return nil

	case "/edit":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /edit <message-id> <new text>")
		}
		newContent := strings.TrimSpace(strings.TrimPrefix(line, "/edit "+fields[1]))
		return store.EditMessage(ctx, fields[1], newContent, "", "", nil)

	case "/branches":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /branches <message-id>")
		}
		var originatedID string
		for _, msg := range store.Snapshot().Messages {
			if msg.ID == fields[1] {
				originatedID = msg.OriginatedFromID
			}
		}
		bs, releaseBranch := branches.Acquire(fields[1], originatedID)
		defer releaseBranch()
		if err := bs.Load(ctx); err != nil {
			return err
		}
		for _, branch := range bs.Branches() {
			marker := ""
			if branch.ID == store.Snapshot().ActiveBranchID {
				marker = " (active)"
			}
			fmt.Fprintf(out, "%s%s\n", branch.ID, marker)
		}
		return nil

	case "/switch":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /switch <branch-id>")
		}
		return store.SwitchBranch(ctx, fields[1])

	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

// streamRenderer prints assistant output incrementally as store
// notifications arrive during a streaming send or edit.
type streamRenderer struct {
	out       io.Writer
	active    bool
	messageID string
	printed   int
}

func (r *streamRenderer) begin() {
	r.active = true
	r.messageID = ""
	r.printed = 0
}

func (r *streamRenderer) finish() {
	if r.printed > 0 {
		fmt.Fprintln(r.out)
	}
	r.active = false
}

func (r *streamRenderer) render(state chatstore.State) {
	if !r.active || len(state.Messages) == 0 {
		return
	}
	last := state.Messages[len(state.Messages)-1]
	if last.Role != chat.RoleAssistant {
		return
	}
	text := last.TextContent()
	// The streaming target's id flips from placeholder to server id
	// mid-stream; track text length rather than identity.
	if last.ID != r.messageID && last.ID != "" {
		r.messageID = last.ID
	}
	if len(text) > r.printed {
		fmt.Fprint(r.out, text[r.printed:])
		r.printed = len(text)
	}
}
