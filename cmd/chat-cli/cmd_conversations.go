package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jan-client/chat-core/internal/domain/chatstore"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations on the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := buildClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		list := chatstore.NewConversationList(client)
		if err := list.Load(context.Background()); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
		for _, conv := range list.Snapshot() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", conv.ID, conv.Title, conv.MessageCount, conv.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var conversationsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := buildClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		title, _ := cmd.Flags().GetString("title")
		modelID, _ := cmd.Flags().GetString("model")
		assistantID, _ := cmd.Flags().GetString("assistant")

		list := chatstore.NewConversationList(client)
		conv, err := list.Create(context.Background(), chatstore.CreateConversationRequest{
			Title:       title,
			ModelID:     modelID,
			AssistantID: assistantID,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created conversation %s (%s)\n", conv.ID, conv.Title)
		return nil
	},
}

func init() {
	conversationsCreateCmd.Flags().String("title", "", "Conversation title")
	conversationsCreateCmd.Flags().String("model", "", "Model id")
	conversationsCreateCmd.Flags().String("assistant", "", "Assistant id")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsCreateCmd)
}
