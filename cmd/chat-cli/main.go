package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"jan-client/chat-core/internal/infrastructure/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "chat-cli",
	Short: "Jan chat client - terminal frontend for the chat backend",
	Long: `chat-cli is a terminal frontend for the Jan chat backend.

It drives the same conversation stores the desktop client uses:
streaming responses, message editing with branch forking, and branch
switching.

Examples:
  # List conversations
  chat-cli conversations list

  # Start a new conversation and chat interactively
  chat-cli chat

  # Continue an existing conversation
  chat-cli chat 4f6b21aa-90cd-4a6e-a7a5-2f4f6f8f9b10`,
	Version: version,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		logger.Setup(level, "console")
	})

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(conversationsCmd)

	rootCmd.PersistentFlags().String("base-url", "", "Backend base URL (overrides profile and environment)")
	rootCmd.PersistentFlags().String("token", "", "Backend API token")
	rootCmd.PersistentFlags().String("profile", "", "Named profile from the profiles file")
	rootCmd.PersistentFlags().String("profiles-file", "profiles.yaml", "Path to the YAML profiles file")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
}
