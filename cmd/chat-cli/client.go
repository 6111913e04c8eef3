package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jan-client/chat-core/internal/config"
	"jan-client/chat-core/internal/infrastructure/apiclient"
)

// buildClient resolves the backend target from flags, the profile file
// and the environment, in that order of precedence.
func buildClient(cmd *cobra.Command) (*apiclient.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	baseURL := cfg.APIBaseURL
	token := cfg.APIToken

	profilesFile, _ := cmd.Flags().GetString("profiles-file")
	profileName, _ := cmd.Flags().GetString("profile")
	profiles, err := config.LoadProfiles(profilesFile)
	if err != nil {
		return nil, nil, err
	}
	if profileName != "" || len(profiles) > 0 {
		profile, err := config.SelectProfile(profiles, profileName)
		if err != nil {
			if profileName != "" {
				return nil, nil, err
			}
		} else {
			baseURL = profile.BaseURL
			if profile.Token != "" {
				token = profile.Token
			}
		}
	}

	if flagURL, _ := cmd.Flags().GetString("base-url"); flagURL != "" {
		baseURL = flagURL
	}
	if flagToken, _ := cmd.Flags().GetString("token"); flagToken != "" {
		token = flagToken
	}

	if baseURL == "" {
		return nil, nil, fmt.Errorf("no backend configured: set --base-url, a profile, or CHAT_API_BASE_URL")
	}

	client := apiclient.New(apiclient.Options{
		BaseURL:       baseURL,
		Token:         token,
		Timeout:       cfg.HTTPTimeout,
		StreamTimeout: cfg.StreamTimeout,
	})
	return client, cfg, nil
}
