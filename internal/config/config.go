package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all environment backed configuration for the chat core.
type Config struct {
	// Backend transport
	APIBaseURL    string        `env:"CHAT_API_BASE_URL" envDefault:"http://localhost:8390"`
	APIToken      string        `env:"CHAT_API_TOKEN"`
	HTTPTimeout   time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"30s"`
	StreamTimeout time.Duration `env:"CHAT_STREAM_TIMEOUT" envDefault:"120s"`

	// Store lifecycle. The two windows differ on purpose: re-fetching a
	// branch is cheap and common, rebuilding a conversation store is not.
	BranchCacheTTL    time.Duration `env:"CHAT_BRANCH_CACHE_TTL" envDefault:"1m"`
	StoreDestroyDelay time.Duration `env:"CHAT_STORE_DESTROY_DELAY" envDefault:"5m"`

	// Stub server
	HTTPPort    int `env:"HTTP_PORT" envDefault:"8390"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9391"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment config: %w", err)
	}
	return cfg, nil
}

// Profile is a named backend target in the CLI profile file.
type Profile struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token,omitempty"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads the YAML profile file used by the CLI to select a
// backend. A missing file is not an error; it just means no profiles.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var parsed profileFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse profile file: %w", err)
	}
	return parsed.Profiles, nil
}

// SelectProfile returns the named profile, or the first one when name
// is empty.
func SelectProfile(profiles []Profile, name string) (*Profile, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles configured")
	}
	if name == "" {
		return &profiles[0], nil
	}
	for i := range profiles {
		if strings.EqualFold(profiles[i].Name, name) {
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile not found: %s", name)
}
