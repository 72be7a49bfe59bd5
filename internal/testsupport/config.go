package testsupport

import (
	"path/filepath"
	"testing"

	"loomline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRoles replaces the role to stage-sequence policy on the test config.
func WithRoles(roles map[string]int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Roles = roles
	}
}

// WithTelegram points the notifier at a test server.
func WithTelegram(botToken, baseURL, adminChat string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Telegram.BotToken = botToken
		cfg.Telegram.BaseURL = baseURL
		cfg.Telegram.AdminChat = adminChat
	}
}
