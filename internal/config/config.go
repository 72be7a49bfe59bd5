package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Telegram contains configuration for Telegram group notifications.
// Chats maps a department role (RAP, CAT, MAY, ...) to the chat ID that
// receives that department's notifications.
type Telegram struct {
	BotToken       string            `toml:"bot_token"`
	BaseURL        string            `toml:"base_url"`
	RequestTimeout int               `toml:"request_timeout"`
	Chats          map[string]string `toml:"chats"`
	AdminChat      string            `toml:"admin_chat"`
	StageEvents    bool              `toml:"stage_events"`
	WorkerEvents   bool              `toml:"worker_events"`
	MaterialEvents bool              `toml:"material_events"`
	WarehouseEvent bool              `toml:"warehouse_events"`
}

// Workflow contains tuning knobs for the tracking core.
type Workflow struct {
	// AllowEmptyStageComplete permits admins to complete an active stage
	// that has no worker assignments.
	AllowEmptyStageComplete bool `toml:"allow_empty_stage_complete"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Loomline.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Roles: department role to stage sequence assignment policy
//   - Telegram: per-department group notification settings
//   - Workflow: tracking core behavior toggles
//   - Logging: log format and level
type Config struct {
	Paths    Paths            `toml:"paths"`
	Roles    map[string]int64 `toml:"roles"`
	Telegram Telegram         `toml:"telegram"`
	Workflow Workflow         `toml:"workflow"`
	Logging  Logging          `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loomline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loomline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the tracker writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the tracking database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "loomline.db")
}

// StageForRole resolves a department role to its stage sequence position.
// Returns false for roles without a stage assignment (ADMIN, THU_MUA).
func (c *Config) StageForRole(role string) (int64, bool) {
	seq, ok := c.Roles[strings.ToUpper(strings.TrimSpace(role))]
	if !ok || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
