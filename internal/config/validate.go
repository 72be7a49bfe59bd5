package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRoles(); err != nil {
		return err
	}
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateRoles() error {
	if len(c.Roles) == 0 {
		return errors.New("roles must map at least one department role to a stage sequence")
	}
	seen := make(map[int64]string, len(c.Roles))
	for role, seq := range c.Roles {
		if seq <= 0 {
			return fmt.Errorf("roles.%s: stage sequence must be positive", role)
		}
		if prior, ok := seen[seq]; ok {
			return fmt.Errorf("roles.%s: stage sequence %d already assigned to %s", role, seq, prior)
		}
		seen[seq] = role
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		// Notifications disabled; chat routing is irrelevant.
		return nil
	}
	if strings.TrimSpace(c.Telegram.BaseURL) == "" {
		return errors.New("telegram.base_url must be set when telegram.bot_token is configured")
	}
	if c.Telegram.RequestTimeout <= 0 {
		return errors.New("telegram.request_timeout must be positive (seconds)")
	}
	for role, chat := range c.Telegram.Chats {
		if strings.TrimSpace(chat) == "" {
			return fmt.Errorf("telegram.chats.%s must not be empty", role)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
