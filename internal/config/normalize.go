package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRoles()
	c.normalizeTelegram()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeRoles() {
	if len(c.Roles) == 0 {
		c.Roles = defaultRoles()
		return
	}
	normalized := make(map[string]int64, len(c.Roles))
	for role, seq := range c.Roles {
		normalized[strings.ToUpper(strings.TrimSpace(role))] = seq
	}
	c.Roles = normalized
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if strings.TrimSpace(c.Telegram.BaseURL) == "" {
		c.Telegram.BaseURL = defaultTelegramBaseURL
	}
	c.Telegram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.BaseURL), "/")
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultTelegramTimeout
	}
	if len(c.Telegram.Chats) > 0 {
		normalized := make(map[string]string, len(c.Telegram.Chats))
		for role, chat := range c.Telegram.Chats {
			normalized[strings.ToUpper(strings.TrimSpace(role))] = strings.TrimSpace(chat)
		}
		c.Telegram.Chats = normalized
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}
