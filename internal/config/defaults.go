package config

const (
	defaultDataDir         = "~/.local/share/loomline"
	defaultLogDir          = "~/.local/share/loomline/logs"
	defaultAPIBind         = "127.0.0.1:7512"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultTelegramTimeout = 10
)

// defaultRoles is the department role to stage sequence assignment policy.
// Kept as one table so the workflow authorization helper and the dashboards
// share a single source instead of re-declaring the map per call site.
func defaultRoles() map[string]int64 {
	return map[string]int64{
		"RAP":      1,
		"CAT":      2,
		"MAY":      3,
		"THIET_KE": 4,
		"DINH_KET": 5,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Roles: defaultRoles(),
		Telegram: Telegram{
			BaseURL:        defaultTelegramBaseURL,
			RequestTimeout: defaultTelegramTimeout,
			StageEvents:    true,
			WorkerEvents:   true,
			MaterialEvents: true,
			WarehouseEvent: true,
		},
		Workflow: Workflow{
			AllowEmptyStageComplete: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
