package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.DatabasePath() == "" {
		t.Fatal("expected database path")
	}
}

func TestLoadReadsTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = "127.0.0.1:0"

[roles]
rap = 1
cat = 2

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be used, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
	if seq, ok := cfg.StageForRole("cat"); !ok || seq != 2 {
		t.Fatalf("expected role CAT at sequence 2, got %d ok=%v", seq, ok)
	}
	if _, ok := cfg.StageForRole("ADMIN"); ok {
		t.Fatal("ADMIN must not map to a stage")
	}
}

func TestValidateRejectsDuplicateRoleSequences(t *testing.T) {
	cfg := Default()
	cfg.Roles = map[string]int64{"RAP": 1, "CAT": 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate sequence error")
	}
}

func TestStageForRoleNormalizesCase(t *testing.T) {
	cfg := Default()
	if seq, ok := cfg.StageForRole(" thiet_ke "); !ok || seq != 4 {
		t.Fatalf("expected THIET_KE at 4, got %d ok=%v", seq, ok)
	}
}
