package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: unexpected error: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "robot enabled without URL",
			mutate: func(c *Config) { c.RobotURL = "" },
			field:  "RobotURL",
		},
		{
			name:   "missing dialogue URL",
			mutate: func(c *Config) { c.DialogueURL = "" },
			field:  "DialogueURL",
		},
		{
			name:   "lost window not after stale window",
			mutate: func(c *Config) { c.LostAfter = c.StaleAfter },
			field:  "LostAfter",
		},
		{
			name:   "zero match window",
			mutate: func(c *Config) { c.MatchWindow = 0 },
			field:  "MatchWindow",
		},
		{
			name:   "unknown visit driver",
			mutate: func(c *Config) { c.VisitDriver = "redis" },
			field:  "VisitDriver",
		},
		{
			name:   "sqlite without DSN",
			mutate: func(c *Config) { c.VisitDriver = "sqlite"; c.VisitDSN = "" },
			field:  "VisitDSN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			cerr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate: expected *ConfigError, got %T", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Validate field: got %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestSpeechEnabled(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.SpeechEnabled() {
		t.Error("SpeechEnabled: got false with default mic device")
	}
	cfg.MicDevice = "none"
	if cfg.SpeechEnabled() {
		t.Error("SpeechEnabled: got true with mic device \"none\"")
	}
	cfg.MicDevice = ""
	if cfg.SpeechEnabled() {
		t.Error("SpeechEnabled: got true with empty mic device")
	}
}

func TestLoadFileAppliesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
log_level: debug
robot:
  enabled: false
tracking:
  stale_after: 1500ms
  match_distance: 80
visits:
  driver: sqlite
  dsn: /tmp/visits.db
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.RobotEnabled {
		t.Error("RobotEnabled: got true, want false")
	}
	if cfg.StaleAfter != 1500*time.Millisecond {
		t.Errorf("StaleAfter: got %v, want 1.5s", cfg.StaleAfter)
	}
	if cfg.MatchDistance != 80 {
		t.Errorf("MatchDistance: got %v, want 80", cfg.MatchDistance)
	}
	if cfg.VisitDriver != "sqlite" || cfg.VisitDSN != "/tmp/visits.db" {
		t.Errorf("visits: got %q %q, want sqlite /tmp/visits.db", cfg.VisitDriver, cfg.VisitDSN)
	}

	// Untouched fields keep their defaults.
	if cfg.LostAfter != 5*time.Second {
		t.Errorf("LostAfter: got %v, want 5s", cfg.LostAfter)
	}
	if cfg.DialogueURL != DefaultDialogueURL {
		t.Errorf("DialogueURL: got %q, want default", cfg.DialogueURL)
	}
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("tracking:\n  stale_after: soon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err == nil {
		t.Fatal("LoadFile: expected error for unparseable duration, got nil")
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("ROBOT_URL", "ws://10.0.0.5:9090")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.RobotURL != "ws://10.0.0.5:9090" {
		t.Errorf("RobotURL: got %q, want env override", cfg.RobotURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "warn")
	}
}
