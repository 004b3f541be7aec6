// Package config provides configuration for the pepper orchestrator daemon.
package config

import (
	"fmt"
	"os"
	"time"
)

// Default configuration values.
const (
	DefaultRobotURL     = "ws://192.168.1.38:9090"
	DefaultDialogueURL  = "http://localhost:5005"
	DefaultListenAddr   = ":8080"
	DefaultCameraFOV    = 1.0472 // ~60 degrees horizontal
	DefaultFrameWidth   = 640
	DefaultFrameHeight  = 480
	DefaultMicDevice    = "default"
)

// Config holds all configuration for the orchestrator.
// Flag parsing is done in cmd/pepper/main.go; this struct is data only.
type Config struct {
	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Robot actuator bridge. The orchestrator dials the bridge at
	// RobotURL; disabled means commands complete without a robot.
	RobotEnabled  bool
	RobotURL      string
	RobotDeadline time.Duration

	// Dialogue engine REST endpoint and per-call deadline.
	DialogueURL      string
	DialogueDeadline time.Duration

	// Perception sources. MicDevice "" or "none" disables speech
	// events; CameraEnabled false disables person/face/emotion events.
	CameraEnabled bool
	CameraFOV     float64 // horizontal field of view, radians
	FrameWidth    int
	FrameHeight   int
	MicDevice     string

	// Identity tracking windows.
	StaleAfter   time.Duration // active person unseen this long goes stale
	LostAfter    time.Duration // stale person unseen this long is removed
	MatchWindow  time.Duration // detections match persons seen within this window
	TickInterval time.Duration

	// Identity matching thresholds.
	MatchDistance float64 // pixels, box-center distance
	MatchBearing  float64 // radians, bearing-only distance

	// Confidence floors per modality. Events below the floor are dropped.
	MinPersonConfidence  float64
	MinFaceConfidence    float64
	MinEmotionConfidence float64
	MinSpeechConfidence  float64

	// ListenAddr serves the dashboard and the perception gateway.
	ListenAddr string

	// Visit journal backend: "off", "memory", "sqlite", "postgres".
	VisitDriver string
	VisitDSN    string
}

// DefaultConfig returns sensible defaults for the orchestrator.
func DefaultConfig() Config {
	return Config{
		LogLevel:             "info",
		RobotEnabled:         true,
		RobotURL:             DefaultRobotURL,
		RobotDeadline:        10 * time.Second,
		DialogueURL:          DefaultDialogueURL,
		DialogueDeadline:     5 * time.Second,
		CameraEnabled:        true,
		CameraFOV:            DefaultCameraFOV,
		FrameWidth:           DefaultFrameWidth,
		FrameHeight:          DefaultFrameHeight,
		MicDevice:            DefaultMicDevice,
		StaleAfter:           2 * time.Second,
		LostAfter:            5 * time.Second,
		MatchWindow:          3 * time.Second,
		TickInterval:         250 * time.Millisecond,
		MatchDistance:        120,
		MatchBearing:         0.26,
		MinPersonConfidence:  0.5,
		MinFaceConfidence:    0.5,
		MinEmotionConfidence: 0.4,
		MinSpeechConfidence:  0.3,
		ListenAddr:           DefaultListenAddr,
		VisitDriver:          "memory",
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnvConfig() {
	if url := os.Getenv("ROBOT_URL"); url != "" {
		c.RobotURL = url
	}
	if url := os.Getenv("DIALOGUE_URL"); url != "" {
		c.DialogueURL = url
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if dsn := os.Getenv("VISIT_DSN"); dsn != "" {
		c.VisitDSN = dsn
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
}

// SpeechEnabled reports whether speech events should be accepted.
func (c *Config) SpeechEnabled() bool {
	return c.MicDevice != "" && c.MicDevice != "none"
}

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.RobotEnabled && c.RobotURL == "" {
		return &ConfigError{Field: "RobotURL", Message: "robot enabled but no robot URL configured"}
	}
	if c.DialogueURL == "" {
		return &ConfigError{Field: "DialogueURL", Message: "dialogue engine URL is required"}
	}
	if c.StaleAfter <= 0 || c.LostAfter <= 0 {
		return &ConfigError{Field: "StaleAfter", Message: "liveness windows must be positive"}
	}
	if c.LostAfter <= c.StaleAfter {
		return &ConfigError{Field: "LostAfter", Message: "lost window must exceed stale window"}
	}
	if c.MatchWindow <= 0 {
		return &ConfigError{Field: "MatchWindow", Message: "match window must be positive"}
	}
	if c.MatchDistance <= 0 || c.MatchBearing <= 0 {
		return &ConfigError{Field: "MatchDistance", Message: "match thresholds must be positive"}
	}
	switch c.VisitDriver {
	case "off", "memory", "sqlite", "postgres":
	default:
		return &ConfigError{Field: "VisitDriver", Message: fmt.Sprintf("unknown visit journal driver %q", c.VisitDriver)}
	}
	if (c.VisitDriver == "sqlite" || c.VisitDriver == "postgres") && c.VisitDSN == "" {
		return &ConfigError{Field: "VisitDSN", Message: "visit journal DSN is required for " + c.VisitDriver}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
