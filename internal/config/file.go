package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Durations are strings
// ("2s", "250ms") so the file stays readable.
type fileConfig struct {
	LogLevel string `yaml:"log_level"`

	Robot struct {
		Enabled  *bool  `yaml:"enabled"`
		URL      string `yaml:"url"`
		Deadline string `yaml:"deadline"`
	} `yaml:"robot"`

	Dialogue struct {
		URL      string `yaml:"url"`
		Deadline string `yaml:"deadline"`
	} `yaml:"dialogue"`

	Perception struct {
		CameraEnabled *bool   `yaml:"camera_enabled"`
		CameraFOV     float64 `yaml:"camera_fov"`
		FrameWidth    int     `yaml:"frame_width"`
		FrameHeight   int     `yaml:"frame_height"`
		MicDevice     *string `yaml:"mic_device"`
	} `yaml:"perception"`

	Tracking struct {
		StaleAfter    string  `yaml:"stale_after"`
		LostAfter     string  `yaml:"lost_after"`
		MatchWindow   string  `yaml:"match_window"`
		TickInterval  string  `yaml:"tick_interval"`
		MatchDistance float64 `yaml:"match_distance"`
		MatchBearing  float64 `yaml:"match_bearing"`
	} `yaml:"tracking"`

	Confidence struct {
		Person  float64 `yaml:"person"`
		Face    float64 `yaml:"face"`
		Emotion float64 `yaml:"emotion"`
		Speech  float64 `yaml:"speech"`
	} `yaml:"confidence"`

	ListenAddr string `yaml:"listen_addr"`

	Visits struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"visits"`
}

// LoadFile applies settings from a YAML file onto c. Unset fields keep
// their current values, so defaults and flags survive a sparse file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Robot.Enabled != nil {
		c.RobotEnabled = *fc.Robot.Enabled
	}
	if fc.Robot.URL != "" {
		c.RobotURL = fc.Robot.URL
	}
	if err := applyDuration(&c.RobotDeadline, fc.Robot.Deadline, "robot.deadline"); err != nil {
		return err
	}
	if fc.Dialogue.URL != "" {
		c.DialogueURL = fc.Dialogue.URL
	}
	if err := applyDuration(&c.DialogueDeadline, fc.Dialogue.Deadline, "dialogue.deadline"); err != nil {
		return err
	}
	if fc.Perception.CameraEnabled != nil {
		c.CameraEnabled = *fc.Perception.CameraEnabled
	}
	if fc.Perception.CameraFOV > 0 {
		c.CameraFOV = fc.Perception.CameraFOV
	}
	if fc.Perception.FrameWidth > 0 {
		c.FrameWidth = fc.Perception.FrameWidth
	}
	if fc.Perception.FrameHeight > 0 {
		c.FrameHeight = fc.Perception.FrameHeight
	}
	if fc.Perception.MicDevice != nil {
		c.MicDevice = *fc.Perception.MicDevice
	}
	if err := applyDuration(&c.StaleAfter, fc.Tracking.StaleAfter, "tracking.stale_after"); err != nil {
		return err
	}
	if err := applyDuration(&c.LostAfter, fc.Tracking.LostAfter, "tracking.lost_after"); err != nil {
		return err
	}
	if err := applyDuration(&c.MatchWindow, fc.Tracking.MatchWindow, "tracking.match_window"); err != nil {
		return err
	}
	if err := applyDuration(&c.TickInterval, fc.Tracking.TickInterval, "tracking.tick_interval"); err != nil {
		return err
	}
	if fc.Tracking.MatchDistance > 0 {
		c.MatchDistance = fc.Tracking.MatchDistance
	}
	if fc.Tracking.MatchBearing > 0 {
		c.MatchBearing = fc.Tracking.MatchBearing
	}
	if fc.Confidence.Person > 0 {
		c.MinPersonConfidence = fc.Confidence.Person
	}
	if fc.Confidence.Face > 0 {
		c.MinFaceConfidence = fc.Confidence.Face
	}
	if fc.Confidence.Emotion > 0 {
		c.MinEmotionConfidence = fc.Confidence.Emotion
	}
	if fc.Confidence.Speech > 0 {
		c.MinSpeechConfidence = fc.Confidence.Speech
	}
	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.Visits.Driver != "" {
		c.VisitDriver = fc.Visits.Driver
	}
	if fc.Visits.DSN != "" {
		c.VisitDSN = fc.Visits.DSN
	}
	return nil
}

func applyDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}
