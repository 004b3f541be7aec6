package tracker

import "time"

// Config holds all tunable parameters for identity tracking
type Config struct {
	// Liveness windows
	StaleAfter time.Duration // Active person unseen this long goes stale
	LostAfter  time.Duration // Stale person unseen this long is removed

	// Matching
	MatchWindow   time.Duration // Detections match persons seen within this window
	MatchDistance float64       // Max box-center distance in pixels
	MatchBearing  float64       // Max angular difference in radians

	// Smoothing
	PositionSmoothing float64 // Exponential smoothing factor (0-1, higher = more new data)
	EmotionSmoothing  float64 // Weight of a new emotion observation
}

// DefaultConfig returns the recommended configuration for a lobby or
// storefront where people walk through at a normal pace
func DefaultConfig() Config {
	return Config{
		// Liveness - tolerate short detector dropouts
		StaleAfter: 2 * time.Second,
		LostAfter:  5 * time.Second,

		// Matching
		MatchWindow:   3 * time.Second,
		MatchDistance: 120,  // Pixels at 640x480
		MatchBearing:  0.26, // ~15 degrees

		// Smoothing
		PositionSmoothing: 0.7, // 70% new, 30% old
		EmotionSmoothing:  0.4,
	}
}

// CrowdedConfig returns a configuration for dense spaces where
// identities must not bleed into each other
func CrowdedConfig() Config {
	cfg := DefaultConfig()
	cfg.MatchWindow = 1500 * time.Millisecond
	cfg.MatchDistance = 70
	cfg.MatchBearing = 0.15
	cfg.LostAfter = 4 * time.Second
	return cfg
}
