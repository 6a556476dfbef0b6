package gaze

// Config holds the fixation classifier thresholds
type Config struct {
	FixationThreshold   float64 // Max distance in px between consecutive gaze points
	FixationMinDuration float64 // Seconds a window must stay open before committing
}

// DefaultConfig returns the standard classifier thresholds
func DefaultConfig() Config {
	return Config{
		FixationThreshold:   30,
		FixationMinDuration: 0.3,
	}
}

// StrictConfig returns thresholds for a steady, close-range subject
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.FixationThreshold = 15
	cfg.FixationMinDuration = 0.5
	return cfg
}

// LooseConfig returns thresholds for noisy, low-resolution cameras
func LooseConfig() Config {
	cfg := DefaultConfig()
	cfg.FixationThreshold = 50
	cfg.FixationMinDuration = 0.2
	return cfg
}

// ConfigByName returns a preset by name, falling back to DefaultConfig
func ConfigByName(name string) Config {
	switch name {
	case "strict":
		return StrictConfig()
	case "loose":
		return LooseConfig()
	default:
		return DefaultConfig()
	}
}
