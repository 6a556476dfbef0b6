// Package camera provides frame sources for the gaze pipeline.
package camera

// Config holds frame source parameters.
type Config struct {
	// Device is the capture device index (0 = default webcam).
	Device int `json:"device"`

	// File is a video file path. When set it replaces Device.
	File string `json:"file"`

	// Requested capture size; 0 keeps the device default.
	Width  int `json:"width"`
	Height int `json:"height"`

	// FPS requested from the device; 0 keeps the device default.
	FPS int `json:"fps"`
}

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
)

// DefaultConfig returns the default webcam at 640x480.
// Eye cascades work well at this size and stay fast.
func DefaultConfig() Config {
	return Config{
		Device: 0,
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}

// HD720Config returns 720p capture for subjects further from the camera.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	switch name {
	case PresetDefault, PresetVGA:
		cfg := DefaultConfig()
		return &cfg
	case Preset720p:
		cfg := HD720Config()
		return &cfg
	}
	return nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.File == "" && c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}
	if c.Width < 0 || c.Height < 0 {
		errors = append(errors, "width and height must not be negative")
	}
	if c.FPS < 0 || c.FPS > 240 {
		errors = append(errors, "fps must be between 0 and 240")
	}

	return errors
}
