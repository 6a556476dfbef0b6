// Package config loads go-gaze settings from a YAML file, GAZE_* environment
// variables and built-in defaults, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/eyes"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/recorder"
)

// EnvPrefix is prepended to every environment override, e.g. GAZE_WEB_PORT
const EnvPrefix = "GAZE"

const (
	keyCameraPreset      = "camera.preset"
	keyCameraDevice      = "camera.device"
	keyCameraFile        = "camera.file"
	keyCameraWidth       = "camera.width"
	keyCameraHeight      = "camera.height"
	keyCameraFPS         = "camera.fps"
	keyFaceCascade       = "cascade.face"
	keyEyeCascade        = "cascade.eye"
	keyScaleFactor       = "cascade.scale_factor"
	keyMinNeighbors      = "cascade.min_neighbors"
	keyMinSize           = "cascade.min_size"
	keyTrackerPreset     = "tracker.preset"
	keyFixationThreshold = "tracker.fixation_threshold"
	keyFixationDuration  = "tracker.fixation_min_duration"
	keyBlurKernel        = "tracker.blur_kernel"
	keyOutputDir         = "output.dir"
	keyOutputFormats     = "output.formats"
	keySaveOnExit        = "output.save_on_exit"
	keyStorePath         = "store.path"
	keyWebEnabled        = "web.enabled"
	keyWebPort           = "web.port"
	keyWebTrail          = "web.trail"
	keyLogLevel          = "log.level"
	keyLogFile           = "log.file"
)

// Config is the full runtime configuration
type Config struct {
	Camera  CameraConfig  `mapstructure:"camera" yaml:"camera"`
	Cascade CascadeConfig `mapstructure:"cascade" yaml:"cascade"`
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Web     WebConfig     `mapstructure:"web" yaml:"web"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// CameraConfig selects the frame source
type CameraConfig struct {
	Preset string `mapstructure:"preset" yaml:"preset"` // default, vga or 720p
	Device int    `mapstructure:"device" yaml:"device"`
	File   string `mapstructure:"file" yaml:"file"` // Video file; overrides Device when set
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
	FPS    int    `mapstructure:"fps" yaml:"fps"`
}

// CascadeConfig points at the Haar cascade files
type CascadeConfig struct {
	Face         string  `mapstructure:"face" yaml:"face"`
	Eye          string  `mapstructure:"eye" yaml:"eye"`
	ScaleFactor  float64 `mapstructure:"scale_factor" yaml:"scale_factor"`
	MinNeighbors int     `mapstructure:"min_neighbors" yaml:"min_neighbors"`
	MinSize      int     `mapstructure:"min_size" yaml:"min_size"`
}

// TrackerConfig holds classifier thresholds
type TrackerConfig struct {
	Preset              string  `mapstructure:"preset" yaml:"preset"`
	FixationThreshold   float64 `mapstructure:"fixation_threshold" yaml:"fixation_threshold"`
	FixationMinDuration float64 `mapstructure:"fixation_min_duration" yaml:"fixation_min_duration"`
	BlurKernel          int     `mapstructure:"blur_kernel" yaml:"blur_kernel"`
}

// OutputConfig controls session files
type OutputConfig struct {
	Dir        string   `mapstructure:"dir" yaml:"dir"`
	Formats    []string `mapstructure:"formats" yaml:"formats"`
	SaveOnExit bool     `mapstructure:"save_on_exit" yaml:"save_on_exit"`
}

// StoreConfig locates the session archive; an empty path disables it
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// WebConfig controls the live dashboard
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    string `mapstructure:"port" yaml:"port"`
	Trail   int    `mapstructure:"trail" yaml:"trail"` // Recent points kept for the trail
}

// LogConfig controls logging
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

func setDefaults(v *viper.Viper) {
	cam := camera.DefaultConfig()
	casc := eyes.DefaultConfig()
	trk := gaze.DefaultConfig()

	v.SetDefault(keyCameraPreset, camera.PresetDefault)
	v.SetDefault(keyCameraDevice, cam.Device)
	v.SetDefault(keyCameraFile, cam.File)
	v.SetDefault(keyCameraWidth, cam.Width)
	v.SetDefault(keyCameraHeight, cam.Height)
	v.SetDefault(keyCameraFPS, cam.FPS)
	v.SetDefault(keyFaceCascade, casc.FaceCascade)
	v.SetDefault(keyEyeCascade, casc.EyeCascade)
	v.SetDefault(keyScaleFactor, casc.ScaleFactor)
	v.SetDefault(keyMinNeighbors, casc.MinNeighbors)
	v.SetDefault(keyMinSize, casc.MinSize)
	v.SetDefault(keyTrackerPreset, "default")
	v.SetDefault(keyFixationThreshold, trk.FixationThreshold)
	v.SetDefault(keyFixationDuration, trk.FixationMinDuration)
	v.SetDefault(keyBlurKernel, 7)
	v.SetDefault(keyOutputDir, "sessions")
	v.SetDefault(keyOutputFormats, []string{string(recorder.JSON), string(recorder.CSV)})
	v.SetDefault(keySaveOnExit, true)
	v.SetDefault(keyStorePath, "")
	v.SetDefault(keyWebEnabled, true)
	v.SetDefault(keyWebPort, "8090")
	v.SetDefault(keyWebTrail, 64)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFile, "")
}

// Load reads configuration from path (optional) and the environment.
// A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config failed: %w", err)
	}

	// Presets only fill values the file or env left at defaults
	if cfg.Camera.Preset != "" && cfg.Camera.Preset != camera.PresetDefault {
		preset := camera.GetPreset(cfg.Camera.Preset)
		if preset == nil {
			return nil, fmt.Errorf("camera.preset: unknown preset %q", cfg.Camera.Preset)
		}
		if !explicit(v, keyCameraWidth) {
			cfg.Camera.Width = preset.Width
		}
		if !explicit(v, keyCameraHeight) {
			cfg.Camera.Height = preset.Height
		}
		if !explicit(v, keyCameraFPS) {
			cfg.Camera.FPS = preset.FPS
		}
	}
	if cfg.Tracker.Preset != "" && cfg.Tracker.Preset != "default" {
		preset := gaze.ConfigByName(cfg.Tracker.Preset)
		if !v.InConfig(keyFixationThreshold) && os.Getenv(envName(keyFixationThreshold)) == "" {
			cfg.Tracker.FixationThreshold = preset.FixationThreshold
		}
		if !v.InConfig(keyFixationDuration) && os.Getenv(envName(keyFixationDuration)) == "" {
			cfg.Tracker.FixationMinDuration = preset.FixationMinDuration
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// explicit reports whether key was set by the config file or the environment
func explicit(v *viper.Viper, key string) bool {
	return v.InConfig(key) || os.Getenv(envName(key)) != ""
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate checks values that would otherwise fail deep inside the pipeline
func (c *Config) Validate() error {
	if c.Tracker.FixationThreshold <= 0 {
		return fmt.Errorf("tracker.fixation_threshold must be positive, got %v", c.Tracker.FixationThreshold)
	}
	if c.Tracker.FixationMinDuration < 0 {
		return fmt.Errorf("tracker.fixation_min_duration must not be negative, got %v", c.Tracker.FixationMinDuration)
	}
	if c.Cascade.ScaleFactor <= 1 {
		return fmt.Errorf("cascade.scale_factor must be > 1, got %v", c.Cascade.ScaleFactor)
	}
	if _, err := c.Formats(); err != nil {
		return err
	}
	if c.Web.Trail <= 0 {
		return fmt.Errorf("web.trail must be positive, got %d", c.Web.Trail)
	}
	return nil
}

// Formats returns the configured output formats
func (c *Config) Formats() ([]recorder.Format, error) {
	out := make([]recorder.Format, 0, len(c.Output.Formats))
	for _, s := range c.Output.Formats {
		f, err := recorder.ParseFormat(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("output.formats: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// GazeConfig returns the classifier thresholds
func (c *Config) GazeConfig() gaze.Config {
	return gaze.Config{
		FixationThreshold:   c.Tracker.FixationThreshold,
		FixationMinDuration: c.Tracker.FixationMinDuration,
	}
}

// EyesConfig returns the cascade detector configuration
func (c *Config) EyesConfig() eyes.Config {
	return eyes.Config{
		FaceCascade:  c.Cascade.Face,
		EyeCascade:   c.Cascade.Eye,
		ScaleFactor:  c.Cascade.ScaleFactor,
		MinNeighbors: c.Cascade.MinNeighbors,
		MinSize:      c.Cascade.MinSize,
	}
}

// CameraConfig returns the frame source configuration
func (c *Config) CameraConfig() camera.Config {
	return camera.Config{
		Device: c.Camera.Device,
		File:   c.Camera.File,
		Width:  c.Camera.Width,
		Height: c.Camera.Height,
		FPS:    c.Camera.FPS,
	}
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
