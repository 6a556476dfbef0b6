// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-gaze/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Tracking controls whether per-frame logs are shown (eye boxes, pupils, gaze events).
// Use --debug-frames to enable these very verbose logs
var Tracking bool

// Log writes a debug message only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// Frame writes a per-frame message only if tracking debug mode is enabled
func Frame(msg string, args ...any) {
	if Tracking {
		log.Debug(msg, args...)
	}
}
