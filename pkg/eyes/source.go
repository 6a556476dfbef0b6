// Package eyes provides eye bounding box detection
package eyes

import (
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"gocv.io/x/gocv"
)

// Source is the interface for eye region detection backends
type Source interface {
	// Detect finds eye boxes in the frame, in detector order
	Detect(frame gocv.Mat) ([]gaze.EyeBox, error)

	// Close releases resources
	Close() error
}

// Config holds cascade detector configuration
type Config struct {
	FaceCascade  string  // Path to frontal face Haar cascade XML
	EyeCascade   string  // Path to eye Haar cascade XML
	ScaleFactor  float64 // Image pyramid scale step (default 1.1)
	MinNeighbors int     // Neighbor hits required to keep a candidate (default 5)
	MinSize      int     // Smallest face/eye side in px (default 30)
}

// DefaultConfig returns the standard OpenCV cascade setup
func DefaultConfig() Config {
	return Config{
		FaceCascade:  "data/haarcascade_frontalface_default.xml",
		EyeCascade:   "data/haarcascade_eye.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      30,
	}
}

// FirstTwo returns at most the first two boxes, the only ones used for gaze
func FirstTwo(boxes []gaze.EyeBox) []gaze.EyeBox {
	if len(boxes) > 2 {
		return boxes[:2]
	}
	return boxes
}

// Static always returns the same boxes. Useful for fixed rigs and replays.
type Static struct {
	Boxes []gaze.EyeBox
}

// Detect returns a copy of the configured boxes
func (s *Static) Detect(gocv.Mat) ([]gaze.EyeBox, error) {
	out := make([]gaze.EyeBox, len(s.Boxes))
	copy(out, s.Boxes)
	return out, nil
}

// Close is a no-op
func (s *Static) Close() error {
	return nil
}
