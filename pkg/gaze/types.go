// Package gaze turns per-frame pupil positions into gaze samples, fixations
// and blinks, and holds the session record they accumulate into.
package gaze

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// SessionStartLayout is the ISO-8601 layout used for Session.SessionStart.
const SessionStartLayout = "2006-01-02T15:04:05.000000"

// EyeBox is an eye bounding box in frame pixel coordinates
type EyeBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the box as an image.Rectangle
func (b EyeBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect converts a rectangle into an EyeBox
func BoxFromRect(r image.Rectangle) EyeBox {
	return EyeBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Point is an integer pixel position in frame coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GazeSample is one recorded gaze point
type GazeSample struct {
	Timestamp float64 `json:"timestamp"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
}

// Fixation is a committed near-stationary gaze interval
type Fixation struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
}

// Duration returns the fixation length in seconds
func (f Fixation) Duration() float64 {
	return f.EndTime - f.StartTime
}

// Blink marks a frame with fewer than two detected eyes
type Blink struct {
	Timestamp float64 `json:"timestamp"`
}

// Metadata holds per-session counters.
// DetectionRate and AvgPupilSize are part of the persisted schema but are not
// computed; they stay zero.
type Metadata struct {
	FrameCount    int     `json:"frame_count"`
	DetectionRate float64 `json:"detection_rate"`
	AvgPupilSize  float64 `json:"avg_pupil_size"`
}

// Session is the aggregate record of one tracking run.
// Records are only ever appended.
type Session struct {
	ID           string       `json:"-"`
	SessionStart string       `json:"session_start"`
	GazePoints   []GazeSample `json:"gaze_points"`
	Fixations    []Fixation   `json:"fixations"`
	Blinks       []Blink      `json:"blinks"`
	Metadata     Metadata     `json:"metadata"`
}

// NewSession creates an empty session stamped with the given start time
func NewSession(start time.Time) *Session {
	return &Session{
		ID:           uuid.New().String(),
		SessionStart: start.Format(SessionStartLayout),
		GazePoints:   []GazeSample{},
		Fixations:    []Fixation{},
		Blinks:       []Blink{},
	}
}

// Stats is the aggregate view of a session handed to visualizers
type Stats struct {
	SessionID    string  `json:"session_id"`
	SessionStart string  `json:"session_start"`
	FrameCount   int     `json:"frame_count"`
	GazeSamples  int     `json:"gaze_samples"`
	Fixations    int     `json:"fixations"`
	Blinks       int     `json:"blinks"`
	LastFixation float64 `json:"last_fixation_duration"`
}

// Stats returns the current aggregate counts
func (s *Session) Stats() Stats {
	st := Stats{
		SessionID:    s.ID,
		SessionStart: s.SessionStart,
		FrameCount:   s.Metadata.FrameCount,
		GazeSamples:  len(s.GazePoints),
		Fixations:    len(s.Fixations),
		Blinks:       len(s.Blinks),
	}
	if n := len(s.Fixations); n > 0 {
		st.LastFixation = s.Fixations[n-1].Duration()
	}
	return st
}
