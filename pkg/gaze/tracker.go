package gaze

import "math"

// Outcome reports what a single Update emitted
type Outcome struct {
	Sample     bool      // A gaze sample was appended
	IsFixation bool      // The point stayed within the threshold of the previous one
	Committed  *Fixation // Fixation record committed this frame, if any
	Blink      bool      // A blink record was appended
}

// Tracker classifies the per-frame gaze stream of one session.
// It is not safe for concurrent use; the frame loop owns it.
type Tracker struct {
	config  Config
	session *Session

	lastPoint     Point
	lastTimestamp float64
	hasLastPoint  bool
	fixationStart float64
	fixationOpen  bool
}

// NewTracker creates a tracker that records into sess
func NewTracker(config Config, sess *Session) *Tracker {
	return &Tracker{
		config:  config,
		session: sess,
	}
}

// Session returns the session being recorded
func (t *Tracker) Session() *Session {
	return t.session
}

// Config returns the classifier thresholds
func (t *Tracker) Config() Config {
	return t.config
}

// Update consumes one frame's gaze point (nil when absent), detected eye
// count and timestamp in seconds.
//
// A fixation window opens at the timestamp of the previous sample, the first
// point of the dwell; opening never commits. Once the window has been open
// for FixationMinDuration, every further frame inside it commits another
// Fixation record anchored at that frame's point. The window only closes on
// a jump of FixationThreshold or more.
func (t *Tracker) Update(p *Point, eyeCount int, timestamp float64) Outcome {
	var out Outcome

	if p != nil {
		t.session.GazePoints = append(t.session.GazePoints, GazeSample{
			Timestamp: timestamp,
			X:         p.X,
			Y:         p.Y,
		})
		out.Sample = true

		out.IsFixation = t.hasLastPoint && distance(*p, t.lastPoint) < t.config.FixationThreshold

		if out.IsFixation {
			if !t.fixationOpen {
				t.fixationStart = t.lastTimestamp
				t.fixationOpen = true
			} else if timestamp-t.fixationStart >= t.config.FixationMinDuration {
				fix := Fixation{
					StartTime: t.fixationStart,
					EndTime:   timestamp,
					X:         p.X,
					Y:         p.Y,
				}
				t.session.Fixations = append(t.session.Fixations, fix)
				out.Committed = &fix
			}
		} else {
			t.fixationOpen = false
		}

		t.lastPoint = *p
		t.lastTimestamp = timestamp
		t.hasLastPoint = true
	}

	if eyeCount < 2 {
		t.session.Blinks = append(t.session.Blinks, Blink{Timestamp: timestamp})
		out.Blink = true
	}

	t.session.Metadata.FrameCount++
	return out
}

// FixationOpen reports whether a fixation window is open and since when
func (t *Tracker) FixationOpen() (float64, bool) {
	return t.fixationStart, t.fixationOpen
}

func distance(a, b Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
