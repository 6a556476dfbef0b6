// Package pipeline wires eye detection, pupil localization and gaze
// classification into a per-frame processing step and a blocking run loop.
package pipeline

import (
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/eyes"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pupil"
	"gocv.io/x/gocv"
)

// Visualizer consumes the classified gaze stream. It is called once per
// frame from the frame loop and owns any history it wants to keep.
type Visualizer interface {
	Consume(p *gaze.Point, isFixation, isBlink bool)
	UpdateStats(st gaze.Stats)
}

// Nop is a Visualizer that ignores everything
type Nop struct{}

// Consume does nothing
func (Nop) Consume(*gaze.Point, bool, bool) {}

// UpdateStats does nothing
func (Nop) UpdateStats(gaze.Stats) {}

// FrameResult describes what one frame produced
type FrameResult struct {
	Boxes   []gaze.EyeBox
	Pupils  []*gaze.Point // One entry per box, nil when no pupil was found
	Gaze    *gaze.Point
	Outcome gaze.Outcome
}

// Pipeline processes frames for a single session
type Pipeline struct {
	source    eyes.Source
	localizer *pupil.Localizer
	tracker   *gaze.Tracker
	vis       Visualizer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithVisualizer sets the frame consumer
func WithVisualizer(v Visualizer) Option {
	return func(p *Pipeline) { p.vis = v }
}

// New creates a pipeline
func New(src eyes.Source, loc *pupil.Localizer, tracker *gaze.Tracker, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:    src,
		localizer: loc,
		tracker:   tracker,
		vis:       Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Session returns the session being recorded
func (p *Pipeline) Session() *gaze.Session {
	return p.tracker.Session()
}

// ProcessFrame runs one frame through detection, localization and
// classification. Detector failures count as a frame with no eyes.
func (p *Pipeline) ProcessFrame(frame gocv.Mat, timestamp float64) FrameResult {
	boxes, err := p.source.Detect(frame)
	if err != nil {
		log.Warn("eye detection failed", "error", err)
		boxes = nil
	}

	res := FrameResult{
		Boxes:  boxes,
		Pupils: make([]*gaze.Point, len(boxes)),
	}

	for i, box := range boxes {
		if c, ok := p.localizer.Locate(frame, box); ok {
			res.Pupils[i] = &c
		}
	}

	// Only the first two boxes contribute to the gaze point
	var centers []gaze.Point
	for _, c := range res.Pupils[:len(eyes.FirstTwo(boxes))] {
		if c != nil {
			centers = append(centers, *c)
		}
	}
	if g, ok := gaze.Resolve(centers); ok {
		res.Gaze = &g
	}

	res.Outcome = p.tracker.Update(res.Gaze, len(boxes), timestamp)

	debug.Frame("frame",
		"eyes", len(boxes),
		"pupils", len(centers),
		"gaze", res.Gaze != nil,
		"fixation", res.Outcome.IsFixation,
		"committed", res.Outcome.Committed != nil,
		"blink", res.Outcome.Blink)

	p.vis.Consume(res.Gaze, res.Outcome.IsFixation, res.Outcome.Blink)
	p.vis.UpdateStats(p.Session().Stats())

	return res
}
