package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"gocv.io/x/gocv"
)

// ErrStopped is returned by RequestSave once the run loop has exited
var ErrStopped = errors.New("pipeline stopped")

type saveRequest struct {
	format recorder.Format
	reply  chan saveReply
}

type saveReply struct {
	stamp string
	err   error
}

// Runner drives the blocking pull loop: read frame, process, repeat.
// Save requests from other goroutines are executed between frames so the
// session is only ever touched by the loop.
type Runner struct {
	source camera.Source
	pipe   *Pipeline
	saver  *Saver
	now    func() time.Time

	finalFormats []recorder.Format

	saves chan saveRequest
	done  chan struct{}
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithSaveOnExit saves the session in formats when the loop ends
func WithSaveOnExit(formats ...recorder.Format) RunnerOption {
	return func(r *Runner) { r.finalFormats = formats }
}

// WithRunnerClock overrides the clock used for frame timestamps
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a run loop over source
func NewRunner(source camera.Source, pipe *Pipeline, saver *Saver, opts ...RunnerOption) *Runner {
	r := &Runner{
		source: source,
		pipe:   pipe,
		saver:  saver,
		now:    time.Now,
		saves:  make(chan saveRequest),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes frames until ctx is cancelled or the source ends.
// It returns the error of the final save, if one was configured.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	frame := gocv.NewMat()
	defer frame.Close()

	frames := 0
	start := r.now()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case req := <-r.saves:
			r.serve(req)
			continue
		default:
		}

		if !r.source.Read(&frame) {
			log.Info("frame source ended")
			break loop
		}

		r.pipe.ProcessFrame(frame, Seconds(r.now()))
		frames++
	}

	elapsed := r.now().Sub(start)
	st := r.pipe.Session().Stats()
	log.Info("tracking stopped",
		"frames", frames,
		"elapsed", elapsed.Round(time.Millisecond),
		"samples", st.GazeSamples,
		"fixations", st.Fixations,
		"blinks", st.Blinks)

	if len(r.finalFormats) > 0 && r.saver != nil {
		if _, err := r.saver.SaveAll(r.pipe.Session(), r.finalFormats); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) serve(req saveRequest) {
	if r.saver == nil {
		req.reply <- saveReply{err: errors.New("saving not configured")}
		return
	}
	stamp, err := r.saver.Save(r.pipe.Session(), req.format)
	req.reply <- saveReply{stamp: stamp, err: err}
}

// RequestSave asks the loop to save the session and waits for the result.
func (r *Runner) RequestSave(ctx context.Context, format recorder.Format) (string, error) {
	req := saveRequest{format: format, reply: make(chan saveReply, 1)}

	select {
	case r.saves <- req:
	case <-r.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.stamp, rep.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Seconds converts a wall clock time to float seconds since the Unix epoch
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
