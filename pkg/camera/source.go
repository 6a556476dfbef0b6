package camera

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-gaze/internal/log"
	"gocv.io/x/gocv"
)

// Source produces frames one at a time
type Source interface {
	// Read fills frame with the next image; false means the stream ended
	Read(frame *gocv.Mat) bool

	// Close releases the device or file
	Close() error
}

// Capture is a gocv VideoCapture backed Source
type Capture struct {
	vc   *gocv.VideoCapture
	name string
}

// Open opens the configured file or capture device
func Open(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}

	var (
		vc   *gocv.VideoCapture
		err  error
		name string
	)
	if cfg.File != "" {
		name = cfg.File
		vc, err = gocv.VideoCaptureFile(cfg.File)
	} else {
		name = fmt.Sprintf("device %d", cfg.Device)
		vc, err = gocv.VideoCaptureDevice(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s: not opened", name)
	}

	if cfg.File == "" {
		if cfg.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		}
		if cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		if cfg.FPS > 0 {
			vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
		}
	}

	log.Info("camera opened", "source", name,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{vc: vc, name: name}, nil
}

// Read grabs the next frame
func (c *Capture) Read(frame *gocv.Mat) bool {
	if ok := c.vc.Read(frame); !ok {
		return false
	}
	return !frame.Empty()
}

// Name describes the underlying device or file
func (c *Capture) Name() string {
	return c.name
}

// Close releases the capture
func (c *Capture) Close() error {
	return c.vc.Close()
}

// Frames is an in-memory Source that replays cloned frames, then ends
type Frames struct {
	frames []gocv.Mat
	next   int
}

// NewFrames wraps frames; the Source takes ownership and closes them
func NewFrames(frames ...gocv.Mat) *Frames {
	return &Frames{frames: frames}
}

// Read copies the next frame into frame
func (f *Frames) Read(frame *gocv.Mat) bool {
	if f.next >= len(f.frames) {
		return false
	}
	f.frames[f.next].CopyTo(frame)
	f.next++
	return true
}

// Close releases all held frames
func (f *Frames) Close() error {
	for i := range f.frames {
		f.frames[i].Close()
	}
	f.frames = nil
	return nil
}
