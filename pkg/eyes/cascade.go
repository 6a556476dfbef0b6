package eyes

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"gocv.io/x/gocv"
)

// ErrCascadeLoad is returned when a cascade file cannot be used
var ErrCascadeLoad = errors.New("cascade load failed")

// CascadeDetector finds faces with a Haar cascade, then eyes inside each face
type CascadeDetector struct {
	faces  gocv.CascadeClassifier
	eyes   gocv.CascadeClassifier
	config Config
	mu     sync.Mutex // Protects classifiers
}

// NewCascade loads the face and eye cascades. A missing or unreadable file is
// a configuration error and no detector is returned.
func NewCascade(cfg Config) (*CascadeDetector, error) {
	for _, path := range []string{cfg.FaceCascade, cfg.EyeCascade} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCascadeLoad, path, err)
		}
	}

	faces := gocv.NewCascadeClassifier()
	if !faces.Load(cfg.FaceCascade) {
		faces.Close()
		return nil, fmt.Errorf("%w: %s", ErrCascadeLoad, cfg.FaceCascade)
	}

	eyes := gocv.NewCascadeClassifier()
	if !eyes.Load(cfg.EyeCascade) {
		faces.Close()
		eyes.Close()
		return nil, fmt.Errorf("%w: %s", ErrCascadeLoad, cfg.EyeCascade)
	}

	return &CascadeDetector{
		faces:  faces,
		eyes:   eyes,
		config: cfg,
	}, nil
}

// Detect returns eye boxes in frame coordinates, ordered by face then by eye
// within the face.
func (d *CascadeDetector) Detect(frame gocv.Mat) ([]gaze.EyeBox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	minSize := image.Pt(d.config.MinSize, d.config.MinSize)

	faceRects := d.faces.DetectMultiScaleWithParams(
		gray, d.config.ScaleFactor, d.config.MinNeighbors, 0, minSize, image.Point{},
	)

	var boxes []gaze.EyeBox
	for _, face := range faceRects {
		roi := gray.Region(face)
		eyeRects := d.eyes.DetectMultiScaleWithParams(
			roi, d.config.ScaleFactor, d.config.MinNeighbors, 0, minSize, image.Point{},
		)
		roi.Close()

		for _, e := range eyeRects {
			boxes = append(boxes, gaze.BoxFromRect(e.Add(face.Min)))
		}
	}

	if len(boxes) > 0 {
		debug.Frame("eye boxes", "faces", len(faceRects), "eyes", len(boxes))
	}

	return boxes, nil
}

// Close releases the classifiers
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faces.Close()
	d.eyes.Close()
	return nil
}
