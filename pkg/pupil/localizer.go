// Package pupil locates the pupil center inside an eye bounding box.
package pupil

import (
	"image"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"gocv.io/x/gocv"
)

// Config holds localizer parameters
type Config struct {
	BlurKernel int // Gaussian kernel size in px (odd)
}

// DefaultConfig returns the standard localizer parameters
func DefaultConfig() Config {
	return Config{
		BlurKernel: 7,
	}
}

// Localizer finds the pupil as the largest dark blob in an eye region
type Localizer struct {
	config Config
}

// NewLocalizer creates a localizer. Even or non-positive kernel sizes fall
// back to the default.
func NewLocalizer(cfg Config) *Localizer {
	if cfg.BlurKernel <= 0 || cfg.BlurKernel%2 == 0 {
		cfg.BlurKernel = DefaultConfig().BlurKernel
	}
	return &Localizer{config: cfg}
}

// Locate returns the pupil center of box in frame coordinates.
// The frame is not modified.
func (l *Localizer) Locate(frame gocv.Mat, box gaze.EyeBox) (gaze.Point, bool) {
	if frame.Empty() {
		return gaze.Point{}, false
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	roi := box.Rect().Intersect(bounds)
	if roi.Empty() {
		return gaze.Point{}, false
	}

	eye := frame.Region(roi)
	defer eye.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	toGray(eye, &gray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := l.config.BlurKernel
	gocv.GaussianBlur(equalized, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	// Dark pixels (the pupil) become foreground
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(blurred, &binary, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return gaze.Point{}, false
	}

	largest := 0
	largestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > largestArea {
			largestArea = area
			largest = i
		}
	}

	c, ok := centroid(contours.At(largest))
	if !ok {
		return gaze.Point{}, false
	}

	return gaze.Point{X: roi.Min.X + c.X, Y: roi.Min.Y + c.Y}, true
}

// centroid returns the truncated centroid of a contour from its polygon
// moments. ok is false for degenerate contours with zero area.
func centroid(contour gocv.PointVector) (image.Point, bool) {
	m := gocv.NewMatFromPointVector(contour, true)
	defer m.Close()

	mo := gocv.Moments(m, false)
	if mo["m00"] == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(mo["m10"]/mo["m00"]), int(mo["m01"]/mo["m00"])), true
}

func toGray(src gocv.Mat, dst *gocv.Mat) {
	switch src.Channels() {
	case 1:
		src.CopyTo(dst)
	case 4:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	}
}
