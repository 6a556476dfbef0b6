package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/eyes"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pupil"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"github.com/teslashibe/go-gaze/pkg/store"
	"gocv.io/x/gocv"
)

var (
	leftBox  = gaze.EyeBox{X: 30, Y: 30, Width: 40, Height: 40}
	rightBox = gaze.EyeBox{X: 130, Y: 30, Width: 40, Height: 40}
	emptyBox = gaze.EyeBox{X: 500, Y: 500, Width: 10, Height: 10}
)

// twoEyeFrame is a white frame with dark pupils at (50,50) and (150,50)
func twoEyeFrame() gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 100, 200, gocv.MatTypeCV8UC3)
	gocv.Circle(&m, image.Pt(50, 50), 7, color.RGBA{0, 0, 0, 0}, -1)
	gocv.Circle(&m, image.Pt(150, 50), 7, color.RGBA{0, 0, 0, 0}, -1)
	return m
}

type frameCall struct {
	p          *gaze.Point
	isFixation bool
	isBlink    bool
}

type recordingVisualizer struct {
	mu    sync.Mutex
	calls []frameCall
	stats gaze.Stats
}

func (v *recordingVisualizer) Consume(p *gaze.Point, isFixation, isBlink bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, frameCall{p, isFixation, isBlink})
}

func (v *recordingVisualizer) UpdateStats(st gaze.Stats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = st
}

type failingSource struct{}

func (failingSource) Detect(gocv.Mat) ([]gaze.EyeBox, error) { return nil, errors.New("boom") }
func (failingSource) Close() error                           { return nil }

func newPipeline(src eyes.Source, vis Visualizer) *Pipeline {
	sess := gaze.NewSession(time.Now())
	return New(src, pupil.NewLocalizer(pupil.DefaultConfig()),
		gaze.NewTracker(gaze.DefaultConfig(), sess), WithVisualizer(vis))
}

func near(p *gaze.Point, x, y int) bool {
	if p == nil {
		return false
	}
	dx, dy := p.X-x, p.Y-y
	return dx >= -2 && dx <= 2 && dy >= -2 && dy <= 2
}

func TestProcessFrame_TwoEyes(t *testing.T) {
	frame := twoEyeFrame()
	defer frame.Close()

	vis := &recordingVisualizer{}
	p := newPipeline(&eyes.Static{Boxes: []gaze.EyeBox{leftBox, rightBox}}, vis)

	res := p.ProcessFrame(frame, 0.0)
	if !near(res.Gaze, 100, 50) {
		t.Fatalf("Gaze: got %+v, want near (100,50)", res.Gaze)
	}
	if res.Outcome.Blink {
		t.Error("two eyes should not blink")
	}
	if len(vis.calls) != 1 || vis.calls[0].p == nil {
		t.Errorf("visualizer calls: got %+v", vis.calls)
	}
	if vis.stats.FrameCount != 1 || vis.stats.GazeSamples != 1 {
		t.Errorf("visualizer stats: got %+v", vis.stats)
	}
}

func TestProcessFrame_FixationOverFrames(t *testing.T) {
	frame := twoEyeFrame()
	defer frame.Close()

	vis := &recordingVisualizer{}
	p := newPipeline(&eyes.Static{Boxes: []gaze.EyeBox{leftBox, rightBox}}, vis)

	for _, ts := range []float64{0.0, 0.1, 0.2, 0.35} {
		p.ProcessFrame(frame, ts)
	}

	sess := p.Session()
	if len(sess.Fixations) == 0 {
		t.Error("expected fixations for a static gaze")
	}
	if !vis.calls[len(vis.calls)-1].isFixation {
		t.Error("last frame should be reported as fixation")
	}
}

func TestProcessFrame_OnlyFirstTwoBoxesUsed(t *testing.T) {
	frame := twoEyeFrame()
	defer frame.Close()

	// Third box has a pupil but must not change the gaze point
	p := newPipeline(&eyes.Static{Boxes: []gaze.EyeBox{emptyBox, leftBox, rightBox}}, Nop{})

	res := p.ProcessFrame(frame, 0)
	if len(res.Pupils) != 3 {
		t.Fatalf("Pupils: got %d entries, want 3", len(res.Pupils))
	}
	if res.Pupils[0] != nil || res.Pupils[2] == nil {
		t.Errorf("Pupils: got %+v", res.Pupils)
	}
	if res.Gaze != nil {
		t.Errorf("Gaze: got %+v, want none (only one pupil among first two boxes)", res.Gaze)
	}
	if res.Outcome.Blink {
		t.Error("three boxes should not blink")
	}
}

func TestProcessFrame_OneEyeBlinks(t *testing.T) {
	frame := twoEyeFrame()
	defer frame.Close()

	vis := &recordingVisualizer{}
	p := newPipeline(&eyes.Static{Boxes: []gaze.EyeBox{leftBox}}, vis)

	for i := 0; i < 5; i++ {
		p.ProcessFrame(frame, float64(i))
	}

	sess := p.Session()
	if len(sess.Blinks) != 5 || len(sess.GazePoints) != 0 || len(sess.Fixations) != 0 {
		t.Errorf("session: blinks %d samples %d fixations %d, want 5/0/0",
			len(sess.Blinks), len(sess.GazePoints), len(sess.Fixations))
	}
	for i, c := range vis.calls {
		if c.p != nil || !c.isBlink {
			t.Errorf("frame %d: got %+v", i, c)
		}
	}
}

func TestProcessFrame_DetectorErrorIsAbsence(t *testing.T) {
	frame := twoEyeFrame()
	defer frame.Close()

	p := newPipeline(failingSource{}, Nop{})
	res := p.ProcessFrame(frame, 0)

	if res.Gaze != nil || !res.Outcome.Blink {
		t.Errorf("result: got %+v", res)
	}
	if p.Session().Metadata.FrameCount != 1 {
		t.Errorf("FrameCount: got %d, want 1", p.Session().Metadata.FrameCount)
	}
}

type fakeArchive struct {
	puts []string
	err  error
}

func (a *fakeArchive) Put(sess *gaze.Session, stamp string, formats []string, _ time.Time) (store.Snapshot, error) {
	if a.err != nil {
		return store.Snapshot{}, a.err
	}
	a.puts = append(a.puts, stamp+":"+formats[0])
	return store.Snapshot{Key: store.Key(stamp, sess.ID)}, nil
}

func stepClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return t0.Add(time.Duration(n) * 100 * time.Millisecond)
	}
}

func TestSaver_ArchivesAfterFiles(t *testing.T) {
	dir := t.TempDir()
	archive := &fakeArchive{}
	saver := NewSaver(recorder.New(dir), archive)
	sess := gaze.NewSession(time.Now())

	stamps, err := saver.SaveAll(sess, []recorder.Format{recorder.JSON, recorder.CSV})
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if len(stamps) != 2 || len(archive.puts) != 2 {
		t.Fatalf("stamps %v, puts %v", stamps, archive.puts)
	}

	archive.err = errors.New("disk full")
	stamp, err := saver.Save(sess, recorder.JSON)
	if err == nil {
		t.Fatal("expected archive error")
	}
	if stamp == "" {
		t.Error("stamp should still be returned when files were written")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "session_"+stamp+".json")); statErr != nil {
		t.Errorf("json file should exist: %v", statErr)
	}
}

func TestRunner_ProcessesUntilSourceEnds(t *testing.T) {
	dir := t.TempDir()
	src := camera.NewFrames(twoEyeFrame(), twoEyeFrame(), twoEyeFrame())
	defer src.Close()

	p := newPipeline(&eyes.Static{Boxes: []gaze.EyeBox{leftBox, rightBox}}, Nop{})
	saver := NewSaver(recorder.New(dir), nil)
	r := NewRunner(src, p, saver, WithSaveOnExit(recorder.JSON), WithRunnerClock(stepClock()))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := p.Session().Metadata.FrameCount; got != 3 {
		t.Errorf("FrameCount: got %d, want 3", got)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "session_*.json"))
	if len(files) != 1 {
		t.Fatalf("final save files: got %v", files)
	}
	loaded, err := recorder.Load(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Metadata.FrameCount != 3 {
		t.Errorf("saved FrameCount: got %d, want 3", loaded.Metadata.FrameCount)
	}

	if _, err := r.RequestSave(context.Background(), recorder.JSON); !errors.Is(err, ErrStopped) {
		t.Errorf("RequestSave after stop: got %v, want ErrStopped", err)
	}
}

// endless replays one frame until closed
type endless struct {
	frame gocv.Mat
}

func (e *endless) Read(m *gocv.Mat) bool {
	time.Sleep(time.Millisecond)
	e.frame.CopyTo(m)
	return true
}

func (e *endless) Close() error { return e.frame.Close() }

func TestRunner_ServesSaveRequests(t *testing.T) {
	dir := t.TempDir()
	src := &endless{frame: twoEyeFrame()}
	defer src.Close()

	p := newPipeline(&eyes.Static{Boxes: []gaze.EyeBox{leftBox, rightBox}}, Nop{})
	r := NewRunner(src, p, NewSaver(recorder.New(dir), nil))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	stamp, err := r.RequestSave(reqCtx, recorder.CSV)
	if err != nil {
		t.Fatalf("RequestSave: %v", err)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*_"+stamp+".csv"))
	if len(files) != 2 {
		t.Errorf("csv files: got %v, want 2", files)
	}
}

func TestSeconds(t *testing.T) {
	ts := time.Unix(1700000000, 500000000)
	if got := Seconds(ts); got != 1700000000.5 {
		t.Errorf("Seconds: got %v, want 1700000000.5", got)
	}
}
