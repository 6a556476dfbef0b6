package recorder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

var fixedTime = time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local)

func fixedClock() time.Time { return fixedTime }

func sampleSession() *gaze.Session {
	sess := gaze.NewSession(fixedTime)
	tr := gaze.NewTracker(gaze.DefaultConfig(), sess)
	tr.Update(&gaze.Point{X: 100, Y: 100}, 2, 0.0)
	tr.Update(&gaze.Point{X: 105, Y: 102}, 2, 0.1)
	tr.Update(&gaze.Point{X: 103, Y: 99}, 2, 0.35)
	tr.Update(nil, 1, 0.4)
	return sess
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestSave_JSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := New(dir, WithClock(fixedClock))
	sess := sampleSession()

	ts, err := rec.Save(sess, JSON)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ts != "20240501_093015" {
		t.Errorf("timestamp: got %q, want 20240501_093015", ts)
	}

	loaded, err := Load(filepath.Join(dir, "session_"+ts+".json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded.GazePoints) != len(sess.GazePoints) {
		t.Errorf("gaze_points: got %d, want %d", len(loaded.GazePoints), len(sess.GazePoints))
	}
	if len(loaded.Fixations) != len(sess.Fixations) {
		t.Errorf("fixations: got %d, want %d", len(loaded.Fixations), len(sess.Fixations))
	}
	if len(loaded.Blinks) != len(sess.Blinks) {
		t.Errorf("blinks: got %d, want %d", len(loaded.Blinks), len(sess.Blinks))
	}
	if diff := cmp.Diff(sess.Metadata, loaded.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if loaded.SessionStart != sess.SessionStart {
		t.Errorf("session_start: got %q, want %q", loaded.SessionStart, sess.SessionStart)
	}
}

func TestMarshal_Schema(t *testing.T) {
	sess := gaze.NewSession(fixedTime)
	sess.GazePoints = nil

	data, err := Marshal(sess)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{"session_start", "gaze_points", "fixations", "blinks", "metadata"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	if len(doc) != 5 {
		t.Errorf("top-level keys: got %d, want 5", len(doc))
	}

	if _, ok := doc["gaze_points"].([]any); !ok {
		t.Errorf("gaze_points should encode as an array, got %T", doc["gaze_points"])
	}

	meta, ok := doc["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata: got %T", doc["metadata"])
	}
	for _, key := range []string{"frame_count", "detection_rate", "avg_pupil_size"} {
		if _, ok := meta[key]; !ok {
			t.Errorf("missing metadata key %q", key)
		}
	}
}

func TestSave_CSV(t *testing.T) {
	dir := t.TempDir()
	rec := New(dir, WithClock(fixedClock))
	sess := sampleSession()

	ts, err := rec.Save(sess, CSV)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	gazeRows := readCSV(t, filepath.Join(dir, "gaze_points_"+ts+".csv"))
	if diff := cmp.Diff([]string{"timestamp", "x", "y"}, gazeRows[0]); diff != "" {
		t.Errorf("gaze header (-want +got):\n%s", diff)
	}
	if len(gazeRows)-1 != len(sess.GazePoints) {
		t.Errorf("gaze rows: got %d, want %d", len(gazeRows)-1, len(sess.GazePoints))
	}
	if diff := cmp.Diff([]string{"0.35", "103", "99"}, gazeRows[3]); diff != "" {
		t.Errorf("gaze row 3 (-want +got):\n%s", diff)
	}

	fixRows := readCSV(t, filepath.Join(dir, "fixations_"+ts+".csv"))
	if diff := cmp.Diff([]string{"start_time", "end_time", "x", "y"}, fixRows[0]); diff != "" {
		t.Errorf("fixation header (-want +got):\n%s", diff)
	}
	if len(fixRows)-1 != len(sess.Fixations) {
		t.Errorf("fixation rows: got %d, want %d", len(fixRows)-1, len(sess.Fixations))
	}

	// Blinks are never exported as CSV
	matches, _ := filepath.Glob(filepath.Join(dir, "blink*"))
	if len(matches) != 0 {
		t.Errorf("unexpected blink files: %v", matches)
	}
}

func TestSave_CSVHeaderOnlyWithoutFixations(t *testing.T) {
	dir := t.TempDir()
	rec := New(dir, WithClock(fixedClock))
	sess := gaze.NewSession(fixedTime)

	ts, err := rec.Save(sess, CSV)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "fixations_"+ts+".csv"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "start_time,end_time,x,y\n" {
		t.Errorf("fixations csv: got %q, want header only", data)
	}
}

func TestSave_DoesNotClearSession(t *testing.T) {
	dir := t.TempDir()
	sess := sampleSession()
	calls := 0
	rec := New(dir, WithClock(func() time.Time {
		calls++
		return fixedTime.Add(time.Duration(calls) * time.Second)
	}))

	first, err := rec.Save(sess, JSON)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sess.GazePoints = append(sess.GazePoints, gaze.GazeSample{Timestamp: 1, X: 1, Y: 1})
	second, err := rec.Save(sess, JSON)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct timestamps, got %q twice", first)
	}

	a, _ := Load(filepath.Join(dir, "session_"+first+".json"))
	b, _ := Load(filepath.Join(dir, "session_"+second+".json"))
	if len(b.GazePoints) != len(a.GazePoints)+1 {
		t.Errorf("second save: got %d samples, want %d", len(b.GazePoints), len(a.GazePoints)+1)
	}
	if len(sess.GazePoints) != 4 {
		t.Errorf("session samples: got %d, want 4", len(sess.GazePoints))
	}
}

func TestSave_SameSecondOverwrites(t *testing.T) {
	dir := t.TempDir()
	rec := New(dir, WithClock(fixedClock))

	if _, err := rec.Save(gaze.NewSession(fixedTime), JSON); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Save(sampleSession(), JSON); err != nil {
		t.Fatal(err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "session_*.json"))
	if len(files) != 1 {
		t.Fatalf("files: got %d, want 1", len(files))
	}
	loaded, err := Load(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.GazePoints) != 3 {
		t.Errorf("latest save should win: got %d samples", len(loaded.GazePoints))
	}
}

func TestSave_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New(dir).Save(gaze.NewSession(fixedTime), Format("xml"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format: got %v, want ErrUnknownFormat", err)
	}

	// A regular file where the output directory should be
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = New(filepath.Join(blocker, "out")).Save(gaze.NewSession(fixedTime), JSON)
	if err == nil {
		t.Error("expected write error to propagate")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", JSON, false},
		{"csv", CSV, false},
		{"JSON", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseFormat(%q): err = %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseFormat(%q): got %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	rec := New("out")
	if rec.Dir() != "out" {
		t.Errorf("Dir: got %q, want out", rec.Dir())
	}
	if got := rec.Paths(CSV, "x"); len(got) != 2 {
		t.Errorf("Paths(CSV): got %v", got)
	}
	if got := rec.Paths(JSON, "x"); len(got) != 1 || got[0] != filepath.Join("out", "session_x.json") {
		t.Errorf("Paths(JSON): got %v", got)
	}
}
