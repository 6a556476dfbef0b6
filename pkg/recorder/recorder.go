// Package recorder persists gaze sessions as JSON documents and CSV tables.
//
// Every save is named after the wall clock at second precision:
//
//	session_20240501_093015.json
//	gaze_points_20240501_093015.csv
//	fixations_20240501_093015.csv
//
// Two saves within the same second overwrite each other. Saving never
// modifies the session, so repeated saves re-emit the full history.
package recorder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// TimestampLayout is the filename timestamp format (YYYYMMDD_HHMMSS)
const TimestampLayout = "20060102_150405"

// Format selects the output encoding
type Format string

const (
	// JSON writes the whole session as one document
	JSON Format = "json"
	// CSV writes gaze samples and fixations as two tables; blinks are not exported
	CSV Format = "csv"
)

// ErrUnknownFormat is returned for formats other than json and csv
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat converts a user supplied name into a Format
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case JSON, CSV:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var (
	gazeHeader     = []string{"timestamp", "x", "y"}
	fixationHeader = []string{"start_time", "end_time", "x", "y"}
)

// Recorder writes session snapshots into a directory
type Recorder struct {
	dir string
	now func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the clock used for filenames
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New creates a recorder writing into dir ("" means the working directory)
func New(dir string, opts ...Option) *Recorder {
	r := &Recorder{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the output directory
func (r *Recorder) Dir() string {
	return r.dir
}

// Save writes sess in the given format and returns the timestamp string
// embedded in the filenames.
func (r *Recorder) Save(sess *gaze.Session, format Format) (string, error) {
	ts := r.now().Format(TimestampLayout)

	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}

	var err error
	switch format {
	case JSON:
		err = r.writeJSON(sess, ts)
	case CSV:
		err = r.writeCSV(sess, ts)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return "", err
	}

	log.Info("session saved",
		"format", string(format),
		"timestamp", ts,
		"samples", len(sess.GazePoints),
		"fixations", len(sess.Fixations),
		"blinks", len(sess.Blinks))

	return ts, nil
}

// Paths returns the files a save at ts produces for format
func (r *Recorder) Paths(format Format, ts string) []string {
	switch format {
	case JSON:
		return []string{r.path("session_" + ts + ".json")}
	case CSV:
		return []string{
			r.path("gaze_points_" + ts + ".csv"),
			r.path("fixations_" + ts + ".csv"),
		}
	}
	return nil
}

func (r *Recorder) path(name string) string {
	return filepath.Join(r.dir, name)
}

func (r *Recorder) writeJSON(sess *gaze.Session, ts string) error {
	data, err := Marshal(sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.path("session_"+ts+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write session json: %w", err)
	}
	return nil
}

func (r *Recorder) writeCSV(sess *gaze.Session, ts string) error {
	gazeRows := make([][]string, 0, len(sess.GazePoints))
	for _, s := range sess.GazePoints {
		gazeRows = append(gazeRows, []string{
			formatFloat(s.Timestamp),
			strconv.Itoa(s.X),
			strconv.Itoa(s.Y),
		})
	}
	if err := writeTable(r.path("gaze_points_"+ts+".csv"), gazeHeader, gazeRows); err != nil {
		return fmt.Errorf("write gaze csv: %w", err)
	}

	fixRows := make([][]string, 0, len(sess.Fixations))
	for _, f := range sess.Fixations {
		fixRows = append(fixRows, []string{
			formatFloat(f.StartTime),
			formatFloat(f.EndTime),
			strconv.Itoa(f.X),
			strconv.Itoa(f.Y),
		})
	}
	if err := writeTable(r.path("fixations_"+ts+".csv"), fixationHeader, fixRows); err != nil {
		return fmt.Errorf("write fixations csv: %w", err)
	}
	return nil
}

func writeTable(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Marshal encodes a session as the persisted JSON document
func Marshal(sess *gaze.Session) ([]byte, error) {
	doc := *sess
	if doc.GazePoints == nil {
		doc.GazePoints = []gaze.GazeSample{}
	}
	if doc.Fixations == nil {
		doc.Fixations = []gaze.Fixation{}
	}
	if doc.Blinks == nil {
		doc.Blinks = []gaze.Blink{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Load reads a session JSON document written by Save
func Load(path string) (*gaze.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess gaze.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	return &sess, nil
}
