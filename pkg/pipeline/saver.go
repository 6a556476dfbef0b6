package pipeline

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"github.com/teslashibe/go-gaze/pkg/store"
)

// Archive keeps snapshots of saved sessions
type Archive interface {
	Put(sess *gaze.Session, stamp string, formats []string, savedAt time.Time) (store.Snapshot, error)
}

// Saver writes session files and then archives the snapshot
type Saver struct {
	rec     *recorder.Recorder
	archive Archive
	now     func() time.Time
}

// NewSaver creates a saver; archive may be nil
func NewSaver(rec *recorder.Recorder, archive Archive) *Saver {
	return &Saver{rec: rec, archive: archive, now: time.Now}
}

// Save writes sess in format and returns the filename timestamp.
// Files are written before archiving; an archive failure is returned but
// the files stay on disk.
func (s *Saver) Save(sess *gaze.Session, format recorder.Format) (string, error) {
	stamp, err := s.rec.Save(sess, format)
	if err != nil {
		return "", err
	}

	if s.archive != nil {
		if _, err := s.archive.Put(sess, stamp, []string{string(format)}, s.now()); err != nil {
			return stamp, fmt.Errorf("files written as %s: %w", stamp, err)
		}
	}
	debug.Log("session saved", "format", format, "stamp", stamp, "dir", s.rec.Dir(), "archived", s.archive != nil)
	return stamp, nil
}

// SaveAll writes every format in order, stopping at the first failure.
// Formats already written stay on disk.
func (s *Saver) SaveAll(sess *gaze.Session, formats []recorder.Format) ([]string, error) {
	stamps := make([]string, 0, len(formats))
	for _, f := range formats {
		stamp, err := s.Save(sess, f)
		if err != nil {
			return stamps, err
		}
		stamps = append(stamps, stamp)
	}
	return stamps, nil
}
