package main

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/store"
)

func TestSummaryRows(t *testing.T) {
	sess := &gaze.Session{
		SessionStart: "2024-05-01T10:00:00.000000",
		GazePoints: []gaze.GazeSample{
			{Timestamp: 1.0, X: 1, Y: 1},
			{Timestamp: 2.5, X: 1, Y: 1},
		},
		Fixations: []gaze.Fixation{
			{StartTime: 1.0, EndTime: 1.5},
			{StartTime: 1.0, EndTime: 2.5},
		},
		Blinks:   []gaze.Blink{{Timestamp: 3}},
		Metadata: gaze.Metadata{FrameCount: 3},
	}

	want := [][]string{
		{"FIELD", "VALUE"},
		{"Session start", "2024-05-01T10:00:00.000000"},
		{"Frames", "3"},
		{"Gaze samples", "2"},
		{"Sample span", "1.500s"},
		{"Fixations", "2"},
		{"Mean fixation", "1.000s"},
		{"Blinks", "1"},
	}
	if diff := cmp.Diff(want, summaryRows(sess)); diff != "" {
		t.Errorf("summaryRows (-want +got):\n%s", diff)
	}
}

func TestSummaryRows_Empty(t *testing.T) {
	rows := summaryRows(gaze.NewSession(time.Time{}))
	if rows[4][1] != "0.000s" || rows[6][1] != "0.000s" {
		t.Errorf("empty session rows: got %v", rows)
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	var got []string
	for _, c := range app.Commands {
		got = append(got, c.Name)
	}
	want := []string{"run", "inspect", "sessions", "save", "config"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}
}

func TestSessions_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaze.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	snap, err := db.Put(gaze.NewSession(time.Now()), "20240501_100000", []string{"json"}, time.Now())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	db.Close()

	args := []string{"gazetrack", "--no-color", "sessions", "--db", path, "--delete", snap.Key}
	if err := newApp().Run(args); err != nil {
		t.Fatalf("sessions --delete: %v", err)
	}

	db, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_, err = db.Get(snap.Key)
	db.Close()
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}

	err = newApp().Run(args)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
