// Package store archives saved session snapshots in a BoltDB file
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

var sessionsBucket = []byte("sessions")

// ErrNotFound is returned when a snapshot key does not exist
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one archived save of a session
type Snapshot struct {
	Key       string        `json:"key"`
	SessionID string        `json:"session_id"`
	SavedAt   time.Time     `json:"saved_at"`
	Stamp     string        `json:"stamp"`   // Filename timestamp of the save
	Formats   []string      `json:"formats"` // Formats written to disk alongside
	Stats     gaze.Stats    `json:"stats"`
	Session   *gaze.Session `json:"session,omitempty"`
}

// Client is a BoltDB database client.
type Client struct {
	*bolt.DB
}

// Open opens (creating if needed) the archive at path
func Open(path string) (*Client, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Client{db}, nil
}

// Key builds the archive key for a save; keys sort by save time
func Key(stamp, sessionID string) string {
	return stamp + "/" + sessionID
}

// Put archives a snapshot of sess taken at stamp. The session document is
// stored in full so the archive stands on its own.
func (c *Client) Put(sess *gaze.Session, stamp string, formats []string, savedAt time.Time) (Snapshot, error) {
	snap := Snapshot{
		Key:       Key(stamp, sess.ID),
		SessionID: sess.ID,
		SavedAt:   savedAt,
		Stamp:     stamp,
		Formats:   formats,
		Stats:     sess.Stats(),
		Session:   sess,
	}

	value, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, err
	}

	err = c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(snap.Key), value)
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("archive snapshot: %w", err)
	}
	return snap, nil
}

// Get returns the full snapshot stored under key
func (c *Client) Get(key string) (*Snapshot, error) {
	var snap Snapshot

	err := c.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(key))
		if len(data) == 0 {
			return ErrNotFound
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns snapshot summaries, newest first, without session documents.
// limit <= 0 returns everything.
func (c *Client) List(limit int) ([]Snapshot, error) {
	var out []Snapshot

	err := c.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(sessionsBucket).Cursor()

		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			snap.Session = nil
			out = append(out, snap)

			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})

	return out, err
}

// Delete removes a snapshot
func (c *Client) Delete(key string) error {
	return c.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}
