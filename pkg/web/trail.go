package web

import "sync"

// DefaultTrail is the number of recent gaze points kept for the dashboard
const DefaultTrail = 64

// TrailPoint is one entry of the recent gaze trail
type TrailPoint struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Fixation bool `json:"fixation"`
}

// Trail is a fixed-capacity ring of recent gaze points. Once full, each
// push evicts the oldest point.
type Trail struct {
	mu     sync.RWMutex
	points []TrailPoint
	start  int
	size   int
}

// NewTrail creates a ring holding capacity points (DefaultTrail if <= 0)
func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultTrail
	}
	return &Trail{points: make([]TrailPoint, capacity)}
}

// Push appends p, overwriting the oldest point when full
func (t *Trail) Push(p TrailPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.points)
	if t.size < n {
		t.points[(t.start+t.size)%n] = p
		t.size++
		return
	}
	t.points[t.start] = p
	t.start = (t.start + 1) % n
}

// Points returns a copy of the trail, oldest first
func (t *Trail) Points() []TrailPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrailPoint, t.size)
	n := len(t.points)
	for i := 0; i < t.size; i++ {
		out[i] = t.points[(t.start+i)%n]
	}
	return out
}

// Len returns the number of points held
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Cap returns the ring capacity
func (t *Trail) Cap() int {
	return len(t.points)
}
