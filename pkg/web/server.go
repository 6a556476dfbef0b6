// Package web provides a live dashboard for a running gaze session
package web

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"github.com/teslashibe/go-gaze/pkg/store"
)

// FrameEvent is broadcast on /ws/gaze once per processed frame
type FrameEvent struct {
	Seq      uint64      `json:"seq"`
	Gaze     *gaze.Point `json:"gaze"` // null when no gaze was resolved
	Fixation bool        `json:"fixation"`
	Blink    bool        `json:"blink"`
}

// SessionLister lists archived session snapshots
type SessionLister interface {
	List(limit int) ([]store.Snapshot, error)
}

// Server is the dashboard. It implements pipeline.Visualizer.
type Server struct {
	app  *fiber.App
	port string

	trail *Trail
	seq   atomic.Uint64

	// Latest frame and stats
	mu    sync.RWMutex
	last  FrameEvent
	stats gaze.Stats

	gazeHub  *hub.Hub
	statsHub *hub.Hub

	// Sessions backs /api/sessions; nil serves an empty list
	Sessions SessionLister

	// OnSave handles /api/save and returns the filename timestamp
	OnSave func(ctx context.Context, format recorder.Format) (string, error)
}

// NewServer creates a dashboard listening on port with a trail of the
// given capacity
func NewServer(port string, trail int) *Server {
	s := &Server{
		port:     port,
		trail:    NewTrail(trail),
		gazeHub:  hub.New("gaze"),
		statsHub: hub.New("stats"),
	}
	s.statsHub.SetGreeting(s.statsGreeting)

	app := fiber.New(fiber.Config{
		AppName:               "Gaze Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/trail", s.handleTrail)
	api.Get("/sessions", s.handleSessions)
	api.Post("/save", s.handleSave)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/gaze", websocket.New(s.handleGazeWS))
	app.Get("/ws/stats", websocket.New(s.handleStatsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	log.Info("web dashboard", "url", "http://localhost:"+s.port)
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.gazeHub.Run(ctx)
	go s.statsHub.Run(ctx)

	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("web server error", "error", err)
		}
	}()
}

// Consume records one classified frame and broadcasts it
func (s *Server) Consume(p *gaze.Point, isFixation, isBlink bool) {
	ev := FrameEvent{
		Seq:      s.seq.Add(1),
		Fixation: isFixation,
		Blink:    isBlink,
	}
	if p != nil {
		pt := *p
		ev.Gaze = &pt
		s.trail.Push(TrailPoint{X: pt.X, Y: pt.Y, Fixation: isFixation})
	}

	s.mu.Lock()
	s.last = ev
	s.mu.Unlock()

	if err := s.gazeHub.BroadcastJSON(ev); err != nil {
		log.Debug("frame event not broadcast", "seq", ev.Seq, "error", err)
	}
}

// UpdateStats stores and broadcasts the latest session counters
func (s *Server) UpdateStats(st gaze.Stats) {
	s.mu.Lock()
	s.stats = st
	s.mu.Unlock()

	if err := s.statsHub.BroadcastJSON(st); err != nil {
		log.Debug("stats not broadcast", "frames", st.FrameCount, "error", err)
	}
}

func (s *Server) statsGreeting() (hub.Message, bool) {
	msg, err := hub.Encode(s.currentStats())
	if err != nil {
		log.Debug("stats greeting not sent", "error", err)
		return hub.Message{}, false
	}
	return msg, true
}

func (s *Server) currentStats() gaze.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
