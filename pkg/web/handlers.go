package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"github.com/teslashibe/go-gaze/pkg/store"
)

const defaultSessionLimit = 20

// Status is the body of GET /api/status
type Status struct {
	Stats    gaze.Stats `json:"stats"`
	Last     FrameEvent `json:"last"`
	Trail    int        `json:"trail"`
	TrailCap int        `json:"trail_capacity"`
	Clients  struct {
		Gaze  int `json:"gaze"`
		Stats int `json:"stats"`
	} `json:"clients"`
}

// SaveResult is the body of a successful POST /api/save
type SaveResult struct {
	Format string `json:"format"`
	Stamp  string `json:"stamp"`
}

// handleStatus returns the latest stats and frame
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	st := Status{Stats: s.stats, Last: s.last}
	s.mu.RUnlock()

	st.Trail = s.trail.Len()
	st.TrailCap = s.trail.Cap()
	st.Clients.Gaze = s.gazeHub.ClientCount()
	st.Clients.Stats = s.statsHub.ClientCount()
	return c.JSON(st)
}

// handleTrail returns recent gaze points, oldest first
func (s *Server) handleTrail(c *fiber.Ctx) error {
	return c.JSON(s.trail.Points())
}

// handleSessions lists archived snapshots, newest first
func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.Sessions == nil {
		return c.JSON([]store.Snapshot{})
	}

	limit := c.QueryInt("limit", defaultSessionLimit)
	list, err := s.Sessions.List(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if list == nil {
		list = []store.Snapshot{}
	}
	return c.JSON(list)
}

// handleSave asks the run loop to save the session
func (s *Server) handleSave(c *fiber.Ctx) error {
	format, err := recorder.ParseFormat(c.Query("format", string(recorder.JSON)))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if s.OnSave == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "saving not configured",
		})
	}

	stamp, err := s.OnSave(c.UserContext(), format)
	if err != nil {
		log.Error("dashboard save failed", "format", format, "error", err)
		body := fiber.Map{"error": err.Error()}
		if stamp != "" {
			body["stamp"] = stamp
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	log.Info("dashboard save", "format", format, "stamp", stamp)
	return c.JSON(SaveResult{Format: string(format), Stamp: stamp})
}

// handleGazeWS streams frame events
func (s *Server) handleGazeWS(c *websocket.Conn) {
	hub.NewClient(s.gazeHub, c).Run()
}

// handleStatsWS streams session stats, starting with the current ones
func (s *Server) handleStatsWS(c *websocket.Conn) {
	hub.NewClient(s.statsHub, c).Run()
}

