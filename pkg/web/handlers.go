package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.source.Snapshot())
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	logs := make([]LogEntry, len(s.logs))
	copy(logs, s.logs)
	s.logsMu.RUnlock()
	return c.JSON(logs)
}

func (s *Server) handleVisits(c *fiber.Ctx) error {
	if s.visits == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "visit journal disabled",
		})
	}

	limit := c.QueryInt("limit", 20)
	visits, err := s.visits.RecentVisits(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"visits": visits,
		"count":  len(visits),
	})
}

func (s *Server) handleVisitStats(c *fiber.Ctx) error {
	if s.visits == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "visit journal disabled",
		})
	}

	var since time.Time
	if window := c.Query("window"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "bad window: " + err.Error(),
			})
		}
		since = time.Now().Add(-d)
	}

	sum, err := s.visits.Stats(c.Context(), since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(sum)
}

// handleStatusWS streams snapshots. New clients get the latest one
// immediately, then every push.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.snapMu.RLock()
	have, snap := s.haveSnap, s.snap
	s.snapMu.RUnlock()
	if have {
		c.WriteJSON(snap)
	}

	s.statusFeed.serve(c)
}

// handleLogsWS streams log entries, replaying the backlog first.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	s.logsMu.RLock()
	backlog := make([]LogEntry, len(s.logs))
	copy(backlog, s.logs)
	s.logsMu.RUnlock()
	for _, entry := range backlog {
		if err := c.WriteJSON(entry); err != nil {
			return
		}
	}

	s.logFeed.serve(c)
}
