// Package web serves the operator dashboard: JSON endpoints for
// orchestrator state and the visit journal, plus live status and log
// feeds over WebSocket.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/socialrobotics/go-pepper/internal/log"
	"github.com/socialrobotics/go-pepper/pkg/orchestrator"
	"github.com/socialrobotics/go-pepper/pkg/visitlog"
)

const logBacklog = 500

// StatusSource produces dashboard state snapshots. The orchestrator is
// the production source.
type StatusSource interface {
	Snapshot() orchestrator.Snapshot
}

// LogEntry is one line of the dashboard's live log feed.
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Server hosts the dashboard endpoints and broadcast feeds.
type Server struct {
	source StatusSource
	visits visitlog.Store

	statusFeed *feed
	logFeed    *feed

	logsMu sync.RWMutex
	logs   []LogEntry

	snapMu   sync.RWMutex
	snap     orchestrator.Snapshot
	haveSnap bool
}

// NewServer creates a dashboard server. visits may be nil when the
// journal is disabled; the visit endpoints then report it as such.
func NewServer(source StatusSource, visits visitlog.Store) *Server {
	return &Server{
		source:     source,
		visits:     visits,
		statusFeed: newFeed("status"),
		logFeed:    newFeed("logs"),
		logs:       make([]LogEntry, 0, logBacklog),
	}
}

// Start runs the broadcast feeds and begins mirroring log records into
// the live log feed.
func (s *Server) Start() {
	go s.statusFeed.run()
	go s.logFeed.run()
	log.SetMirror(s.mirrorLog)
}

// Stop detaches the log mirror and disconnects all dashboard clients.
func (s *Server) Stop() {
	log.SetMirror(nil)
	s.statusFeed.stop()
	s.logFeed.stop()
}

// RegisterRoutes mounts the dashboard endpoints on app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleLogs)
	api.Get("/visits", s.handleVisits)
	api.Get("/visits/stats", s.handleVisitStats)

	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	app.Use("/ws/status", upgrade)
	app.Use("/ws/logs", upgrade)
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
}

// PushStatus broadcasts a fresh snapshot to status clients. Wire it to
// the orchestrator's notify hook.
func (s *Server) PushStatus(snap orchestrator.Snapshot) {
	s.snapMu.Lock()
	s.snap = snap
	s.haveSnap = true
	s.snapMu.Unlock()

	s.statusFeed.publishJSON(snap)
}

func (s *Server) mirrorLog(at time.Time, level, msg string) {
	entry := LogEntry{
		Time:    at.Format("15:04:05"),
		Level:   level,
		Message: msg,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > logBacklog {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logFeed.publishJSON(entry)
}
