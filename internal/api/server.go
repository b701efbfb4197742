// Package api serves the HTTP interface of the robot: one POST route per
// action, health and status, and a websocket stream of status changes.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"logbot-service/internal/core"
	"logbot-service/internal/logger"
	"logbot-service/internal/types"
)

// Controller is the part of the action controller the API needs.
type Controller interface {
	Dispatch(kind types.ActionKind) core.DispatchResult
	Health() bool
	Status() types.Snapshot
}

type Server struct {
	app    *fiber.App
	ctrl   Controller
	hub    *Hub
	logger *logger.Logger
}

func NewServer(ctrl Controller, l *logger.Logger) *Server {
	s := &Server{
		ctrl:   ctrl,
		hub:    NewHub(l.WithTag("ws")),
		logger: l,
	}

	app := fiber.New(fiber.Config{
		AppName:               "logbot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(s.logRequests)

	v1 := app.Group("/v1")
	v1.Post("/"+types.ActionStop.Route(), s.handleDispatch(types.ActionStop))
	for _, kind := range types.HardwareActions {
		v1.Post("/"+kind.Route(), s.handleDispatch(kind))
	}
	v1.Get("/health", s.handleHealth)
	v1.Get("/status", s.handleStatus)

	// WebSocket upgrade middleware
	v1.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	go s.hub.Run()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Infof("Listening on %s", addr)
	return s.app.Listen(addr)
}

// PublishStatus pushes a status change to websocket clients.
func (s *Server) PublishStatus(snap types.Snapshot) {
	if err := s.hub.BroadcastJSON(snap); err != nil {
		s.logger.Warnf("Failed to encode status: %v", err)
	}
}

func (s *Server) Shutdown() error {
	s.hub.Stop()
	return s.app.Shutdown()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debugf("%s %s -> %d (%s)", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
	return err
}
