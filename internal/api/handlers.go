package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"logbot-service/internal/core"
	"logbot-service/internal/types"
)

// DispatchResponse is the body of every action route. The HTTP status is
// always 200; Status carries the dispatch outcome.
type DispatchResponse struct {
	Status int     `json:"status"`
	Reason *string `json:"reason"`
}

func NewDispatchResponse(r core.DispatchResult) DispatchResponse {
	resp := DispatchResponse{Status: r.Status}
	if reason := r.Reason(); reason != "" {
		name := reason.String()
		resp.Reason = &name
	}
	return resp
}

func (s *Server) handleDispatch(kind types.ActionKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res := s.ctrl.Dispatch(kind)
		switch {
		case res.Status >= fiber.StatusInternalServerError:
			s.logger.Errorf("%s failed: %v", kind, res.Err)
		case res.Err != nil:
			s.logger.Infof("%s rejected: %v", kind, res.Err)
		}
		return c.JSON(NewDispatchResponse(res))
	}
}

// handleHealth answers with an empty body; SendStatus would add one.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if !s.ctrl.Health() {
		c.Status(fiber.StatusServiceUnavailable)
		return nil
	}
	c.Status(fiber.StatusOK)
	return nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleStatusWS streams the current status followed by every change.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	initial, err := json.Marshal(s.ctrl.Status())
	if err != nil {
		s.logger.Warnf("Failed to encode status: %v", err)
		initial = nil
	}
	s.hub.serve(conn, initial)
}
