package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type submitRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	resp := fiber.Map{
		"service": "vmchat",
		"version": s.version,
		"status":  "running",
	}
	if s.deps.Chat != nil {
		resp["model"] = s.deps.Chat.Model()
	}
	return c.JSON(resp)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	report := s.deps.Health.Check(c.UserContext())
	return c.JSON(fiber.Map{
		"ok":        report.OK,
		"status":    report.Status,
		"version":   s.version,
		"multipass": report.Multipass,
		"model":     report.Model,
		"libvirt":   report.Libvirt,
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	if s.deps.Chat == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "chat is not configured")
	}

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message is required")
	}

	reply, err := s.deps.Chat.Send(c.UserContext(), req.SessionID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

func (s *Server) handleSubmit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	return c.JSON(s.deps.Pipeline.Submit(c.UserContext(), req.Text))
}
