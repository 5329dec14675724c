// Package server exposes the pipeline, the chat service and instance
// queries over HTTP.
//
// All responses are JSON. Errors are rendered as {"error": "..."} by a
// single error handler, which maps domain errors to status codes:
//
//	vm.ErrNotFound              404
//	status.ErrAlreadyCreating   409
//	chat.ErrSessionRequired     400
//	llm.ErrEmptyResponse        502
//	llm.ErrModelNotFound        502
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jbweber/vmchat/internal/chat"
	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/config"
	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/llm"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// Pipeline runs commands.
//
// In production, this is satisfied by *pipeline.Pipeline.
type Pipeline interface {
	Submit(ctx context.Context, text string) pipeline.Submission
	Prepare(text string) (command.Command, *command.Rejection)
	Dispatch(ctx context.Context, cmd command.Command) (pipeline.Result, error)
	Status(name string) status.Record
	TaskStatus(id string) (pipeline.TaskStatus, bool)
	Tasks() []pipeline.TaskStatus
	Wait(ctx context.Context) error
}

// Instances answers instance queries.
//
// In production, this is satisfied by *vm.Manager.
type Instances interface {
	List(ctx context.Context) ([]vm.Instance, error)
	ListDetailed(ctx context.Context) ([]vm.Instance, error)
	Info(ctx context.Context, name string) (vm.Instance, error)
}

// Chat answers chat messages.
//
// In production, this is satisfied by *chat.Service.
type Chat interface {
	Send(ctx context.Context, sessionID, message string) (chat.Reply, error)
	Model() string
}

// Health reports dependency health.
//
// In production, this is satisfied by *health.Checker.
type Health interface {
	Check(ctx context.Context) health.Report
}

// Deps are the services behind the endpoints.
type Deps struct {
	Pipeline  Pipeline
	Instances Instances
	Chat      Chat
	Health    Health
}

// Server is the HTTP API.
type Server struct {
	app     *fiber.App
	cfg     config.ServerConfig
	deps    Deps
	version string
	logger  *slog.Logger
}

// New creates a Server and registers its routes.
func New(deps Deps, cfg config.ServerConfig, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		version: version,
		logger:  logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "vmchat " + version,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          errorHandler(logger),
	})

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	s.app.Use(requestLogger(logger))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.handleRoot)
	s.app.Get("/health", s.handleHealth)
	s.app.Post("/chat", s.handleChat)
	s.app.Post("/submit", s.handleSubmit)

	vms := s.app.Group("/vms")
	vms.Get("/list", s.handleList)
	vms.Get("/info/:name", s.handleInfo)
	vms.Get("/status/:name", s.handleStatus)
	vms.Post("/create", s.handleCreate)
	vms.Post("/start/:name", s.handleControl(command.OpStart))
	vms.Post("/stop/:name", s.handleControl(command.OpStop))
	vms.Post("/recover/:name", s.handleControl(command.OpRecover))
	vms.Delete("/delete/:name", s.handleControl(command.OpDelete))
	vms.Get("/tasks", s.handleTasks)
	vms.Get("/tasks/:id", s.handleTask)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts down. In-flight requests and
// running creation tasks each get the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout.Std()
	s.logger.Info("Shutting down server", "timeout", timeout)
	if err := s.app.ShutdownWithTimeout(timeout); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.deps.Pipeline.Wait(waitCtx); err != nil {
		s.logger.Warn("Creation tasks still running at exit", "error", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, vm.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, status.ErrAlreadyCreating):
		return fiber.StatusConflict
	case errors.Is(err, chat.ErrSessionRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, llm.ErrEmptyResponse), errors.Is(err, llm.ErrModelNotFound):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("Request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"error", err,
		)
		return err
	}
}
