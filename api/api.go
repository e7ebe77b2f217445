package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/papercomputeco/engram/pkg/memory"
)

// Server is the HTTP server for the memory store.
type Server struct {
	config  Config
	service *memory.Service
	logger  *zap.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The service is injected to allow sharing with other surfaces (e.g., the
// MCP server when both are mounted on one process).
func NewServer(config Config, service *memory.Service, logger *zap.Logger) *Server {
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}

	s := &Server{
		config:  config,
		service: service,
		logger:  logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             MaxBodyBytes,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
		MaxAge:       86400,
	}))

	app.Post("/health", s.handleHealth)
	app.Post("/memory/profile/get", s.handleProfileGet)
	app.Post("/memory/profile/set", s.handleProfileSet)
	app.Post("/memory/nodes/list", s.handleNodesList)
	app.Post("/memory/node/upsert", s.handleNodeUpsert)
	app.Post("/memory/node/delete", s.handleNodeDelete)
	app.Post("/memory/reset", s.handleReset)
	app.Post("/memory/query", s.handleQuery)

	s.app = app

	return s
}

// Mount attaches an extra HTTP handler under the given path prefix. Used to
// expose the MCP surface on the same listener.
func (s *Server) Mount(prefix string, handler http.Handler) {
	s.app.All(prefix+"/*", adaptor.HTTPHandler(handler))
	s.app.All(prefix, adaptor.HTTPHandler(handler))
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting memory API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// handleError renders every error as a JSON envelope. An oversized body is a
// client input error, so the 413 fiber raises for it is reported as a 400.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	switch code {
	case fiber.StatusRequestEntityTooLarge:
		code = fiber.StatusBadRequest
		message = "Request body too large"
	case fiber.StatusNotFound:
		message = "Not found"
	case fiber.StatusMethodNotAllowed:
		message = "Method not allowed"
	case fiber.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		message = "Internal server error"
	}

	return c.Status(code).JSON(errorResponse{Error: message})
}
