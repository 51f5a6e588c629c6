package remote

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/guieduc/guieduc/internal/schema"
)

// Notifier is told about every push that stored something.
type Notifier interface {
	EventsSaved(saved int, events []schema.Event)
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Notifier  Notifier // optional
	BodyLimit int
	Logger    *log.Logger
}

// Server exposes a Store over HTTP.
type Server struct {
	store    *Store
	notifier Notifier
	logger   *log.Logger
	app      *fiber.App
}

// NewServer builds the fiber app for store.
func NewServer(store *Store, cfg *ServerConfig) *Server {
	if cfg == nil {
		cfg = &ServerConfig{}
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 32 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	s := &Server{
		store:    store,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "guieduc-remote",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	s.app.Use(s.logRequests)
	s.app.Post(schema.PushPath, s.handlePush)
	s.app.Get(schema.PullPath, s.handlePull)
	s.app.Get(schema.HealthPath, s.handleHealth)
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Printf("Event store listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Printf("%s %s status=%d dur=%s", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
	return err
}

func (s *Server) handlePush(c *fiber.Ctx) error {
	var req schema.PushRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(schema.PushResponse{Error: "invalid body: " + err.Error()})
	}

	saved, err := s.store.Save(c.UserContext(), req.Events)
	if err != nil {
		s.logger.Printf("WARNING: push of %d event(s) failed: %v", len(req.Events), err)
		return c.Status(fiber.StatusInternalServerError).JSON(schema.PushResponse{Error: err.Error()})
	}

	if saved > 0 && s.notifier != nil {
		s.notifier.EventsSaved(saved, req.Events)
	}
	return c.JSON(schema.PushResponse{OK: true, Saved: saved})
}

func (s *Server) handlePull(c *fiber.Ctx) error {
	limit := schema.MaxPullEvents
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(schema.PullResponse{Error: "invalid limit"})
		}
		limit = n
	}

	events, err := s.store.List(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(schema.PullResponse{Error: err.Error()})
	}
	return c.JSON(schema.PullResponse{OK: true, Events: events})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
