// Package server exposes stored runs over a read-only HTTP API.
package server

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/hashicorp/go-hclog"

	"github.com/aristath/workgraph/internal/graph"
	"github.com/aristath/workgraph/internal/persistence"
)

// Reader is the part of a store the API needs.
type Reader interface {
	Load(ctx context.Context, runID string) (*graph.Snapshot, bool, error)
	List(ctx context.Context) ([]persistence.RunInfo, error)
}

// TaskDetail is the response of the task endpoint.
type TaskDetail struct {
	Task    *graph.Task        `json:"task"`
	Summary []graph.SummaryRow `json:"summary"`
}

// Server serves projections of stored runs. Nothing is ever written.
type Server struct {
	app    *fiber.App
	store  Reader
	logger hclog.Logger
}

// New builds the API on top of store.
func New(store Reader, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:     "workgraph",
			JSONEncoder: gojson.Marshal,
			JSONDecoder: gojson.Unmarshal,
		}),
		store:  store,
		logger: logger.Named("server"),
	}
	s.routes()
	return s
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Use(s.logRequests)

	api := s.app.Group("/api")
	api.Get("/runs", s.listRuns)
	api.Get("/runs/:id", s.getRun)
	api.Get("/runs/:id/tasks/:name", s.getTask)
	api.Get("/runs/:id/connectivity", s.getConnectivity)
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

func (s *Server) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request", "method", c.Method(), "path", c.Path(),
		"status", c.Response().StatusCode(), "duration", time.Since(start))
	return err
}

func (s *Server) listRuns(c fiber.Ctx) error {
	runs, err := s.store.List(c.Context())
	if err != nil {
		return s.internalError(c, err)
	}
	if runs == nil {
		runs = []persistence.RunInfo{}
	}
	return c.JSON(runs)
}

func (s *Server) getRun(c fiber.Ctx) error {
	snap, err := s.load(c)
	if err != nil || snap == nil {
		return err
	}
	return c.JSON(graph.Project(snap))
}

func (s *Server) getTask(c fiber.Ctx) error {
	snap, err := s.load(c)
	if err != nil || snap == nil {
		return err
	}
	task, ok := snap.Tasks[c.Params("name")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task not found"})
	}
	return c.JSON(TaskDetail{Task: task, Summary: graph.Summarize(task)})
}

func (s *Server) getConnectivity(c fiber.Ctx) error {
	snap, err := s.load(c)
	if err != nil || snap == nil {
		return err
	}
	if snap.Connectivity == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "connectivity not computed"})
	}
	return c.JSON(snap.Connectivity)
}

// load fetches the run named by the :id param. When it returns a nil
// snapshot the response has already been written.
func (s *Server) load(c fiber.Ctx) (*graph.Snapshot, error) {
	snap, found, err := s.store.Load(c.Context(), c.Params("id"))
	if err != nil {
		return nil, s.internalError(c, err)
	}
	if !found {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	return snap, nil
}

func (s *Server) internalError(c fiber.Ctx, err error) error {
	s.logger.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
