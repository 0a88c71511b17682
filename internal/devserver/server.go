// Package devserver is a stub backend for local development and tests.
//
// It serves the REST endpoints the client consumes (/status, /tasks,
// /api/...) from an in-memory task list and runs the presence hub on /ws.
// With DBConfigured false every data route answers 503, which is what puts
// clients into demo mode.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/types"
)

// AppVersion is reported by /status.
const AppVersion = "0.1.0-dev"

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: :3001)
	Addr string

	// DBConfigured controls whether data routes answer or return 503.
	DBConfigured bool

	// Origins allowed for CORS and WebSocket upgrades (default: any)
	Origins []string

	// Tasks seeds the in-memory store.
	Tasks []types.Task

	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:   ":3001",
		Logger: log.StandardLogger(),
	}
}

// Server is the stub backend.
type Server struct {
	config  *Config
	echo    *echo.Echo
	hub     *Hub
	started time.Time

	mu    sync.RWMutex
	tasks []types.Task

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// NewServer builds the routes. The server does not listen until Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Addr == "" {
		config.Addr = ":3001"
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}

	s := &Server{
		config:  config,
		echo:    echo.New(),
		hub:     NewHub(config.Origins, config.Logger),
		started: time.Now(),
		tasks:   types.CloneAll(config.Tasks),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	origins := config.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.root)
	e.GET("/status", s.status)
	e.GET("/ws", echo.WrapHandler(s.hub))

	e.GET("/tasks", s.listTasks, s.requireDB, requireAuth)
	api := e.Group("/api", s.requireDB, requireAuth)
	api.GET("/projects", s.listProjects)
	api.GET("/tasks", s.listTasks)
	api.POST("/tasks", s.createTask)
	api.PUT("/tasks/:id", s.updateTask)
	api.DELETE("/tasks/:id", s.deleteTask)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Hub returns the presence hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.hub.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.config.Logger.WithFields(log.Fields{
			"addr":          ln.Addr().String(),
			"db_configured": s.config.DBConfigured,
		}).Info("devserver.listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Logger.WithError(err).Error("devserver.serve")
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.hub.Stop()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.wg.Wait()
	s.config.Logger.Info("devserver.stopped")
	return nil
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Tasks returns a copy of the stored tasks.
func (s *Server) Tasks() []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CloneAll(s.tasks)
}

func (s *Server) requireDB(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.config.DBConfigured {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Database not configured"})
		}
		return next(c)
	}
}

func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		}
		return next(c)
	}
}

func (s *Server) root(c echo.Context) error {
	return c.String(http.StatusOK, "TaskBoards dev server")
}

func (s *Server) status(c echo.Context) error {
	origins := s.config.Origins
	if origins == nil {
		origins = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"app_version":           AppVersion,
		"db_configured":         s.config.DBConfigured,
		"secret_key_configured": true,
		"cors_origins":          origins,
		"websocket_origins":     origins,
		"uptime_seconds":        int(time.Since(s.started).Seconds()),
	})
}

type project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) listProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, []project{{ID: "p1", Name: "TaskBoards"}})
}

func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Tasks())
}

func (s *Server) createTask(c echo.Context) error {
	var task types.Task
	if err := c.Bind(&task); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid task"})
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Normalize()
	if err := task.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if types.IndexOf(s.tasks, task.ID) >= 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "task exists"})
	}
	s.tasks = append(s.tasks, task)
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTask(c echo.Context) error {
	id := c.Param("id")
	var task types.Task
	if err := c.Bind(&task); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid task"})
	}
	task.ID = id
	task.Normalize()
	if err := task.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := types.IndexOf(s.tasks, id)
	if idx < 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}
	s.tasks[idx] = task
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := types.IndexOf(s.tasks, id)
	if idx < 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	return c.NoContent(http.StatusNoContent)
}
