// Package httpapi exposes the engine over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mariohealth/marioserve/pkg/config"
	"github.com/mariohealth/marioserve/pkg/engine"
)

const requestIDHeader = "X-Request-ID"

// Server represents the HTTP server
type Server struct {
	config *config.Config
	engine *engine.Engine
	router *gin.Engine
	server *http.Server
}

// New creates a server and sets up its routes
func New(cfg *config.Config, eng *engine.Engine) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{config: cfg, engine: eng}
	s.setup()
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setup() {
	if s.config.HTTP.Mode != "" {
		gin.SetMode(s.config.HTTP.Mode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(logMiddleware())
	s.router.Use(corsMiddleware())

	h := &handlers{engine: s.engine, config: s.config}
	s.router.GET("/health", h.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/suggest", h.suggest)
		v1.GET("/resolve", h.resolve)
		v1.POST("/rank", h.rank)
		v1.GET("/spell", h.spell)
		v1.GET("/sort-options", h.sortOptions)
		v1.POST("/refresh", h.refresh)
	}

	s.server = &http.Server{
		Addr:              s.config.HTTP.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start listens until Stop is called
func (s *Server) Start() error {
	log.Infof("HTTP API listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping HTTP API")
	return s.server.Shutdown(ctx)
}

// requestIDMiddleware keeps a caller supplied request ID or assigns one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"id", c.GetString("requestID"))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
