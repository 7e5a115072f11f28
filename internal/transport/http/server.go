// Package apihttp serves the control surface: read accessors over the
// pipeline's state plus the manual-trade and run-strategy triggers.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alphadesk/internal/decision"
	"alphadesk/internal/engine"
	"alphadesk/internal/ledger"
	"alphadesk/internal/logger"
	"alphadesk/internal/performance"
	"alphadesk/internal/report"
)

// Server hosts the JSON API.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig lists the server dependencies.
type ServerConfig struct {
	Addr     string
	Engine   *engine.Engine
	Registry *decision.Registry
	Ledger   *ledger.Store
	Perf     *performance.Tracker
	Reports  *report.Store
	Location *time.Location
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("api server requires the engine")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		perf:     cfg.Perf,
		reports:  cfg.Reports,
		loc:      cfg.Location,
	}
	h.register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
