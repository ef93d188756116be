// Package server exposes the translation assistant over HTTP. Chat
// responses stream back as server-sent events.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kotoba-dev/kotoba/internal/auth"
	"github.com/kotoba-dev/kotoba/internal/compact"
	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/llmclient"
	"github.com/kotoba-dev/kotoba/internal/obs"
	"github.com/kotoba-dev/kotoba/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server hosts the chat API.
type Server struct {
	engine     *gin.Engine
	config     *config.Config
	store      *store.Store
	jwtManager *auth.JWTManager
	metrics    *obs.Metrics
	watcher    *config.Watcher
	httpServer *http.Server

	// newClient is swapped out in tests.
	newClient func(config.Provider) (llmclient.Client, error)
}

// New creates a server wired to the given config and store.
func New(cfg *config.Config, st *store.Store, metrics *obs.Metrics) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:    gin.New(),
		config:    cfg,
		store:     st,
		metrics:   metrics,
		newClient: llmclient.New,
	}
	s.engine.Use(gin.Recovery())

	if secret := cfg.Snapshot().JWTSecret; secret != "" {
		s.jwtManager = auth.NewJWTManager(secret)
	} else {
		logrus.Warn("jwt_secret is not set, API authentication is disabled")
	}

	watcher, err := config.NewWatcher(cfg)
	if err != nil {
		return nil, err
	}
	s.watcher = watcher
	s.watcher.AddCallback(func(c *config.Config) {
		snap := c.Snapshot()
		logrus.Infof("provider now %s (%s)", snap.Provider.Type, snap.Provider.Model)
	})

	s.setupRoutes()
	return s, nil
}

// Engine returns the underlying gin engine, used by handler tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1", s.authMiddleware())
	{
		v1.GET("/info", s.handleInfo)
		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions", s.handleListSessions)
		v1.DELETE("/sessions/:id", s.handleDeleteSession)
		v1.GET("/sessions/:id/messages", s.handleGetMessages)
		v1.POST("/sessions/:id/messages", s.handleChat)
	}
}

// compactor builds a compactor from the current config overrides.
func (s *Server) compactor() *compact.Compactor {
	snap := s.config.Snapshot()
	return compact.New(compact.Limits{
		HardLimit:        snap.Compaction.HardLimitBytes,
		SafetyMargin:     snap.Compaction.SafetyMargin,
		ImagesKeptInTail: snap.Compaction.ImagesKeptInTail,
		SoftFloor:        snap.Compaction.SoftFloor,
		EmergencyFloor:   snap.Compaction.EmergencyFloor,
	})
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	if err := s.watcher.Start(); err != nil {
		logrus.Warnf("config hot-reload unavailable: %v", err)
	} else {
		logrus.Info("config hot-reload enabled")
	}

	port := s.config.Snapshot().ServerPort
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: s.engine,
	}

	logrus.Infof("chat API listening on http://127.0.0.1:%d", port)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server and its config watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.watcher.Stop(); err != nil {
		logrus.Warnf("stopping config watcher: %v", err)
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
