package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamebus/config"
	"gamebus/internal/auth"
	"gamebus/internal/middleware"
	"gamebus/internal/websocket"
	"gamebus/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	bus        Bus
	onShutdown []func(context.Context) error
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

const shutdownTimeout = 5 * time.Second

func New(cfg *config.Config, l *logger.Logger) *Server {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// SetupRoutes mounts the relay endpoints over b. Websocket subscribers are
// served from hub, which the caller feeds through a websocket.Bridge.
func (s *Server) SetupRoutes(b Bus, hub *websocket.Hub, tokens *auth.TokenService) {
	s.bus = b
	h := &handlers{bus: b, logger: s.logger}
	ws := websocket.NewHandler(hub, b, s.logger)

	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", h.ping)
	s.engine.GET("/health", h.health)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/channels/:channel/messages", middleware.AuthMiddleware(tokens, auth.ScopePublish), h.publish)
		v1.GET("/ws", middleware.AuthMiddleware(tokens, auth.ScopeSubscribe), ws.Connect(middleware.ClaimsKey))
	}
}

// OnShutdown registers fn to run after the HTTP server has drained.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Error in starting the server: %s", err)
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	s.logger.Infof("Server is running on :%s", s.config.AppPort)

	select {
	case err := <-errCh:
		s.runShutdownHooks()
		return err
	case <-quit:
	}

	s.logger.Infof("Quitting signal received.. Shutting down")
	return s.Shutdown()
}

// Shutdown drains the HTTP server and then runs the shutdown hooks.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		errs = append(errs, err)
	}
	if err := s.runShutdownHooksCtx(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		s.logger.Infof("Server stopped gracefully")
	}
	return errors.Join(errs...)
}

func (s *Server) runShutdownHooks() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.runShutdownHooksCtx(ctx)
}

func (s *Server) runShutdownHooksCtx(ctx context.Context) error {
	var errs []error
	for _, fn := range s.onShutdown {
		if err := fn(ctx); err != nil {
			s.logger.Errorf("shutdown hook failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
