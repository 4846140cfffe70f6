package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/notsingle/internal/api/auth"
	"github.com/notsingle/internal/batch"
	"github.com/notsingle/internal/relationships"
)

// Dispatcher runs one dispatch over the awake personas
type Dispatcher interface {
	Dispatch(ctx context.Context, now time.Time) (*batch.Report, error)
}

// Options configures the API server
type Options struct {
	Port       int
	CronSecret string
	JWTSecret  string
}

// Deps are the services behind the routes
type Deps struct {
	Dispatcher    Dispatcher
	Runner        batch.CycleRunner
	Relationships *relationships.Service
	Now           func() time.Time
}

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	port   int
	deps   Deps
	tokens *auth.TokenService
	cron   string
}

// NewServer creates a new API server
func NewServer(opts Options, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if deps.Now == nil {
		deps.Now = time.Now
	}
	server := &Server{
		echo:   e,
		port:   opts.Port,
		deps:   deps,
		tokens: auth.NewTokenService(opts.JWTSecret),
		cron:   opts.CronSecret,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	api := s.echo.Group("/api")

	scheduler := api.Group("", auth.RequireCronSecret(s.cron))
	scheduler.POST("/cron/dispatch", s.dispatch)
	scheduler.POST("/agent/run/:personaId", s.runAgent)

	user := api.Group("", auth.RequireAuth(s.tokens))
	user.GET("/conversations/:matchId", s.getConversation)
	user.POST("/conversations/:matchId/message", s.postHumanMessage)
	user.POST("/matches/:matchId/block", s.blockMatch)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(shutdownCtx)
}
