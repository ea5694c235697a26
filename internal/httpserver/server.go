// Package httpserver wires the upload API, static audio and operational endpoints.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
)

// Route registers handlers on the server
type Route interface {
	Register(e *echo.Echo)
}

// AudioDir returns the directory generated replies are written to
func AudioDir(cfg *config.Config) string {
	return filepath.Join(cfg.StaticDir, "audio")
}

// New creates a configured Echo server instance
func New(cfg *config.Config, logger zerolog.Logger, checks map[string]observability.HealthCheckFunc, routes ...Route) (*echo.Echo, error) {
	if err := os.MkdirAll(AudioDir(cfg), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	e.Static("/static", cfg.StaticDir)

	if checks == nil {
		checks = map[string]observability.HealthCheckFunc{}
	}
	checks["static_dir"] = writableDir(AudioDir(cfg))

	e.GET("/health", echo.WrapHandler(observability.HealthCheckHandler()))
	e.GET("/ready", echo.WrapHandler(observability.ReadinessHandler(checks)))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	for _, r := range routes {
		r.Register(e)
	}
	return e, nil
}

// NewHTTPServer wraps handler in an http.Server with timeouts
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func writableDir(dir string) observability.HealthCheckFunc {
	return func(ctx context.Context) (bool, error) {
		f, err := os.CreateTemp(dir, ".ready-*")
		if err != nil {
			return false, err
		}
		name := f.Name()
		f.Close()
		return true, os.Remove(name)
	}
}
