package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/httpserver"
	"github.com/lexiqai/voice-assistant/internal/llm"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
	"github.com/lexiqai/voice-assistant/internal/upload"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("llm_model", cfg.UploadModel).
		Str("voice", cfg.UploadVoice).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice upload service starting")

	groq := llm.NewGroqClient(cfg)
	engineLogger := observability.Component("llm")
	newEngine := func() upload.Generator {
		return llm.NewEngine(groq, llm.Options{
			Persona:     llm.UploadPersona,
			Model:       cfg.UploadModel,
			Temperature: cfg.UploadTemperature,
		}, engineLogger)
	}

	handler := upload.NewHandler(
		stt.NewDeepgramFile(cfg),
		newEngine,
		tts.NewDeepgramSpeak(cfg),
		upload.Options{Voice: cfg.UploadVoice, AudioDir: httpserver.AudioDir(cfg)},
		observability.Component("upload"),
	)

	// Readiness checks only validate configuration to avoid API costs
	checks := map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("deepgram api key not configured")
			}
			return true, nil
		},
		"groq": func(ctx context.Context) (bool, error) {
			if cfg.GroqAPIKey == "" {
				return false, fmt.Errorf("groq api key not configured")
			}
			return true, nil
		},
	}

	e, err := httpserver.New(cfg, observability.Component("http"), checks, handler)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}
	server := httpserver.NewHTTPServer(cfg, e)

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/process-audio", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
