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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/conversation"
	"github.com/lexiqai/voice-assistant/internal/llm"
	"github.com/lexiqai/voice-assistant/internal/mic"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("stt_model", cfg.DeepgramModel).
		Str("llm_model", cfg.GroqModel).
		Str("voice", cfg.TTSVoice).
		Int("sample_rate", cfg.SampleRate).
		Msg("Voice assistant starting")

	terminate, err := mic.Init()
	if err != nil {
		logger.Fatal().Err(err).Msg("Audio input unavailable")
	}
	defer terminate()

	player := audio.NewFFplay(cfg.PlayerCommand)
	if !player.Available() {
		logger.Warn().Str("command", cfg.PlayerCommand).Msg("Player not found, replies will not be audible")
	}

	capture := stt.NewCapture(
		stt.NewDeepgramLive(cfg),
		mic.New(cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer, observability.Component("mic")),
		observability.Component("stt"),
	)
	engine := llm.NewEngine(
		llm.NewGroqClient(cfg),
		llm.Options{Persona: llm.CustomerServicePersona, Model: cfg.GroqModel, Temperature: cfg.GroqTemperature},
		observability.Component("llm"),
	)
	synth := tts.NewSynthesizer(tts.NewDeepgramSpeak(cfg), player, cfg.TTSVoice, observability.Component("tts"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled && cfg.MetricsPort != "" {
		metricsServer := startMetrics(cfg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	controller := conversation.NewController(capture, engine, synth, observability.Component("conversation"))
	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Conversation ended with error")
		return
	}

	logger.Info().Str("conversation_id", controller.ID()).Msg("Voice assistant stopped")
}

func startMetrics(cfg *config.Config) *http.Server {
	logger := observability.GetLogger()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("port", cfg.MetricsPort).Msg("Prometheus metrics enabled at /metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}
