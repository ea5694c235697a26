// Package upload answers recorded customer questions with a synthesized reply.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

// FormField is the multipart field holding the recording
const FormField = "audio"

// Generator produces one reply for a transcript
type Generator interface {
	Generate(ctx context.Context, userText string) (string, error)
}

// Renderer writes synthesized speech to a file
type Renderer interface {
	Save(ctx context.Context, req tts.SynthesisRequest, path string) error
}

// Response is the body of a successful upload
type Response struct {
	Transcript   string `json:"transcript"`
	TextResponse string `json:"text_response"`
	AudioURL     string `json:"audio_url"`
}

// ErrorResponse is the body of a failed upload
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Handler serves POST /process-audio
type Handler struct {
	transcriber stt.FileTranscriber
	newEngine   func() Generator
	renderer    Renderer
	voice       string
	audioDir    string
	audioURL    string
	logger      zerolog.Logger
}

// Options configures where generated replies are written and served from
type Options struct {
	Voice    string
	AudioDir string
	AudioURL string
}

// NewHandler creates an upload handler. newEngine is called once per request
// so every upload is answered without earlier context.
func NewHandler(transcriber stt.FileTranscriber, newEngine func() Generator, renderer Renderer, opts Options, logger zerolog.Logger) *Handler {
	if opts.AudioURL == "" {
		opts.AudioURL = "/static/audio"
	}
	return &Handler{
		transcriber: transcriber,
		newEngine:   newEngine,
		renderer:    renderer,
		voice:       opts.Voice,
		audioDir:    opts.AudioDir,
		audioURL:    strings.TrimRight(opts.AudioURL, "/"),
		logger:      logger,
	}
}

// Register mounts the handler on e
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/process-audio", h.ProcessAudio)
}

// ProcessAudio transcribes the uploaded recording, generates a reply and renders it to a WAV file
func (h *Handler) ProcessAudio(c echo.Context) error {
	ctx := c.Request().Context()
	requestID := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(h.logger, requestID)

	fh, err := c.FormFile(FormField)
	if err != nil {
		logger.Warn().Err(err).Msg("Upload without audio file")
		return h.fail(c, http.StatusBadRequest, "Missing audio file")
	}

	tmpPath, err := saveTemp(fh)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to store upload")
		return h.fail(c, http.StatusInternalServerError, err.Error())
	}
	defer os.Remove(tmpPath)

	transcript, err := h.transcribe(ctx, tmpPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		return h.fail(c, http.StatusInternalServerError, err.Error())
	}
	if strings.TrimSpace(transcript) == "" {
		return h.fail(c, http.StatusBadRequest, "Failed to transcribe audio")
	}
	logger.Info().Str("transcript", transcript).Msg("Human")

	reply, err := h.newEngine().Generate(ctx, transcript)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate response")
		return h.fail(c, http.StatusInternalServerError, err.Error())
	}

	name := fmt.Sprintf("response-%s.wav", uuid.New().String())
	if err := h.renderer.Save(ctx, tts.SynthesisRequest{Text: reply, Model: h.voice}, filepath.Join(h.audioDir, name)); err != nil {
		logger.Error().Err(err).Msg("Failed to synthesize response")
		return h.fail(c, http.StatusInternalServerError, err.Error())
	}

	logger.Info().Str("file", name).Msg("Upload answered")
	observability.RecordUpload(http.StatusOK)
	return c.JSON(http.StatusOK, Response{
		Transcript:   transcript,
		TextResponse: reply,
		AudioURL:     path.Join(h.audioURL, name),
	})
}

func (h *Handler) transcribe(ctx context.Context, tmpPath string, logger zerolog.Logger) (string, error) {
	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	info, err := audio.InspectWAV(f)
	switch {
	case err == nil:
		observability.RecordUploadAudio(info.Duration)
		logger.Debug().
			Int("sample_rate", info.SampleRate).
			Int("channels", info.Channels).
			Dur("duration", info.Duration).
			Msg("Received WAV upload")
	case errors.Is(err, audio.ErrRewind):
		return "", err
	case errors.Is(err, audio.ErrNotWAV):
		logger.Debug().Msg("Upload is not WAV, passing through")
	default:
		logger.Warn().Err(err).Msg("Malformed WAV upload, passing through")
	}

	return h.transcriber.Transcribe(ctx, f)
}

func (h *Handler) fail(c echo.Context, code int, detail string) error {
	observability.RecordUpload(code)
	if code >= http.StatusInternalServerError {
		observability.RecordError("upload_error", "upload")
	}
	return c.JSON(code, ErrorResponse{Detail: detail})
}

func saveTemp(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "upload-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dst.Name(), nil
}
