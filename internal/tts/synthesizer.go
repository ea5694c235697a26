// Package tts turns assistant replies into audible speech.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
)

const chunkSize = 1024

// Synthesizer streams synthesized speech into a local player
type Synthesizer struct {
	provider Provider
	player   audio.Player
	voice    string
	logger   zerolog.Logger

	mu            sync.Mutex
	lastFirstByte time.Duration
}

// NewSynthesizer creates a synthesizer speaking with the given voice model
func NewSynthesizer(provider Provider, player audio.Player, voice string, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		player:   player,
		voice:    voice,
		logger:   logger,
	}
}

// LastFirstByte returns the time to first audio byte of the last successful Speak
func (s *Synthesizer) LastFirstByte() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFirstByte
}

// Speak plays text through the player and returns once playback has finished.
// Blank text is a no-op. If the player cannot be started a warning is logged
// and nothing is synthesized. The player process is reaped on every path.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sink, err := s.player.Start(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Audio playback unavailable, skipping speech")
		observability.RecordError("player_unavailable", "tts")
		return nil
	}

	start := time.Now()
	err = s.stream(ctx, text, sink, start)
	observability.RecordTTS(err == nil, time.Since(start))
	if err != nil {
		_ = sink.Abort()
		observability.RecordError("synthesis_error", "tts")
		return err
	}

	if err := sink.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Player exited with error")
	}
	return nil
}

func (s *Synthesizer) stream(ctx context.Context, text string, sink audio.Sink, start time.Time) error {
	body, err := s.provider.Stream(ctx, SynthesisRequest{Text: text, Model: s.voice})
	if err != nil {
		return err
	}
	defer body.Close()

	buf := make([]byte, chunkSize)
	first := true
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if first {
				ttfb := time.Since(start)
				first = false
				s.mu.Lock()
				s.lastFirstByte = ttfb
				s.mu.Unlock()
				observability.RecordTTSFirstByte(ttfb)
				s.logger.Info().Int64("ttfb_ms", ttfb.Milliseconds()).Msg("Time to First Byte")
			}
			if _, err := sink.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write audio to player: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read synthesized audio: %w", readErr)
		}
	}
}
