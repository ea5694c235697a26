package stt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/transcript"
)

// State is the lifecycle stage of a listen
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateUtteranceReady
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateUtteranceReady:
		return "utterance_ready"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Capture feeds microphone audio to a live provider and returns one utterance per Listen
type Capture struct {
	provider Provider
	source   audio.Source
	logger   zerolog.Logger

	mu    sync.RWMutex
	state State
}

// NewCapture creates a capture over the given provider and audio source
func NewCapture(provider Provider, source audio.Source, logger zerolog.Logger) *Capture {
	return &Capture{
		provider: provider,
		source:   source,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current lifecycle stage
func (c *Capture) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Capture) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.logger.Debug().Str("state", s.String()).Msg("Capture state")
}

// Listen blocks until one non-empty utterance has been passed to onUtterance,
// the provider or microphone fails, or ctx is done. Provider and microphone
// failures are logged and reported as a listen without utterance (nil); only
// cancellation returns an error. The microphone and socket are released before
// Listen returns.
func (c *Capture) Listen(ctx context.Context, onUtterance func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	session := newListenSession(onUtterance, c.logger)

	c.setState(StateConnecting)
	c.logger.Info().Msg("Listening...")
	conn, err := c.provider.Open(ctx, session)
	if err != nil {
		c.setState(StateError)
		defer c.setState(StateClosed)
		if ctx.Err() != nil {
			observability.RecordListen("cancelled", time.Since(start))
			return ctx.Err()
		}
		c.logger.Error().Err(err).Msg("Could not open transcription socket")
		observability.RecordError("connect_error", "stt")
		observability.RecordListen("error", time.Since(start))
		return nil
	}

	c.setState(StateStreaming)
	micCtx, stopMic := context.WithCancel(ctx)
	micDone := make(chan error, 1)
	go func() {
		micDone <- c.source.Stream(micCtx, audio.LevelMeter{W: conn})
	}()

	var result error
	status := "utterance"
	micExited := false

	select {
	case <-session.done:
		c.setState(StateUtteranceReady)

	case err := <-session.failed:
		c.setState(StateError)
		status = "error"
		c.logger.Error().Err(err).Msg("Error in speech recognition")
		observability.RecordError("provider_error", "stt")

	case err := <-micDone:
		micExited = true
		if ctx.Err() != nil {
			result = ctx.Err()
			status = "cancelled"
			break
		}
		c.setState(StateError)
		status = "error"
		c.logger.Error().Err(err).Msg("Microphone stopped")
		observability.RecordError("microphone_error", "stt")

	case <-ctx.Done():
		result = ctx.Err()
		status = "cancelled"
	}

	stopMic()
	if !micExited {
		if err := <-micDone; err != nil && status == "utterance" {
			c.logger.Debug().Err(err).Msg("Microphone returned error on shutdown")
		}
	}
	if err := conn.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("Error closing transcription socket")
	}
	session.close()
	c.setState(StateClosed)
	observability.RecordListen(status, time.Since(start))

	return result
}

// listenSession assembles fragments for one Listen call
type listenSession struct {
	mu          sync.Mutex
	acc         *transcript.Accumulator
	delivered   bool
	closed      bool
	onUtterance func(string)
	logger      zerolog.Logger

	done   chan struct{}
	failed chan error
}

func newListenSession(onUtterance func(string), logger zerolog.Logger) *listenSession {
	return &listenSession{
		acc:         transcript.New(),
		onUtterance: onUtterance,
		logger:      logger,
		done:        make(chan struct{}),
		failed:      make(chan error, 1),
	}
}

func (s *listenSession) OnEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.delivered || len(ev.Alternatives) == 0 {
		return
	}

	s.acc.Add(ev.Alternatives[0])
	if !ev.IsFinal {
		return
	}

	text := s.acc.FullText()
	s.acc.Reset()
	if strings.TrimSpace(text) == "" {
		return
	}

	s.delivered = true
	s.logger.Info().Str("transcript", text).Msg("Human")
	if s.onUtterance != nil {
		s.onUtterance(text)
	}
	close(s.done)
}

func (s *listenSession) OnError(err error) {
	s.mu.Lock()
	ignore := s.closed || s.delivered
	s.mu.Unlock()
	if ignore {
		return
	}

	select {
	case s.failed <- err:
	default:
	}
}

// close waits for an in-flight event to finish and drops everything after it,
// so onUtterance never runs once Listen has returned
func (s *listenSession) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
