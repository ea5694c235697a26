// Package conversation drives the spoken listen, reply and speak loop.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

const (
	Greeting = "Hello! I'm your cell phone provider's virtual assistant. How can I help you today?"
	Farewell = "Thank you for contacting customer service. Have a great day!"
)

var exitPhrases = map[string]struct{}{
	"goodbye": {},
	"exit":    {},
	"quit":    {},
	"bye":     {},
}

// IsExitPhrase reports whether the whole utterance asks to end the conversation
func IsExitPhrase(utterance string) bool {
	_, ok := exitPhrases[strings.ToLower(strings.TrimSpace(utterance))]
	return ok
}

// Listener captures one user utterance
type Listener interface {
	Listen(ctx context.Context, onUtterance func(string)) error
}

// Responder produces the assistant reply to an utterance
type Responder interface {
	Process(ctx context.Context, userText string) string
}

// Speaker plays text aloud and returns when playback is finished
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Phase is the step of the loop the controller is in
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGreeting   Phase = "greeting"
	PhaseListening  Phase = "listening"
	PhaseGenerating Phase = "generating"
	PhaseSpeaking   Phase = "speaking"
	PhaseTerminated Phase = "terminated"
)

// Controller sequences one conversation
type Controller struct {
	listener  Listener
	responder Responder
	speaker   Speaker

	conversationID string
	logger         zerolog.Logger
	metrics        *observability.Metrics

	mu    sync.RWMutex
	phase Phase
}

// NewController creates a controller for a fresh conversation
func NewController(listener Listener, responder Responder, speaker Speaker, logger zerolog.Logger) *Controller {
	conversationID := observability.NewCorrelationID()
	return &Controller{
		listener:       listener,
		responder:      responder,
		speaker:        speaker,
		conversationID: conversationID,
		logger:         observability.WithCorrelationID(logger, conversationID),
		metrics:        observability.NewConversationMetrics(conversationID),
		phase:          PhaseIdle,
	}
}

// ID returns the conversation identifier used in logs and metrics
func (c *Controller) ID() string {
	return c.conversationID
}

// Phase returns the current step of the loop
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Run greets the user and loops until an exit phrase is heard or ctx is done.
// It returns nil after the farewell and ctx.Err() on interruption, in which
// case no farewell is spoken. Failures inside a turn are logged and the loop
// continues.
func (c *Controller) Run(ctx context.Context) error {
	c.metrics.RecordConversationStart()
	defer c.metrics.RecordConversationEnd()
	defer c.setPhase(PhaseTerminated)

	c.logger.Info().Msg("Conversation started")

	c.setPhase(PhaseGreeting)
	c.logger.Info().Str("text", Greeting).Msg("AI")
	if err := c.speaker.Speak(ctx, Greeting); err != nil {
		if ctx.Err() != nil {
			return c.interrupted(ctx)
		}
		c.logger.Error().Err(err).Msg("Failed to speak greeting")
	}

	for {
		if ctx.Err() != nil {
			return c.interrupted(ctx)
		}

		done, err := c.turn(ctx)
		if err != nil {
			return c.interrupted(ctx)
		}
		if done {
			c.logger.Info().Msg("Conversation ended by user")
			return nil
		}
	}
}

func (c *Controller) interrupted(ctx context.Context) error {
	c.logger.Info().Msg("Conversation interrupted")
	return ctx.Err()
}

// turn runs one listen, reply and speak cycle. It returns done when the user
// asked to leave and a non-nil error only when ctx is done.
func (c *Controller) turn(ctx context.Context) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Error in conversation turn")
			observability.RecordError("panic", "conversation")
			c.metrics.RecordTurn("error")
			done, err = false, nil
			if ctx.Err() != nil {
				err = ctx.Err()
			}
		}
	}()

	c.setPhase(PhaseListening)
	var utterance string
	if err := c.listener.Listen(ctx, func(text string) { utterance = text }); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Error().Err(err).Msg("Error while listening")
		c.metrics.RecordTurn("error")
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if strings.TrimSpace(utterance) == "" {
		c.metrics.RecordTurn("empty")
		return false, nil
	}

	if IsExitPhrase(utterance) {
		c.setPhase(PhaseSpeaking)
		c.logger.Info().Str("text", Farewell).Msg("AI")
		if err := c.speaker.Speak(ctx, Farewell); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.logger.Error().Err(err).Msg("Failed to speak farewell")
		}
		c.metrics.RecordTurn("exit")
		return true, nil
	}

	c.setPhase(PhaseGenerating)
	reply := c.responder.Process(ctx, utterance)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	c.setPhase(PhaseSpeaking)
	c.logger.Info().Str("text", reply).Msg("AI")
	if err := c.speaker.Speak(ctx, reply); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Error().Err(err).Msg("Error speaking reply")
		c.metrics.RecordTurn("error")
		return false, nil
	}

	c.metrics.RecordTurn("reply")
	return false, nil
}
