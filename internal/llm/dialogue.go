// Package llm holds the conversation history and the language model client.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

const (
	// ClarificationMessage answers empty input
	ClarificationMessage = "I didn't catch that. Could you please repeat?"

	// ApologyMessage replaces the reply when the model call fails
	ApologyMessage = "I'm having trouble processing your request right now. Could you try again?"
)

// CustomerServicePersona is the system prompt of the spoken assistant
const CustomerServicePersona = `You are a helpful and friendly customer service assistant for a cell phone provider.
Your goal is to help customers with issues like:
- Billing questions
- Troubleshooting their mobile devices
- Explaining data plans and features
- Activating or deactivating services
- Transferring them to appropriate departments for further assistance
Maintain a polite and professional tone in your responses. Always make the customer feel valued and heard.
Keep your responses concise as they will be spoken aloud.`

// UploadPersona is the system prompt of the web upload variant
const UploadPersona = `You are a helpful and friendly customer service assistant for a cell phone provider. Your goal is to help customers with issues like:
- Billing questions
- Troubleshooting their mobile devices
- Explaining data plans and features
- Activating or deactivating services
- Transferring them to appropriate departments for further assistance.

Maintain a polite and professional tone in your responses. Always make the customer feel valued and heard.
Be concise but thorough in your response.`

// ErrEmptyInput is returned by Generate for blank user text
var ErrEmptyInput = errors.New("empty user input")

// Speaker identifies who produced a turn
type Speaker string

const (
	User      Speaker = "user"
	Assistant Speaker = "assistant"
)

// Turn is one entry of the conversation history
type Turn struct {
	Speaker Speaker
	Text    string
}

// Options configures an Engine
type Options struct {
	Persona     string
	Model       string
	Temperature float64
}

// Engine keeps the history of one conversation and produces assistant replies.
// History grows for the lifetime of the conversation. Not safe for concurrent use.
type Engine struct {
	completer Completer
	opts      Options
	logger    zerolog.Logger
	history   []Turn
}

// NewEngine creates an engine with an empty history
func NewEngine(completer Completer, opts Options, logger zerolog.Logger) *Engine {
	if opts.Persona == "" {
		opts.Persona = CustomerServicePersona
	}
	return &Engine{
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Process returns the assistant reply to userText. Empty input yields the
// clarification message and model failures yield the apology message.
func (e *Engine) Process(ctx context.Context, userText string) string {
	reply, err := e.Generate(ctx, userText)
	if errors.Is(err, ErrEmptyInput) {
		return ClarificationMessage
	}
	if err != nil {
		e.logger.Error().Err(err).Msg("Error getting LLM response")
		return ApologyMessage
	}
	return reply
}

// Generate records the user turn, asks the model for a reply and records it.
// On failure the user turn stays in history and no assistant turn is added.
func (e *Engine) Generate(ctx context.Context, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", ErrEmptyInput
	}

	req := Request{
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		System:      e.opts.Persona,
		Messages:    make([]Message, 0, len(e.history)+1),
	}
	for _, turn := range e.history {
		req.Messages = append(req.Messages, Message{Role: string(turn.Speaker), Content: turn.Text})
	}
	req.Messages = append(req.Messages, Message{Role: string(User), Content: userText})
	e.history = append(e.history, Turn{Speaker: User, Text: userText})

	start := time.Now()
	reply, err := e.completer.Complete(ctx, req)
	elapsed := time.Since(start)
	observability.RecordLLM(err == nil, elapsed)
	if err != nil {
		observability.RecordError("completion_error", "llm")
		return "", err
	}

	e.history = append(e.history, Turn{Speaker: Assistant, Text: reply})
	e.logger.Info().
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Str("model", e.opts.Model).
		Str("reply", reply).
		Msg("LLM")
	return reply, nil
}

// History returns a copy of the conversation so far
func (e *Engine) History() []Turn {
	out := make([]Turn, len(e.history))
	copy(out, e.history)
	return out
}
