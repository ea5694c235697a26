package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedListener hands out one scripted result per Listen call
type scriptedListener struct {
	mu      sync.Mutex
	script  []listenResult
	calls   int
	onEmpty func()
}

type listenResult struct {
	text  string
	err   error
	panic bool
}

func (l *scriptedListener) Listen(ctx context.Context, onUtterance func(string)) error {
	l.mu.Lock()
	l.calls++
	if len(l.script) == 0 {
		l.mu.Unlock()
		if l.onEmpty != nil {
			l.onEmpty()
		}
		<-ctx.Done()
		return ctx.Err()
	}
	next := l.script[0]
	l.script = l.script[1:]
	l.mu.Unlock()

	if next.panic {
		panic("listener exploded")
	}
	if next.err != nil {
		return next.err
	}
	if next.text != "" {
		onUtterance(next.text)
	}
	return nil
}

type recordingResponder struct {
	mu    sync.Mutex
	seen  []string
	reply string
}

func (r *recordingResponder) Process(_ context.Context, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, text)
	if r.reply != "" {
		return r.reply
	}
	return "reply to " + text
}

func (r *recordingResponder) inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
	failOn map[string]error
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	if err, ok := s.failOn[text]; ok {
		return err
	}
	return nil
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func TestIsExitPhrase(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"bye", true},
		{"Bye", true},
		{" bye ", true},
		{"BYE", true},
		{"Goodbye", true},
		{"exit", true},
		{"quit\n", true},
		{"goodbye friend", false},
		{"bye.", false},
		{"", false},
		{"I want to quit my plan", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExitPhrase(tt.in))
		})
	}
}

func TestRun_PlansScenario(t *testing.T) {
	listener := &scriptedListener{script: []listenResult{
		{text: "What plans do you offer?"},
		{text: "bye"},
	}}
	responder := &recordingResponder{reply: "We have unlimited and family plans."}
	speaker := &recordingSpeaker{}
	c := NewController(listener, responder, speaker, zerolog.Nop())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"What plans do you offer?"}, responder.inputs())
	assert.Equal(t, []string{Greeting, "We have unlimited and family plans.", Farewell}, speaker.said())
	assert.Equal(t, PhaseTerminated, c.Phase())
	assert.NotEmpty(t, c.ID())
}

func TestRun_ExitPhraseSkipsGeneration(t *testing.T) {
	listener := &scriptedListener{script: []listenResult{{text: " BYE "}}}
	responder := &recordingResponder{}
	speaker := &recordingSpeaker{}
	c := NewController(listener, responder, speaker, zerolog.Nop())

	require.NoError(t, c.Run(context.Background()))

	assert.Empty(t, responder.inputs())
	assert.Equal(t, []string{Greeting, Farewell}, speaker.said())
}

func TestRun_NonExactExitPhraseIsAnswered(t *testing.T) {
	listener := &scriptedListener{script: []listenResult{
		{text: "goodbye friend"},
		{text: "quit"},
	}}
	responder := &recordingResponder{}
	speaker := &recordingSpeaker{}
	c := NewController(listener, responder, speaker, zerolog.Nop())

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"goodbye friend"}, responder.inputs())
}

func TestRun_EmptyUtteranceLoopsWithoutGenerating(t *testing.T) {
	listener := &scriptedListener{script: []listenResult{
		{text: ""},
		{text: ""},
		{text: "exit"},
	}}
	responder := &recordingResponder{}
	c := NewController(listener, responder, &recordingSpeaker{}, zerolog.Nop())

	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, responder.inputs())
	assert.Equal(t, 3, listener.calls)
}

func TestRun_InterruptWithoutFarewell(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	listener := &scriptedListener{
		script:  []listenResult{{text: "Is my bill paid?"}},
		onEmpty: cancel,
	}
	speaker := &recordingSpeaker{}
	c := NewController(listener, &recordingResponder{}, speaker, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.NotContains(t, speaker.said(), Farewell)
	assert.Equal(t, PhaseTerminated, c.Phase())
}

func TestRun_ErrorsDoNotEndTheLoop(t *testing.T) {
	listener := &scriptedListener{script: []listenResult{
		{err: errors.New("socket reset")},
		{panic: true},
		{text: "my phone is broken"},
		{text: "can you help"},
		{text: "goodbye"},
	}}
	responder := &recordingResponder{}
	speaker := &recordingSpeaker{failOn: map[string]error{
		Greeting:                      errors.New("player crashed"),
		"reply to my phone is broken": errors.New("speak API returned status 500"),
	}}
	c := NewController(listener, responder, speaker, zerolog.Nop())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"my phone is broken", "can you help"}, responder.inputs())
	assert.Equal(t, []string{
		Greeting,
		"reply to my phone is broken",
		"reply to can you help",
		Farewell,
	}, speaker.said())
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	listener := &scriptedListener{}
	c := NewController(listener, &recordingResponder{}, &recordingSpeaker{}, zerolog.Nop())

	require.ErrorIs(t, c.Run(ctx), context.Canceled)
	assert.Zero(t, listener.calls)
}

func TestRun_LogsCarryConversationID(t *testing.T) {
	var buf bytes.Buffer
	listener := &scriptedListener{script: []listenResult{{text: "bye"}}}
	c := NewController(listener, &recordingResponder{}, &recordingSpeaker{}, zerolog.New(&buf))

	require.NoError(t, c.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, c.ID(), entry["correlation_id"])
	}
}
