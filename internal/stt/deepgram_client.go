package stt

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/lexiqai/voice-assistant/internal/config"
)

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler // Embed default handler for methods we don't override
	handler                                Handler
	conn                                   *deepgramConnection
}

// Message converts a transcript result into an Event
func (m *messageCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil {
		return nil
	}
	m.handler.OnEvent(eventFromMessage(msg))
	return nil
}

// Error forwards provider errors to the handler
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.handler.OnError(fmt.Errorf("deepgram error: %+v", errorResponse))
	return nil
}

// Close reports a server-side close that we did not initiate
func (m *messageCallbackHandler) Close(*msginterfaces.CloseResponse) error {
	if !m.conn.closing.Load() {
		m.handler.OnError(ErrConnectionClosed)
	}
	return nil
}

// eventFromMessage maps a Deepgram result. speech_final, not is_final, ends an utterance:
// with endpointing enabled every segment is final but only the last one closes the utterance.
func eventFromMessage(msg *msginterfaces.MessageResponse) Event {
	ev := Event{IsFinal: msg.SpeechFinal}
	for _, alt := range msg.Channel.Alternatives {
		ev.Alternatives = append(ev.Alternatives, alt.Transcript)
	}
	return ev
}

// DeepgramLive opens Deepgram streaming transcription sessions
type DeepgramLive struct {
	apiKey        string
	clientOptions *interfaces.ClientOptions
	options       *interfaces.LiveTranscriptionOptions
}

// NewDeepgramLive creates a live provider configured for raw microphone PCM
func NewDeepgramLive(cfg *config.Config) *DeepgramLive {
	return &DeepgramLive{
		apiKey: cfg.DeepgramAPIKey,
		clientOptions: &interfaces.ClientOptions{
			EnableKeepAlive: true,
		},
		options: &interfaces.LiveTranscriptionOptions{
			Model:       cfg.DeepgramModel,
			Language:    cfg.DeepgramLanguage,
			Punctuate:   true,
			SmartFormat: true,
			Encoding:    cfg.Encoding,
			Channels:    cfg.Channels,
			SampleRate:  cfg.SampleRate,
			Endpointing: cfg.DeepgramEndpointing,
		},
	}
}

// Open connects a new websocket session; events are delivered to h
func (d *DeepgramLive) Open(ctx context.Context, h Handler) (Connection, error) {
	conn := &deepgramConnection{}
	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                h,
		conn:                   conn,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.apiKey, d.clientOptions, d.options, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, fmt.Errorf("failed to connect to Deepgram")
	}

	conn.client = client
	return conn, nil
}

type deepgramConnection struct {
	client  *listenClient.WSCallback
	closing atomic.Bool
}

func (c *deepgramConnection) Write(p []byte) (int, error) {
	return c.client.Write(p)
}

func (c *deepgramConnection) Close() error {
	if c.closing.Swap(true) {
		return nil
	}
	c.client.Finish()
	return nil
}

// DeepgramFile transcribes complete recordings with Deepgram's prerecorded API
type DeepgramFile struct {
	client  *prerecorded.Client
	options *interfaces.PreRecordedTranscriptionOptions
}

// NewDeepgramFile creates a prerecorded transcriber
func NewDeepgramFile(cfg *config.Config) *DeepgramFile {
	c := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	return &DeepgramFile{
		client: prerecorded.New(c),
		options: &interfaces.PreRecordedTranscriptionOptions{
			Model:       cfg.DeepgramModel,
			Language:    cfg.DeepgramLanguage,
			SmartFormat: true,
		},
	}
}

// Transcribe returns the best transcript of the first channel, or "" if there is none
func (d *DeepgramFile) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	res, err := d.client.FromStream(ctx, audio, d.options)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription failed: %w", err)
	}
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return "", nil
	}
	alts := res.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return "", nil
	}
	return alts[0].Transcript, nil
}
