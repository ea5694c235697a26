package stt

import (
	"context"
	"errors"
	"io"
)

// ErrConnectionClosed is reported when the provider closes the socket before an utterance completes
var ErrConnectionClosed = errors.New("transcription connection closed")

// Event is one recognition result from a live transcription stream
type Event struct {
	// Alternatives holds candidate transcripts, best first
	Alternatives []string

	// IsFinal marks the end of an utterance (endpoint detected)
	IsFinal bool
}

// Handler receives events from a live connection.
// Calls for one connection are never concurrent.
type Handler interface {
	OnEvent(Event)
	OnError(error)
}

// Connection is an open live transcription session; audio is written to it
type Connection interface {
	io.Writer

	// Close finishes the session and releases the socket
	Close() error
}

// Provider opens live transcription sessions
type Provider interface {
	Open(ctx context.Context, h Handler) (Connection, error)
}

// FileTranscriber transcribes a complete recording
type FileTranscriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}
