// Package mic captures 16-bit PCM from the default input device via PortAudio.
package mic

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Microphone streams little-endian PCM16 from the default input device.
// Only one Stream call may be active at a time.
type Microphone struct {
	sampleRate      int
	channels        int
	framesPerBuffer int
	logger          zerolog.Logger

	mu        sync.Mutex
	streaming bool
}

// Init initializes PortAudio. The returned func terminates it.
func Init() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return func() { _ = portaudio.Terminate() }, nil
}

// New creates a microphone source; Init must have been called.
func New(sampleRate, channels, framesPerBuffer int, logger zerolog.Logger) *Microphone {
	if framesPerBuffer <= 0 {
		framesPerBuffer = sampleRate / 10
	}
	return &Microphone{
		sampleRate:      sampleRate,
		channels:        channels,
		framesPerBuffer: framesPerBuffer,
		logger:          logger,
	}
}

// Stream opens the device and copies audio into w until ctx is done.
// The device is always closed before Stream returns.
func (m *Microphone) Stream(ctx context.Context, w io.Writer) error {
	m.mu.Lock()
	if m.streaming {
		m.mu.Unlock()
		return fmt.Errorf("microphone is already streaming")
	}
	m.streaming = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.streaming = false
		m.mu.Unlock()
	}()

	in := make([]int16, m.framesPerBuffer*m.channels)
	stream, err := portaudio.OpenDefaultStream(m.channels, 0, float64(m.sampleRate), m.framesPerBuffer, in)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	defer stream.Stop()

	m.logger.Debug().
		Int("sample_rate", m.sampleRate).
		Int("channels", m.channels).
		Int("frames_per_buffer", m.framesPerBuffer).
		Msg("Microphone opened")

	buf := make([]byte, len(in)*2)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := stream.Read(); err != nil {
			// overflow drops a buffer but the stream stays usable
			if err == portaudio.InputOverflowed {
				m.logger.Debug().Msg("Microphone input overflowed")
				continue
			}
			return fmt.Errorf("failed to read input stream: %w", err)
		}
		for i, s := range in {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to forward microphone audio: %w", err)
		}
	}
}
