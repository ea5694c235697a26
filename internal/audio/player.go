package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// ErrPlayerUnavailable is returned when the playback backend cannot be started
var ErrPlayerUnavailable = errors.New("audio player unavailable")

// Player starts playback sinks
type Player interface {
	Start(ctx context.Context) (Sink, error)
}

// Sink accepts encoded audio for immediate playback
type Sink interface {
	io.Writer

	// Close ends the input stream and waits for playback to finish
	Close() error

	// Abort stops playback immediately and reaps the backend
	Abort() error
}

// ProcessPlayer plays audio by piping it into an external process's stdin
type ProcessPlayer struct {
	Command string
	Args    []string
}

// NewFFplay returns a player that streams into ffplay without a display window
func NewFFplay(command string) *ProcessPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &ProcessPlayer{
		Command: command,
		Args:    []string{"-autoexit", "-nodisp", "-loglevel", "quiet", "-"},
	}
}

// Available reports whether the player binary is on PATH
func (p *ProcessPlayer) Available() bool {
	_, err := exec.LookPath(p.Command)
	return err == nil
}

// Start spawns the player process. The process is killed if ctx is cancelled.
func (p *ProcessPlayer) Start(ctx context.Context) (Sink, error) {
	path, err := exec.LookPath(p.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrPlayerUnavailable, p.Command, err)
	}

	cmd := exec.CommandContext(ctx, path, p.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrPlayerUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrPlayerUnavailable, p.Command, err)
	}

	return &processSink{cmd: cmd, stdin: stdin}, nil
}

type processSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	once sync.Once
	err  error
}

func (s *processSink) Write(p []byte) (int, error) {
	n, err := s.stdin.Write(p)
	if n > 0 {
		RecordPlayback(n)
	}
	return n, err
}

func (s *processSink) Close() error {
	s.once.Do(func() {
		_ = s.stdin.Close()
		s.err = s.cmd.Wait()
	})
	return s.err
}

func (s *processSink) Abort() error {
	s.once.Do(func() {
		_ = s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		// the exit status of a killed player is not interesting
		_ = s.cmd.Wait()
	})
	return nil
}
