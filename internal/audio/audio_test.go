package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestCalculateRMS(t *testing.T) {
	require.Equal(t, 0.0, CalculateRMS(nil))
	require.InDelta(t, 1000.0, CalculateRMS([]int16{1000, -1000, 1000, -1000}), 0.001)
}

func TestPCM16Samples(t *testing.T) {
	samples := PCM16Samples(append(pcm16(0, 1000, -1000, 32767, -32768), 0x7f))
	require.Equal(t, []int16{0, 1000, -1000, 32767, -32768}, samples)
}

func TestLevelMeter_Forwards(t *testing.T) {
	var buf bytes.Buffer
	data := pcm16(500, -500)
	n, err := LevelMeter{W: &buf}.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf.Bytes())
}

func TestProcessPlayer_Missing(t *testing.T) {
	p := &ProcessPlayer{Command: "definitely-not-an-audio-player"}
	require.False(t, p.Available())

	_, err := p.Start(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPlayerUnavailable))
}

func TestProcessPlayer_CloseWaits(t *testing.T) {
	p := &ProcessPlayer{Command: "cat"}
	if !p.Available() {
		t.Skip("cat not available")
	}

	sink, err := p.Start(context.Background())
	require.NoError(t, err)

	_, err = sink.Write([]byte("RIFF....WAVE"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	// second close reports the same result
	require.NoError(t, sink.Close())
}

func TestProcessPlayer_AbortTerminates(t *testing.T) {
	p := &ProcessPlayer{Command: "sleep", Args: []string{"30"}}
	if !p.Available() {
		t.Skip("sleep not available")
	}

	sink, err := p.Start(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = sink.Abort()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Abort did not reap the player process")
	}
	ps := sink.(*processSink).cmd.ProcessState
	require.NotNil(t, ps)
	require.True(t, ps.Exited() || !ps.Success())
}

func TestInspectWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one-second.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 16000),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	info, err := InspectWAV(f)
	require.NoError(t, err)
	require.Equal(t, 16000, info.SampleRate)
	require.Equal(t, 1, info.Channels)
	require.Equal(t, 16, info.BitDepth)
	require.Equal(t, time.Second, info.Duration)

	pos, err := f.Seek(0, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)
}

func TestInspectWAV_NotWAV(t *testing.T) {
	_, err := InspectWAV(bytes.NewReader([]byte("definitely not riff data")))
	require.ErrorIs(t, err, ErrNotWAV)
}

type unrewindable struct {
	*bytes.Reader
}

func (u unrewindable) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		return 0, errors.New("seek not supported")
	}
	return u.Reader.Seek(offset, whence)
}

func TestInspectWAV_RewindFailure(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	buf.Write(make([]byte, 40))

	_, err := InspectWAV(unrewindable{bytes.NewReader(buf.Bytes())})
	require.ErrorIs(t, err, ErrRewind)
	require.Contains(t, err.Error(), "seek not supported")

	_, err = InspectWAV(unrewindable{bytes.NewReader([]byte("definitely not riff data"))})
	require.ErrorIs(t, err, ErrRewind)
}
