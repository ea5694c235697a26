package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

// Source produces raw PCM audio
type Source interface {
	// Stream copies captured audio into w until ctx is done or capture fails
	Stream(ctx context.Context, w io.Writer) error
}

// CalculateRMS calculates the RMS energy of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// PCM16Samples decodes little-endian 16-bit PCM. A trailing odd byte is ignored.
func PCM16Samples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// LevelMeter is an io.Writer that forwards PCM16 audio to W while
// publishing its input level and byte count
type LevelMeter struct {
	W io.Writer
}

func (m LevelMeter) Write(p []byte) (int, error) {
	observability.SetMicLevel(CalculateRMS(PCM16Samples(p)))
	n, err := m.W.Write(p)
	if n > 0 {
		observability.RecordAudioBytes("in", n)
	}
	return n, err
}

// RecordPlayback counts bytes handed to a playback sink
func RecordPlayback(n int) {
	observability.RecordAudioBytes("out", n)
}
