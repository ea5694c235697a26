package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a recording does not carry a RIFF/WAVE header
var ErrNotWAV = errors.New("not a wav file")

// WAVInfo describes the format of a WAV recording
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ErrRewind is returned when the reader cannot be rewound after inspection
var ErrRewind = errors.New("failed to rewind audio")

// InspectWAV reads the WAV header of r and rewinds it to the start.
// The audio itself is not decoded. A failed rewind is reported as ErrRewind
// and takes precedence over any other result.
func InspectWAV(r io.ReadSeeker) (info WAVInfo, err error) {
	defer func() {
		if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
			info, err = WAVInfo{}, fmt.Errorf("%w: %v", ErrRewind, seekErr)
		}
	}()

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return WAVInfo{}, ErrNotWAV
	}

	if err := dec.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("failed to locate wav data chunk: %w", err)
	}

	info = WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if bytesPerSec := info.SampleRate * info.Channels * info.BitDepth / 8; bytesPerSec > 0 {
		info.Duration = time.Duration(float64(dec.PCMSize) / float64(bytesPerSec) * float64(time.Second))
	}
	return info, nil
}
