package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// ErrNoAudio is returned when Play is called without a stream.
var ErrNoAudio = errors.New("no audio stream")

// Player plays a synthesized MP3 stream.
type Player interface {
	Play(ctx context.Context, r io.ReadCloser) error
}

// Speaker plays MP3 audio on the default output device.
type Speaker struct {
	volumeDB float64

	mu         sync.Mutex
	sampleRate beep.SampleRate
}

// New creates a player without volume change (0 dB).
func New() *Speaker { return &Speaker{} }

// NewWithVolume creates a player with a fixed gain in dB (negative is quieter).
func NewWithVolume(db float64) *Speaker { return &Speaker{volumeDB: db} }

// Play decodes r and blocks until playback ends or ctx is cancelled.
func (s *Speaker) Play(ctx context.Context, r io.ReadCloser) error {
	if r == nil {
		return ErrNoAudio
	}

	streamer, format, err := mp3.Decode(r)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := s.init(format.SampleRate); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	vol := &effects.Volume{
		Streamer: streamer,
		Base:     2,
		Volume:   s.volumeDB,
		Silent:   false,
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(vol, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Duration reports the playback length of an MP3 stream without playing it.
func Duration(r io.ReadCloser) (time.Duration, error) {
	if r == nil {
		return 0, ErrNoAudio
	}
	streamer, format, err := mp3.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}

// init sets up the speaker once per sample rate.
func (s *Speaker) init(rate beep.SampleRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sampleRate == rate {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return err
	}
	s.sampleRate = rate
	return nil
}
