// Package device provides PortAudio-backed implementations of the audio
// Source and Player abstractions. Callers must run [Init] once before
// opening any stream and [Terminate] on shutdown.
package device

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/nareshvrde5220/nova-agent/pkg/audio"
)

// Init initializes the PortAudio runtime. Call once at process start.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("device: initialize portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio runtime.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("device: terminate portaudio: %w", err)
	}
	return nil
}

// Mic is a mono microphone Source over the default input device.
type Mic struct {
	stream *portaudio.Stream
	buf    []float32
}

// OpenMic opens the default input device as a mono float stream at the
// given rate, reading framesPerBuffer samples per fill.
func OpenMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("device: open input stream: %w", err)
	}
	return &Mic{stream: stream, buf: buf}, nil
}

func (m *Mic) Start() error {
	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("device: start input stream: %w", err)
	}
	return nil
}

// Read blocks until the stream buffer fills and returns it. The frame is
// the stream's internal buffer and is overwritten by the next Read.
func (m *Mic) Read() (audio.Frame, error) {
	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("device: read input stream: %w", err)
	}
	return audio.Frame(m.buf), nil
}

// Close stops and closes the stream. Safe to call more than once; a
// close on an already-closed stream surfaces PortAudio's error, which
// callers log and ignore.
func (m *Mic) Close() error {
	// Stop may fail when the stream never started; Close is what matters.
	_ = m.stream.Stop()
	if err := m.stream.Close(); err != nil {
		return fmt.Errorf("device: close input stream: %w", err)
	}
	return nil
}

// Speaker plays items on the default output device. Each Play opens its
// own output stream at the item's sample rate, so items synthesised at
// different rates need no resampling.
type Speaker struct {
	// ChunkSize is the number of samples written per buffer fill.
	// Zero means audio.DefaultFramesPerBuffer.
	ChunkSize int
}

// Play renders the item to completion. Cancelling ctx stops playback at
// the next buffer boundary.
func (s *Speaker) Play(ctx context.Context, item *audio.Item) error {
	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = audio.DefaultFramesPerBuffer
	}

	buf := make([]int16, chunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(item.SampleRate), chunk, buf)
	if err != nil {
		return fmt.Errorf("device: open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("device: start output stream: %w", err)
	}
	defer stream.Stop()

	samples := item.Samples
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(buf, samples)
		samples = samples[n:]
		// Zero-pad the final partial buffer instead of clicking.
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}

		if err := stream.Write(); err != nil {
			return fmt.Errorf("device: write output stream: %w", err)
		}
	}
	return nil
}
