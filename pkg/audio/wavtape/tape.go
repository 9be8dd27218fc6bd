// Package wavtape archives captured microphone audio to per-session WAV
// files. A Tape is wired as the capture pipeline's frame tap; it quantizes
// frames with the same arithmetic as the wire codec so the archive matches
// what was sent.
package wavtape

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/nareshvrde5220/nova-agent/pkg/audio"
)

// Tape writes mono PCM16 WAV data for one recording session.
type Tape struct {
	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	closed bool
}

// New creates the session's WAV file under dir, named by the session id
// and the current time. The directory is created when missing.
func New(dir, sessionID string, sampleRate int) (*Tape, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavtape: create dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.wav", sessionID, time.Now().Format("20060102T150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("wavtape: create file: %w", err)
	}

	return &Tape{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, 16, 1, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// Path returns the location of the WAV file being written.
func (t *Tape) Path() string {
	return t.file.Name()
}

// Write appends one captured frame. Frames arriving after Close are
// dropped silently, matching the capture pipeline's late-frame behavior.
func (t *Tape) Write(frame audio.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	if cap(t.buf.Data) < len(frame) {
		t.buf.Data = make([]int, len(frame))
	}
	t.buf.Data = t.buf.Data[:len(frame)]
	for i, s := range frame {
		t.buf.Data[i] = int(audio.Quantize(s))
	}

	if err := t.enc.Write(t.buf); err != nil {
		return fmt.Errorf("wavtape: write frame: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file. Idempotent.
func (t *Tape) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.enc.Close(); err != nil {
		t.file.Close()
		return fmt.Errorf("wavtape: finalize: %w", err)
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("wavtape: close file: %w", err)
	}
	return nil
}
