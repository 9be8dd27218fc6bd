package wavtape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"

	"github.com/nareshvrde5220/nova-agent/pkg/audio"
)

func TestTapeWritesDecodableWAV(t *testing.T) {
	dir := t.TempDir()

	tape, err := New(dir, "sess-123", 16000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := tape.Write(audio.Frame{0.5, -0.5, 0, 1.0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tape.Write(audio.Frame{0.25, -0.25}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tape.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(tape.Path())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}

	if dec.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}

	want := []int{16384, -16384, 0, 32767, 8192, -8192}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i, w := range want {
		if buf.Data[i] != w {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], w)
		}
	}
}

func TestTapeFileNaming(t *testing.T) {
	dir := t.TempDir()
	tape, err := New(dir, "abc", 16000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tape.Close()

	base := filepath.Base(tape.Path())
	if !strings.HasPrefix(base, "abc_") || !strings.HasSuffix(base, ".wav") {
		t.Errorf("archive name %q does not follow <session>_<time>.wav", base)
	}
}

func TestTapeCloseIdempotent(t *testing.T) {
	tape, err := New(t.TempDir(), "sess", 16000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tape.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tape.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	// Writes after Close are dropped, not errors.
	if err := tape.Write(audio.Frame{0.1}); err != nil {
		t.Errorf("Write after Close returned %v, want nil", err)
	}
}

func TestTapeCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tapes", "nested")
	tape, err := New(dir, "sess", 16000)
	if err != nil {
		t.Fatalf("New with missing dir: %v", err)
	}
	tape.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}
