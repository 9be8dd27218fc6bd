package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Source is a microphone stream. Implementations own the underlying device
// handles for the lifetime of one recording span.
//
// Close must be idempotent and safe to call even when Start never completed
// successfully.
type Source interface {
	// Start acquires the input device and begins buffering.
	Start() error

	// Read blocks until one fixed-size buffer has filled and returns it.
	// The returned Frame is only valid until the next Read.
	Read() (Frame, error)

	// Close releases all device resources. It must unblock a pending
	// Read, which then returns its buffered frame or an error.
	Close() error
}

// CaptureConfig holds the collaborators of a [Capture].
type CaptureConfig struct {
	// Open acquires a fresh [Source] for one recording span. Required.
	Open func() (Source, error)

	// OnChunk receives one encoded chunk per captured frame, fire-and-forget.
	// Required. Called from the capture goroutine.
	OnChunk func(encoded string)

	// OnStart is called exactly once per recording span, after the source is
	// acquired and before the first frame is forwarded. May be nil.
	OnStart func()

	// OnStop is called exactly once per recording span during Stop. May be nil.
	OnStop func()

	// Tap, when non-nil, observes each raw frame before encoding (used by
	// the session tape). Called from the capture goroutine.
	Tap func(Frame)
}

// Capture streams microphone frames through the wire codec while recording
// is on. One Capture instance serves many recording spans; each span
// acquires and releases its own Source.
//
// Start and Stop are safe for concurrent use. Frames delivered by the
// source after Stop are discarded by the recording flag, never forwarded.
type Capture struct {
	cfg CaptureConfig

	recording atomic.Bool

	mu  sync.Mutex
	src Source
	wg  sync.WaitGroup
}

// NewCapture creates a Capture. Open and OnChunk must be set.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.Open == nil {
		return nil, fmt.Errorf("audio: capture: Open is required")
	}
	if cfg.OnChunk == nil {
		return nil, fmt.Errorf("audio: capture: OnChunk is required")
	}
	return &Capture{cfg: cfg}, nil
}

// Start acquires the input device and begins one recording span. It returns
// an error when the device cannot be acquired; in that case no control
// callback fires and no resources are retained. Calling Start while a span
// is already running is a no-op.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording.Load() {
		return nil
	}

	src, err := c.cfg.Open()
	if err != nil {
		return fmt.Errorf("audio: capture: acquire source: %w", err)
	}
	if err := src.Start(); err != nil {
		_ = src.Close()
		return fmt.Errorf("audio: capture: start source: %w", err)
	}

	c.src = src
	c.recording.Store(true)

	if c.cfg.OnStart != nil {
		c.cfg.OnStart()
	}

	c.wg.Add(1)
	go c.loop(src)

	return nil
}

// Stop ends the recording span and releases all device resources. It is
// idempotent and never fails: calling Stop when no span is running (or
// after a failed Start) does nothing.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording.Load() {
		return
	}
	c.recording.Store(false)

	if c.src != nil {
		if err := c.src.Close(); err != nil {
			slog.Warn("capture: source close error", "err", err)
		}
		c.src = nil
	}

	// Closing the source unblocks the pending Read, so the loop exits
	// promptly. Waiting here keeps chunk delivery and the stop callback
	// ordered: no chunk is forwarded after OnStop fires.
	c.wg.Wait()

	if c.cfg.OnStop != nil {
		c.cfg.OnStop()
	}
}

// Recording reports whether a recording span is active.
func (c *Capture) Recording() bool {
	return c.recording.Load()
}

// loop forwards frames until the recording flag clears or the source fails.
// A read that completes after Stop (pending hardware buffers) is discarded
// by the flag check before forwarding.
func (c *Capture) loop(src Source) {
	defer c.wg.Done()

	for c.recording.Load() {
		frame, err := src.Read()
		if err != nil {
			if c.recording.Load() {
				slog.Warn("capture: source read error", "err", err)
			}
			return
		}
		if !c.recording.Load() {
			return
		}
		if c.cfg.Tap != nil {
			c.cfg.Tap(frame)
		}
		c.cfg.OnChunk(EncodeFrame(frame))
	}
}
