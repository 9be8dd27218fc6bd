// Package client implements the voice-session core: the state machine that
// drives session lifecycle over the event channel and wires the capture
// pipeline and playback queue to it.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nareshvrde5220/nova-agent/internal/observe"
	"github.com/nareshvrde5220/nova-agent/pkg/audio"
	"github.com/nareshvrde5220/nova-agent/pkg/transport"
)

// autoRecordDelay is how long after the session-started acknowledgement the
// microphone opens automatically.
const autoRecordDelay = 500 * time.Millisecond

// State is the session lifecycle state.
type State int

const (
	// StateIdle means no session exists and no session is being requested.
	StateIdle State = iota

	// StateStarting means the start request is in flight, awaiting the
	// server's acknowledgement.
	StateStarting

	// StateActive means the server acknowledged the session. Recording may
	// be on or off; see [Client.Recording].
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tape archives captured frames for one session. Optional.
type Tape interface {
	Write(audio.Frame) error
	Close() error
}

// Config holds the collaborators of a [Client].
type Config struct {
	// Conn is the connected event channel. Required.
	Conn transport.Conn

	// OpenSource acquires a microphone source for one recording span.
	// Required.
	OpenSource func() (audio.Source, error)

	// Player renders playback items. Required.
	Player audio.Player

	// Notifier receives conversation and status events. Required.
	Notifier Notifier

	// Metrics records pipeline instruments. When nil, DefaultMetrics is
	// used.
	Metrics *observe.Metrics

	// OutputSampleRate is the rate of received audio in Hz. Zero means
	// audio.DefaultOutputSampleRate.
	OutputSampleRate int

	// NewTape, when non-nil, opens a per-session archive of captured
	// frames. Tape failures are logged and never affect the session.
	NewTape func(sessionID string) (Tape, error)
}

// Client is the session state machine. One Client serves many sessions in
// sequence; at most one session exists at a time.
//
// All event handlers and exported methods synchronize on one mutex. Timer
// and transport callbacks re-check state and generation on entry, so
// callbacks that outlive their session are discarded. Recording starts
// re-check once more after the device is acquired, so a stop landing
// mid-start rolls the new span back instead of leaving the mic hot.
type Client struct {
	capture  *audio.Capture
	queue    *audio.Queue
	notifier Notifier
	metrics  *observe.Metrics
	newTape  func(string) (Tape, error)

	outputRate int

	mu         sync.Mutex
	conn       transport.Conn
	state      State
	sessionID  string
	gen        uint64 // bumped on every session replace or reset
	startedAt  time.Time
	recordTick *time.Timer
	tape       Tape
}

// New creates a Client, wires its capture and playback subsystems, and
// registers the inbound event handlers on the channel.
func New(cfg Config) (*Client, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("client: Conn is required")
	}
	if cfg.OpenSource == nil {
		return nil, fmt.Errorf("client: OpenSource is required")
	}
	if cfg.Player == nil {
		return nil, fmt.Errorf("client: Player is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("client: Notifier is required")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	outputRate := cfg.OutputSampleRate
	if outputRate <= 0 {
		outputRate = audio.DefaultOutputSampleRate
	}

	c := &Client{
		conn:       cfg.Conn,
		notifier:   cfg.Notifier,
		metrics:    metrics,
		newTape:    cfg.NewTape,
		outputRate: outputRate,
	}

	capture, err := audio.NewCapture(audio.CaptureConfig{
		Open:    cfg.OpenSource,
		OnChunk: c.emitChunk,
		OnStart: func() { c.emit(transport.EventStartRecording, nil) },
		OnStop:  func() { c.emit(transport.EventStopRecording, nil) },
		Tap:     c.tapFrame,
	})
	if err != nil {
		return nil, err
	}
	c.capture = capture
	c.queue = audio.NewQueue(c.instrumentedPlayer(cfg.Player))

	c.registerHandlers()

	return c, nil
}

// Rebind swaps the event channel after a transport reconnect and attaches
// the inbound handlers to the fresh connection. The session itself does not
// survive the swap; the server assigns a new one on the next start intent.
func (c *Client) Rebind(conn transport.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.registerHandlers()
	c.hardStop("connection lost")
}

func (c *Client) channel() transport.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// registerHandlers attaches the inbound event handlers. Called again for
// each fresh socket when the transport reconnects.
func (c *Client) registerHandlers() {
	conn := c.channel()
	conn.On(transport.EventNovaSessionStarted, c.handleSessionStarted)
	conn.On(transport.EventNovaSessionStopped, func([]byte) { c.hardStop("server stop") })
	conn.On(transport.EventAudioOutput, c.handleAudioOutput)
	conn.On(transport.EventAssistantMessage, func(data []byte) {
		c.notifier.AssistantMessage(textOf(data))
	})
	conn.On(transport.EventUserMessage, func(data []byte) {
		c.notifier.UserMessage(textOf(data))
	})
	conn.On(transport.EventError, func(data []byte) {
		var p transport.ErrorPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Message == "" {
			p.Message = "unknown error"
		}
		c.notifier.Error(p.Message)
	})
	conn.On(transport.EventStatus, func(data []byte) {
		var p transport.StatusPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.notifier.Status(p.Message)
	})
}

// ── Operations ─────────────────────────────────────────────────────────────────

// StartSession requests a new session. Only valid in the idle state; any
// other state makes it a no-op so repeated start intents cannot stack.
func (c *Client) StartSession() error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		slog.Debug("start ignored", "state", state.String())
		return nil
	}
	c.state = StateStarting
	c.startedAt = time.Now()
	c.mu.Unlock()

	if err := c.channel().Emit(transport.EventStartNovaSession, nil); err != nil {
		c.mu.Lock()
		if c.state == StateStarting {
			c.state = StateIdle
		}
		c.mu.Unlock()
		c.metrics.RecordSessionStart(context.Background(), "error")
		return fmt.Errorf("client: request session: %w", err)
	}
	return nil
}

// EndSession tells the server to tear the session down and resets local
// state unconditionally, without waiting for the acknowledgement. Safe to
// call in any state; in the idle state there is nothing to tear down, so
// nothing is emitted.
func (c *Client) EndSession() {
	c.mu.Lock()
	idle := c.state == StateIdle
	c.mu.Unlock()

	if !idle {
		// Best effort: the local reset happens regardless.
		if err := c.channel().Emit(transport.EventEndNovaSession, nil); err != nil {
			slog.Warn("end session emit failed", "err", err)
		}
	}
	c.hardStop("local end")
}

// ToggleMic flips recording on or off. It is a no-op unless a session is
// active. A device acquisition failure is returned to the caller; the
// session stays active with recording off.
func (c *Client) ToggleMic() error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	if c.capture.Recording() {
		c.capture.Stop()
		return nil
	}
	if err := c.capture.Start(); err != nil {
		return fmt.Errorf("client: start recording: %w", err)
	}
	c.rollBackIfStale(gen)
	return nil
}

// rollBackIfStale ends a recording span whose session was stopped or
// replaced between the state check and the device start. Without it, a
// stop landing in that window would leave the microphone hot with no
// session to own the frames.
func (c *Client) rollBackIfStale(gen uint64) {
	c.mu.Lock()
	stale := c.gen != gen || c.state != StateActive
	c.mu.Unlock()

	if stale {
		c.capture.Stop()
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the server-assigned session identifier, or empty when
// no session is active.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Recording reports whether the microphone is live.
func (c *Client) Recording() bool {
	return c.capture.Recording()
}

// Playing reports whether a playback item is being rendered.
func (c *Client) Playing() bool {
	return c.queue.Playing()
}

// Close releases the client's subsystems. The channel itself is owned by
// the caller.
func (c *Client) Close() {
	c.hardStop("client close")
	c.queue.Close()
}

// ── Inbound event handling ─────────────────────────────────────────────────────

// handleSessionStarted moves to the active state. A started event that
// arrives while a session is already active replaces it: the old session's
// recording span ends and its pending auto-record timer is orphaned by the
// generation bump.
func (c *Client) handleSessionStarted(data []byte) {
	var p transport.SessionStartedPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		slog.Warn("malformed session-started payload")
		return
	}

	c.mu.Lock()
	wasStarting := c.state == StateStarting
	if c.state == StateActive {
		slog.Info("session replaced", "old", c.sessionID, "new", p.SessionID)
	}
	c.stopTimerLocked()
	c.closeTapeLocked()

	c.state = StateActive
	c.sessionID = p.SessionID
	c.gen++
	gen := c.gen
	startedAt := c.startedAt

	if c.newTape != nil {
		tape, err := c.newTape(p.SessionID)
		if err != nil {
			slog.Warn("session tape unavailable", "session_id", p.SessionID, "err", err)
		} else {
			c.tape = tape
		}
	}

	c.recordTick = time.AfterFunc(autoRecordDelay, func() { c.autoRecord(gen) })
	c.mu.Unlock()

	// The replaced session's recording span ends outside the lock; the
	// capture type owns its own synchronization.
	if c.capture.Recording() {
		c.capture.Stop()
	}

	ctx := context.Background()
	c.metrics.RecordSessionStart(ctx, "ok")
	c.metrics.ActiveSessions.Add(ctx, 1)
	if wasStarting && !startedAt.IsZero() {
		c.metrics.SessionStartDuration.Record(ctx, time.Since(startedAt).Seconds())
	}

	slog.Info("session started", "session_id", p.SessionID)
}

// autoRecord opens the microphone after the post-start delay. The
// generation guard discards ticks whose session was replaced or ended
// while the timer was pending.
func (c *Client) autoRecord(gen uint64) {
	c.mu.Lock()
	stale := c.gen != gen || c.state != StateActive
	c.mu.Unlock()

	if stale || c.capture.Recording() {
		return
	}
	if err := c.capture.Start(); err != nil {
		slog.Warn("auto-record failed; toggle the mic to retry", "err", err)
		return
	}
	c.rollBackIfStale(gen)
}

// handleAudioOutput decodes one chunk and appends it to the playback
// queue. Decode failures drop the chunk; they never affect session state.
func (c *Client) handleAudioOutput(data []byte) {
	ctx := context.Background()

	var p transport.AudioPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.metrics.RecordChunk(ctx, "decode_error")
		slog.Warn("malformed audio-output payload", "err", err)
		return
	}
	samples, err := audio.DecodeChunk(p.Audio)
	if err != nil {
		c.metrics.RecordChunk(ctx, "decode_error")
		slog.Warn("dropping undecodable audio chunk", "err", err)
		return
	}
	if len(samples) == 0 {
		return
	}

	c.metrics.RecordChunk(ctx, "ok")
	c.metrics.QueueDepth.Add(ctx, 1)
	c.queue.Enqueue(&audio.Item{Samples: samples, SampleRate: c.outputRate})
}

// hardStop is the idempotent session teardown: recording off, device
// released, playback silenced, state reset. Every path out of a session
// funnels through here.
func (c *Client) hardStop(reason string) {
	c.capture.Stop()

	dropped := c.queue.Len()
	c.queue.Clear()
	if dropped > 0 {
		c.metrics.QueueDepth.Add(context.Background(), -int64(dropped))
	}

	c.mu.Lock()
	hadSession := c.state != StateIdle
	sessionID := c.sessionID
	c.stopTimerLocked()
	c.closeTapeLocked()
	c.state = StateIdle
	c.sessionID = ""
	c.gen++
	c.startedAt = time.Time{}
	c.mu.Unlock()

	if hadSession {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
		slog.Info("session stopped", "session_id", sessionID, "reason", reason)
	}
}

func (c *Client) stopTimerLocked() {
	if c.recordTick != nil {
		c.recordTick.Stop()
		c.recordTick = nil
	}
}

func (c *Client) closeTapeLocked() {
	if c.tape != nil {
		if err := c.tape.Close(); err != nil {
			slog.Warn("session tape close error", "err", err)
		}
		c.tape = nil
	}
}

// ── Capture wiring ─────────────────────────────────────────────────────────────

// emitChunk is the capture pipeline's per-frame sink: fire-and-forget onto
// the channel, counted but never retried.
func (c *Client) emitChunk(encoded string) {
	ctx := context.Background()
	c.metrics.FramesCaptured.Add(ctx, 1)
	c.metrics.BytesSent.Add(ctx, int64(len(encoded)))
	c.emit(transport.EventAudioData, transport.AudioPayload{Audio: encoded})
}

// emit sends one event and logs delivery failures. Send failures surface
// through the transport's disconnect path, so callers never see them.
func (c *Client) emit(event string, payload any) {
	if err := c.channel().Emit(event, payload); err != nil {
		slog.Debug("emit failed", "event", event, "err", err)
	}
}

// tapFrame forwards a captured frame to the session tape when one is open.
func (c *Client) tapFrame(frame audio.Frame) {
	c.mu.Lock()
	tape := c.tape
	c.mu.Unlock()

	if tape == nil {
		return
	}
	if err := tape.Write(frame); err != nil {
		slog.Warn("session tape write error", "err", err)
	}
}

// ── Playback instrumentation ───────────────────────────────────────────────────

type instrumentedPlayer struct {
	inner   audio.Player
	metrics *observe.Metrics
}

// instrumentedPlayer wraps the player so every dequeued item updates the
// queue-depth gauge and playback histograms without the queue knowing
// about metrics.
func (c *Client) instrumentedPlayer(p audio.Player) audio.Player {
	return &instrumentedPlayer{inner: p, metrics: c.metrics}
}

func (p *instrumentedPlayer) Play(ctx context.Context, item *audio.Item) error {
	p.metrics.QueueDepth.Add(ctx, -1)

	start := time.Now()
	err := p.inner.Play(ctx, item)
	p.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil && ctx.Err() == nil {
		p.metrics.PlaybackErrors.Add(ctx, 1)
	}
	return err
}

func textOf(data []byte) string {
	var p transport.TextPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return p.Text
}
