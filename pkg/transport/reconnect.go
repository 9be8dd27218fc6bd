package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second

	// handshakeTimeout bounds each individual dial attempt; ctx bounds the
	// Reconnector's whole lifetime.
	handshakeTimeout = 15 * time.Second
)

// Reconnector owns a Socket's lifecycle across network drops. It dials
// the initial connection via [Reconnector.Connect], then redials with
// exponential backoff whenever the socket reports a disconnect. Each new
// socket inherits the registration callback, which re-attaches event
// handlers before traffic resumes.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	dial       func() *Socket
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	register   func(*Socket)

	mu           sync.Mutex
	sock         *Socket
	done         chan struct{}
	stopOnce     sync.Once
	disconnected chan struct{} // signalled when a drop is detected
}

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// URL is the WebSocket endpoint to dial.
	URL string

	// Options are passed to every Socket the Reconnector creates.
	Options []Option

	// MaxRetries is the number of redial attempts per drop before giving
	// up. Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial wait between attempts, doubling up to
	// MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the backoff duration. Defaults to 30s if zero.
	MaxBackoff time.Duration

	// Register is called with each new socket, before and after every
	// successful (re)dial, so the caller can attach its event handlers.
	// May be nil.
	Register func(*Socket)
}

// NewReconnector creates a Reconnector with the given configuration.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	opts := cfg.Options
	return &Reconnector{
		dial:         func() *Socket { return New(cfg.URL, opts...) },
		maxRetries:   maxRetries,
		backoff:      backoff,
		maxBackoff:   maxBackoff,
		register:     cfg.Register,
		done:         make(chan struct{}),
		disconnected: make(chan struct{}, 1),
	}
}

// Connect dials the initial connection and starts the monitor goroutine.
// The ctx bounds the Reconnector's lifetime, not just the handshake: when
// it ends, monitoring stops.
func (r *Reconnector) Connect(ctx context.Context) (*Socket, error) {
	sock := r.newSocket()
	if err := r.dialSocket(ctx, sock); err != nil {
		return nil, fmt.Errorf("reconnector initial connect: %w", err)
	}

	r.mu.Lock()
	r.sock = sock
	r.mu.Unlock()

	go r.monitorLoop(ctx)

	return sock, nil
}

// Socket returns the current active socket. May return nil mid-redial.
func (r *Reconnector) Socket() *Socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sock
}

// Stop halts monitoring and closes the current socket. Safe to call
// multiple times.
func (r *Reconnector) Stop() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	sock := r.sock
	r.sock = nil
	r.mu.Unlock()

	if sock != nil {
		return sock.Close()
	}
	return nil
}

// newSocket builds a socket wired to signal the monitor on drops and runs
// the caller's registration hook.
func (r *Reconnector) newSocket() *Socket {
	sock := r.dial()
	sock.OnDisconnect(func(err error) {
		slog.Warn("connection lost", "error", err)
		select {
		case r.disconnected <- struct{}{}:
		default:
			// Already signalled; avoid blocking.
		}
	})
	if r.register != nil {
		r.register(sock)
	}
	return sock
}

// dialSocket connects with a per-attempt handshake timeout.
func (r *Reconnector) dialSocket(ctx context.Context, sock *Socket) error {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	return sock.Connect(dialCtx)
}

// monitorLoop waits for disconnect notifications and redials.
func (r *Reconnector) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.disconnected:
			r.attemptReconnect(ctx)
		}
	}
}

// attemptReconnect redials with exponential backoff.
func (r *Reconnector) attemptReconnect(ctx context.Context) {
	currentBackoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		slog.Info("attempting reconnection",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", currentBackoff,
		)

		sock := r.newSocket()
		err := r.dialSocket(ctx, sock)
		if err == nil {
			r.mu.Lock()
			oldSock := r.sock
			r.sock = sock
			r.mu.Unlock()

			// Close the old (failed) socket to release its resources.
			if oldSock != nil {
				_ = oldSock.Close()
			}

			slog.Info("reconnection successful", "attempt", attempt)
			return
		}

		slog.Warn("reconnection attempt failed",
			"attempt", attempt,
			"error", err,
		)

		// Wait before retrying.
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(currentBackoff):
		}

		// Exponential backoff.
		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	slog.Error("reconnection failed after max retries", "max_retries", r.maxRetries)
}
