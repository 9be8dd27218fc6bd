package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Compile-time assertion that Socket satisfies Conn.
var _ Conn = (*Socket)(nil)

// envelope is the wire form of one event: a name and a JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Socket.
type Option func(*Socket)

// WithHTTPHeader sets additional headers sent with the opening handshake.
func WithHTTPHeader(h http.Header) Option {
	return func(s *Socket) { s.header = h }
}

// WithClientID overrides the generated client instance id. Primarily used
// in tests for deterministic handshakes.
func WithClientID(id string) Option {
	return func(s *Socket) { s.clientID = id }
}

// ── Socket ─────────────────────────────────────────────────────────────────────

// Socket is a Conn over a single WebSocket connection. Create one with
// [New], then call [Socket.Connect]; handlers may be registered before or
// after connecting.
type Socket struct {
	url      string
	clientID string
	header   http.Header

	mu           sync.Mutex
	conn         *websocket.Conn
	handlers     map[string]func(data []byte)
	onConnect    func()
	onDisconnect func(err error)
	closed       bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	recvDone  chan struct{}
}

// New creates a Socket that will dial the given WebSocket URL.
func New(url string, opts ...Option) *Socket {
	s := &Socket{
		url:      url,
		clientID: uuid.NewString(),
		handlers: make(map[string]func(data []byte)),
		recvDone: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ClientID returns the instance id sent with the handshake.
func (s *Socket) ClientID() string { return s.clientID }

// Connect dials the server and starts the receive loop. The ctx bounds
// the handshake only; the connection itself lives until Close or a
// remote drop. The client instance id rides along as a query parameter
// for server-side correlation.
func (s *Socket) Connect(ctx context.Context) error {
	dialURL, err := urlWithClientID(s.url, s.clientID)
	if err != nil {
		return fmt.Errorf("transport: parse url %s: %w", s.url, err)
	}

	conn, _, err := websocket.Dial(ctx, dialURL, &websocket.DialOptions{
		HTTPHeader: s.header,
	})
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", s.url, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.closed || s.conn != nil {
		closed := s.closed
		s.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "duplicate or late connect")
		if closed {
			return fmt.Errorf("transport: socket closed")
		}
		return fmt.Errorf("transport: already connected")
	}
	s.conn = conn
	s.ctx = connCtx
	s.cancel = cancel
	onConnect := s.onConnect
	s.mu.Unlock()

	go s.receiveLoop(conn, connCtx)

	if onConnect != nil {
		onConnect()
	}

	return nil
}

// urlWithClientID appends the client_id query parameter to a raw URL.
func urlWithClientID(raw, clientID string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Emit marshals the payload into an envelope and writes it as one text
// frame. A nil payload sends {"event": name}.
func (s *Socket) Emit(event string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.ctx
	closed := s.closed
	s.mu.Unlock()

	if closed || conn == nil {
		return fmt.Errorf("transport: emit %s: not connected", event)
	}

	env := envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("transport: marshal %s payload: %w", event, err)
		}
		env.Data = data
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: marshal %s envelope: %w", event, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("transport: write %s: %w", event, err)
	}
	return nil
}

// On registers the handler for an inbound event name, replacing any
// previous handler for that name.
func (s *Socket) On(event string, handler func(data []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

// OnConnect registers a callback invoked once the handshake completes.
// Register it before calling Connect.
func (s *Socket) OnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// OnDisconnect registers the drop callback. It fires at most once, and
// never for a local Close.
func (s *Socket) OnDisconnect(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// receiveLoop reads envelopes and dispatches them to registered handlers
// until the connection drops or the socket closes. Frames that do not
// parse as envelopes are skipped.
func (s *Socket) receiveLoop(conn *websocket.Conn, ctx context.Context) {
	defer close(s.recvDone)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.notifyDisconnect(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			continue
		}

		s.mu.Lock()
		handler := s.handlers[env.Event]
		s.mu.Unlock()

		if handler != nil {
			handler(env.Data)
		}
	}
}

func (s *Socket) notifyDisconnect(err error) {
	s.mu.Lock()
	fn := s.onDisconnect
	closed := s.closed
	s.mu.Unlock()

	if fn != nil && !closed {
		fn(err)
	}
}

// Done returns a channel closed when the receive loop has exited.
func (s *Socket) Done() <-chan struct{} { return s.recvDone }

// Close tears the connection down. Idempotent; the disconnect callback
// does not fire for a local close.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client closed")
		}
	})
	return nil
}
