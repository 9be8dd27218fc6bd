// Package transport implements the named-event message channel the voice
// session rides on: JSON envelopes of the form
//
//	{"event": "<name>", "data": {...}}
//
// carried one per WebSocket text frame. [Socket] is the concrete
// implementation; [Conn] is the surface the session core consumes, kept
// narrow so tests can substitute an in-memory fake.
package transport

// Conn is a connected named-event channel.
//
// Emit is fire-and-forget from the caller's point of view: delivery
// failures are surfaced through the disconnect callback, not the return
// value of the send path. On registers at most one handler per event name;
// registering again replaces the previous handler.
type Conn interface {
	// Emit sends one event with the given payload. A nil payload sends an
	// empty data object.
	Emit(event string, payload any) error

	// On registers a handler for the named inbound event. Handlers run on
	// the receive goroutine; they must not block for long.
	On(event string, handler func(data []byte))

	// OnConnect registers a callback invoked when the channel comes up.
	OnConnect(func())

	// OnDisconnect registers a callback invoked once when the channel
	// drops for any reason other than a local Close.
	OnDisconnect(func(err error))

	// Close tears the channel down. Idempotent.
	Close() error
}
