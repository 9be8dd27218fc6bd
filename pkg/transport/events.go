package transport

// Event names exchanged over the message channel. Outbound events flow
// client to server, inbound events server to client.
const (
	// Outbound.
	EventStartNovaSession = "start-nova-session"
	EventStartRecording   = "start-recording"
	EventAudioData        = "audio-data"
	EventStopRecording    = "stop-recording"
	EventEndNovaSession   = "end-nova-session"

	// Inbound.
	EventNovaSessionStarted = "nova-session-started"
	EventNovaSessionStopped = "nova-session-stopped"
	EventAssistantMessage   = "assistant-message"
	EventUserMessage        = "user-message"
	EventAudioOutput        = "audio-output"
	EventError              = "error"
	EventStatus             = "status"
)

// SessionStartedPayload accompanies nova-session-started.
type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
}

// AudioPayload carries one base64 PCM16 chunk, in either direction.
type AudioPayload struct {
	Audio string `json:"audio"`
}

// TextPayload carries a transcript line for assistant-message and
// user-message events.
type TextPayload struct {
	Text string `json:"text"`
}

// ErrorPayload accompanies error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// StatusPayload accompanies status events.
type StatusPayload struct {
	Message string `json:"message"`
}
