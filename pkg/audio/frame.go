// Package audio implements the client-side audio path for nova-agent:
// the PCM16 wire codec, the microphone capture pipeline, and the FIFO
// playback queue.
//
// The two hardware-facing abstractions are:
//
//   - [Source], a microphone stream delivering fixed-size float frames.
//   - [Player], a speaker that plays one [Item] to completion.
//
// Device-backed implementations live in audio/device; tests use in-memory
// fakes. The capture and playback types in this package never touch a
// device directly, which keeps the session core testable without audio
// hardware.
package audio

// Frame is one fixed-length buffer of mono float samples in the range
// [-1.0, 1.0], as delivered by a [Source] per buffer fill. Frames are
// ephemeral: they are encoded and forwarded synchronously, never retained.
type Frame []float32

// Default stream parameters. Capture runs at the rate the remote model
// ingests; playback runs at the rate it synthesises.
const (
	// DefaultInputSampleRate is the microphone capture rate in Hz.
	DefaultInputSampleRate = 16000

	// DefaultOutputSampleRate is the playback rate in Hz for audio
	// received from the remote side.
	DefaultOutputSampleRate = 24000

	// DefaultFramesPerBuffer is the number of samples per capture frame.
	DefaultFramesPerBuffer = 1024
)
