// Package config provides the configuration schema and loader for the
// nova-agent voice-session client.
package config

// LogLevel controls log verbosity for the agent.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for nova-agent.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Audio  AudioConfig  `yaml:"audio"`
	Tape   TapeConfig   `yaml:"tape"`
}

// ServerConfig holds channel endpoint and logging settings.
type ServerConfig struct {
	// URL is the WebSocket endpoint of the voice server
	// (e.g., "ws://localhost:5000/ws").
	URL string `yaml:"url"`

	// MetricsAddr is the TCP address the local metrics/health endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds the capture and playback stream parameters.
type AudioConfig struct {
	// InputSampleRate is the microphone capture rate in Hz. The remote
	// model ingests 16000 Hz; other values are rejected by the server.
	InputSampleRate int `yaml:"input_sample_rate"`

	// OutputSampleRate is the playback rate in Hz for received audio.
	OutputSampleRate int `yaml:"output_sample_rate"`

	// FramesPerBuffer is the number of samples per capture frame.
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

// TapeConfig controls the optional per-session WAV archive of captured
// microphone audio.
type TapeConfig struct {
	// Enabled turns archiving on.
	Enabled bool `yaml:"enabled"`

	// Dir is the directory WAV files are written to.
	Dir string `yaml:"dir"`
}
