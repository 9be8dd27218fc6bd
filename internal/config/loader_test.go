package config_test

import (
	"strings"
	"testing"

	"github.com/nareshvrde5220/nova-agent/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  url: wss://voice.example.com/ws
  metrics_addr: ":9090"
  log_level: debug
audio:
  input_sample_rate: 16000
  output_sample_rate: 24000
  frames_per_buffer: 512
tape:
  enabled: true
  dir: /var/lib/nova-agent/tapes
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.URL != "wss://voice.example.com/ws" {
		t.Errorf("server.url = %q", cfg.Server.URL)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Audio.FramesPerBuffer != 512 {
		t.Errorf("frames_per_buffer = %d, want 512", cfg.Audio.FramesPerBuffer)
	}
	if !cfg.Tape.Enabled || cfg.Tape.Dir != "/var/lib/nova-agent/tapes" {
		t.Errorf("tape = %+v", cfg.Tape)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  url: ws://localhost:5000/ws
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.InputSampleRate != 16000 {
		t.Errorf("default input_sample_rate = %d, want 16000", cfg.Audio.InputSampleRate)
	}
	if cfg.Audio.OutputSampleRate != 24000 {
		t.Errorf("default output_sample_rate = %d, want 24000", cfg.Audio.OutputSampleRate)
	}
	if cfg.Audio.FramesPerBuffer != 1024 {
		t.Errorf("default frames_per_buffer = %d, want 1024", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("default log_level = %q, want info", cfg.Server.LogLevel)
	}
}

func TestValidate_MissingURL(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  input_sample_rate: 16000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing server.url, got nil")
	}
	if !strings.Contains(err.Error(), "server.url") {
		t.Errorf("error should mention server.url, got: %v", err)
	}
}

func TestValidate_BadURLScheme(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  url: http://voice.example.com/ws
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for http scheme, got nil")
	}
	if !strings.Contains(err.Error(), "scheme") {
		t.Errorf("error should mention scheme, got: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  url: ws://localhost:5000/ws
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_NegativeSampleRate(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  url: ws://localhost:5000/ws
audio:
  output_sample_rate: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative sample rate, got nil")
	}
	if !strings.Contains(err.Error(), "output_sample_rate") {
		t.Errorf("error should mention output_sample_rate, got: %v", err)
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
audio:
  frames_per_buffer: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"server.url", "log_level", "frames_per_buffer"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q, got: %v", want, err)
		}
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  url: ws://localhost:5000/ws
  listen_port: 8080
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_MalformedYAML(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server: [unclosed"))
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestValidate_TapeEnabledWithoutDir(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{URL: "ws://localhost:5000/ws"},
		Audio: config.AudioConfig{
			InputSampleRate:  16000,
			OutputSampleRate: 24000,
			FramesPerBuffer:  1024,
		},
		Tape: config.TapeConfig{Enabled: true},
	}
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected error for enabled tape without dir, got nil")
	}
}
