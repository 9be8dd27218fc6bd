// Command nova-agent is a terminal client for live voice sessions against
// a nova voice server: it streams microphone audio up, plays assistant
// audio back, and prints the running transcript.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nareshvrde5220/nova-agent/internal/client"
	"github.com/nareshvrde5220/nova-agent/internal/config"
	"github.com/nareshvrde5220/nova-agent/internal/observe"
	"github.com/nareshvrde5220/nova-agent/pkg/audio"
	"github.com/nareshvrde5220/nova-agent/pkg/audio/device"
	"github.com/nareshvrde5220/nova-agent/pkg/audio/wavtape"
	"github.com/nareshvrde5220/nova-agent/pkg/transport"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	serverURL := flag.String("url", "", "WebSocket URL of the voice server (overrides config)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath, *serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nova-agent: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("nova-agent starting",
		"version", version,
		"server", cfg.Server.URL,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "nova-agent",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Audio runtime ─────────────────────────────────────────────────────────
	if err := device.Init(); err != nil {
		slog.Error("failed to initialise audio runtime", "err", err)
		return 1
	}
	defer func() {
		if err := device.Terminate(); err != nil {
			slog.Warn("audio runtime shutdown error", "err", err)
		}
	}()

	// ── Channel ───────────────────────────────────────────────────────────────
	metrics := observe.DefaultMetrics()

	var coreRef atomic.Pointer[client.Client]
	rec := transport.NewReconnector(transport.ReconnectorConfig{
		URL: cfg.Server.URL,
		Register: func(sock *transport.Socket) {
			// A fresh socket after a drop needs the handler set re-attached.
			if c := coreRef.Load(); c != nil {
				c.Rebind(sock)
				metrics.Reconnects.Add(context.Background(), 1)
			}
		},
	})

	sock, err := rec.Connect(ctx)
	if err != nil {
		slog.Error("failed to reach the voice server", "url", cfg.Server.URL, "err", err)
		return 1
	}
	defer rec.Stop()

	// ── Core ──────────────────────────────────────────────────────────────────
	core, err := client.New(client.Config{
		Conn: sock,
		OpenSource: func() (audio.Source, error) {
			return device.OpenMic(cfg.Audio.InputSampleRate, cfg.Audio.FramesPerBuffer)
		},
		Player:           &device.Speaker{ChunkSize: cfg.Audio.FramesPerBuffer},
		Notifier:         client.NewConsoleNotifier(os.Stdout),
		Metrics:          metrics,
		OutputSampleRate: cfg.Audio.OutputSampleRate,
		NewTape:          tapeFactory(cfg),
	})
	if err != nil {
		slog.Error("failed to initialise client", "err", err)
		return 1
	}
	defer core.Close()
	coreRef.Store(core)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Server.MetricsAddr) })
	}
	g.Go(func() error { return commandLoop(gctx, core) })

	fmt.Println("commands: start | mic | end | quit")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// loadConfig loads the YAML config, falling back to defaults when the file
// is absent and a -url override was given.
func loadConfig(path, urlOverride string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || urlOverride == "" {
			return nil, err
		}
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	if urlOverride != "" {
		cfg.Server.URL = urlOverride
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// tapeFactory builds the per-session WAV archive opener, or nil when
// archiving is disabled.
func tapeFactory(cfg *config.Config) func(string) (client.Tape, error) {
	if !cfg.Tape.Enabled {
		return nil
	}
	dir := cfg.Tape.Dir
	rate := cfg.Audio.InputSampleRate
	return func(sessionID string) (client.Tape, error) {
		return wavtape.New(dir, sessionID, rate)
	}
}

// commandLoop reads interactive commands from stdin until EOF or ctx ends.
func commandLoop(ctx context.Context, core *client.Client) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line {
			case "start":
				if err := core.StartSession(); err != nil {
					fmt.Println("could not start session:", err)
				}
			case "mic":
				if err := core.ToggleMic(); err != nil {
					fmt.Println("could not toggle mic:", err)
				}
			case "end":
				core.EndSession()
			case "quit", "exit":
				core.EndSession()
				return nil
			case "":
			default:
				fmt.Println("commands: start | mic | end | quit")
			}
		}
	}
}

// serveMetrics exposes /metrics and /healthz until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
