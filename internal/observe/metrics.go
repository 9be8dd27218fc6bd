// Package observe provides application-wide observability primitives for
// nova-agent: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all nova-agent metrics.
const meterName = "github.com/nareshvrde5220/nova-agent"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Capture path ---

	// FramesCaptured counts microphone frames forwarded to the channel.
	FramesCaptured metric.Int64Counter

	// BytesSent counts encoded audio bytes emitted over the channel.
	BytesSent metric.Int64Counter

	// --- Playback path ---

	// ChunksReceived counts audio-output chunks that arrived. Use with
	// attribute: attribute.String("status", "ok"|"decode_error")
	ChunksReceived metric.Int64Counter

	// PlaybackDuration tracks how long one queued item took to render.
	PlaybackDuration metric.Float64Histogram

	// PlaybackErrors counts items dropped because the player failed.
	PlaybackErrors metric.Int64Counter

	// QueueDepth tracks pending playback items.
	QueueDepth metric.Int64UpDownCounter

	// --- Session lifecycle ---

	// SessionsStarted counts session handshakes. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	SessionsStarted metric.Int64Counter

	// SessionStartDuration tracks time from start request to the server's
	// session-started acknowledgement.
	SessionStartDuration metric.Float64Histogram

	// ActiveSessions tracks whether a session is live (0 or 1 for this
	// single-session client, kept as an UpDownCounter for aggregation).
	ActiveSessions metric.Int64UpDownCounter

	// Reconnects counts channel redials after a drop.
	Reconnects metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Capture counters.
	if met.FramesCaptured, err = m.Int64Counter("nova_agent.capture.frames",
		metric.WithDescription("Total microphone frames forwarded to the channel."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64Counter("nova_agent.capture.bytes",
		metric.WithDescription("Total encoded audio bytes sent over the channel."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	// Playback instruments.
	if met.ChunksReceived, err = m.Int64Counter("nova_agent.playback.chunks",
		metric.WithDescription("Total audio-output chunks received by status."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("nova_agent.playback.duration",
		metric.WithDescription("Render time of one queued playback item."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackErrors, err = m.Int64Counter("nova_agent.playback.errors",
		metric.WithDescription("Playback items dropped because the player failed."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("nova_agent.playback.queue_depth",
		metric.WithDescription("Number of pending playback items."),
	); err != nil {
		return nil, err
	}

	// Session lifecycle.
	if met.SessionsStarted, err = m.Int64Counter("nova_agent.session.started",
		metric.WithDescription("Total session handshakes by status."),
	); err != nil {
		return nil, err
	}
	if met.SessionStartDuration, err = m.Float64Histogram("nova_agent.session.start_duration",
		metric.WithDescription("Time from start request to session-started acknowledgement."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("nova_agent.session.active",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("nova_agent.channel.reconnects",
		metric.WithDescription("Channel redials after a connection drop."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChunk records one received audio-output chunk with its status.
func (m *Metrics) RecordChunk(ctx context.Context, status string) {
	m.ChunksReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSessionStart records one session handshake outcome.
func (m *Metrics) RecordSessionStart(ctx context.Context, status string) {
	m.SessionsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
