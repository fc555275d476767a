package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/boxtvsaltogif/pdf-mp3"

// Recorder centralises telemetry (logs, metrics) for the conversion pipeline.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	logger *slog.Logger

	segments     metric.Int64Counter
	retries      metric.Int64Counter
	cacheLookups metric.Int64Counter
	jobs         metric.Int64Counter
	audioBytes   metric.Int64Counter
	callDuration metric.Float64Histogram
	jobDuration  metric.Float64Histogram
}

// NewRecorder constructs a telemetry recorder. When provider is nil the
// instruments are no-ops and only logging is available.
func NewRecorder(logger *slog.Logger, provider metric.MeterProvider) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	r := &Recorder{logger: logger.With("component", "telemetry")}
	meter := provider.Meter(meterName)

	var err error
	if r.segments, err = meter.Int64Counter("pdf2mp3.segments",
		metric.WithDescription("Segments processed, by outcome.")); err != nil {
		r.warn("pdf2mp3.segments", err)
		r.segments, _ = noop.Meter{}.Int64Counter("pdf2mp3.segments")
	}
	if r.retries, err = meter.Int64Counter("pdf2mp3.remote_retries",
		metric.WithDescription("Remote synthesis calls retried after a failure.")); err != nil {
		r.warn("pdf2mp3.remote_retries", err)
		r.retries, _ = noop.Meter{}.Int64Counter("pdf2mp3.remote_retries")
	}
	if r.cacheLookups, err = meter.Int64Counter("pdf2mp3.cache_lookups",
		metric.WithDescription("Segment cache lookups, by result.")); err != nil {
		r.warn("pdf2mp3.cache_lookups", err)
		r.cacheLookups, _ = noop.Meter{}.Int64Counter("pdf2mp3.cache_lookups")
	}
	if r.jobs, err = meter.Int64Counter("pdf2mp3.jobs",
		metric.WithDescription("Conversion jobs finished, by terminal state.")); err != nil {
		r.warn("pdf2mp3.jobs", err)
		r.jobs, _ = noop.Meter{}.Int64Counter("pdf2mp3.jobs")
	}
	if r.audioBytes, err = meter.Int64Counter("pdf2mp3.mp3_bytes",
		metric.WithDescription("Bytes of MP3 audio delivered."),
		metric.WithUnit("By")); err != nil {
		r.warn("pdf2mp3.mp3_bytes", err)
		r.audioBytes, _ = noop.Meter{}.Int64Counter("pdf2mp3.mp3_bytes")
	}
	if r.callDuration, err = meter.Float64Histogram("pdf2mp3.remote_call_duration",
		metric.WithDescription("Latency of a single remote synthesis attempt."),
		metric.WithUnit("s")); err != nil {
		r.warn("pdf2mp3.remote_call_duration", err)
		r.callDuration, _ = noop.Meter{}.Float64Histogram("pdf2mp3.remote_call_duration")
	}
	if r.jobDuration, err = meter.Float64Histogram("pdf2mp3.job_duration",
		metric.WithDescription("Wall time of a conversion job."),
		metric.WithUnit("s")); err != nil {
		r.warn("pdf2mp3.job_duration", err)
		r.jobDuration, _ = noop.Meter{}.Float64Histogram("pdf2mp3.job_duration")
	}
	return r
}

func (r *Recorder) warn(name string, err error) {
	r.logger.Warn("failed to create instrument, using no-op", "instrument", name, "error", err)
}

// Logger returns the underlying slog.Logger for direct use.
func (r *Recorder) Logger() *slog.Logger {
	if r == nil {
		return slog.Default()
	}
	return r.logger
}

// Segment records the outcome of one segment ("success", "empty" or "failure").
func (r *Recorder) Segment(ctx context.Context, outcome string, cached bool) {
	if r == nil {
		return
	}
	r.segments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("cached", cached),
	))
}

// Retry records a scheduled retry of a remote call.
func (r *Recorder) Retry(ctx context.Context, backend string) {
	if r == nil {
		return
	}
	r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// CacheLookup records a segment cache hit or miss.
func (r *Recorder) CacheLookup(ctx context.Context, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RemoteCall records the latency of one remote synthesis attempt.
func (r *Recorder) RemoteCall(ctx context.Context, backend string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.callDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.Bool("error", err != nil),
	))
}

// JobFinished records a job reaching a terminal state.
func (r *Recorder) JobFinished(ctx context.Context, state string, partial bool, mp3Bytes int, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("state", state),
		attribute.Bool("partial", partial),
	)
	r.jobs.Add(ctx, 1, attrs)
	r.jobDuration.Record(ctx, elapsed.Seconds(), attrs)
	if mp3Bytes > 0 {
		r.audioBytes.Add(ctx, int64(mp3Bytes))
	}
}
