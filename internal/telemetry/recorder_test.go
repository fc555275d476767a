package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecorder(logger, provider), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation = %T, want metricdata.Sum[int64]", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecorderCounters(t *testing.T) {
	rec, reader := newTestRecorder(t)
	ctx := context.Background()

	rec.Segment(ctx, "success", false)
	rec.Segment(ctx, "empty", false)
	rec.Segment(ctx, "success", true)
	rec.Retry(ctx, "gemini")
	rec.CacheLookup(ctx, true)
	rec.CacheLookup(ctx, false)
	rec.RemoteCall(ctx, "gemini", 150*time.Millisecond, errors.New("boom"))
	rec.JobFinished(ctx, "complete", true, 4096, 2*time.Second)

	got := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"pdf2mp3.segments", 3},
		{"pdf2mp3.remote_retries", 1},
		{"pdf2mp3.cache_lookups", 2},
		{"pdf2mp3.jobs", 1},
		{"pdf2mp3.mp3_bytes", 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ok := got[tt.name]
			if !ok {
				t.Fatalf("metric %s not exported", tt.name)
			}
			if v := sumOf(t, data); v != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, v, tt.want)
			}
		})
	}

	hist, ok := got["pdf2mp3.remote_call_duration"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("remote_call_duration = %T, want histogram", got["pdf2mp3.remote_call_duration"])
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("remote_call_duration datapoints = %+v, want one observation", hist.DataPoints)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	ctx := context.Background()

	rec.Segment(ctx, "success", false)
	rec.Retry(ctx, "gemini")
	rec.CacheLookup(ctx, true)
	rec.RemoteCall(ctx, "gemini", time.Second, nil)
	rec.JobFinished(ctx, "failed", false, 0, time.Second)
	if rec.Logger() == nil {
		t.Error("Logger() on nil recorder returned nil")
	}
}

func TestNewRecorderWithoutProvider(t *testing.T) {
	rec := NewRecorder(nil, nil)
	rec.Segment(context.Background(), "success", false)
	if rec.Logger() == nil {
		t.Error("Logger() returned nil")
	}
}
