package telemetry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// Metrics bundles the meter provider and the Prometheus scrape handler.
type Metrics struct {
	Provider *sdkmetric.MeterProvider
	// Handler serves /metrics. It is nil when the exporter could not be created.
	Handler http.Handler
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.Provider == nil {
		return nil
	}
	return m.Provider.Shutdown(ctx)
}

// SetupMetrics installs a global meter provider backed by the Prometheus exporter.
func SetupMetrics(ctx context.Context, serviceName, version string, logger *slog.Logger) (*Metrics, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	m := &Metrics{}
	promExporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		m.Provider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	} else {
		m.Provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(promExporter),
			sdkmetric.WithResource(res),
		)
		m.Handler = promhttp.Handler()
	}
	otel.SetMeterProvider(m.Provider)
	return m, nil
}
