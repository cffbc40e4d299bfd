// Package observability owns the OpenTelemetry tracer and meter providers.
// Services create tracers and instruments through the otel globals; the
// manager installs its providers as those globals when the app starts.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
)

const (
	fallbackVersion = "0.1.0"
	stopTimeout     = 10 * time.Second
	dialTimeout     = 10 * time.Second
	stdoutInterval  = 30 * time.Second
)

// Manager holds the providers built from config. Either provider may be nil
// when its signal is disabled or its exporter is unknown.
type Manager struct {
	cfg     config.Observability
	tracers *sdktrace.TracerProvider
	meters  *sdkmetric.MeterProvider
	scrape  http.Handler
}

var Module = fx.Provide(NewManager)

func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	obs := cfg.Observability
	res, err := sdkresource.New(context.Background(),
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(obs.ServiceName),
			semconv.ServiceVersion(serviceVersion()),
			attribute.String("service.environment", obs.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability resource: %w", err)
	}

	m := &Manager{cfg: obs}
	if obs.EnableTracing {
		exporter, err := traceExporter(obs, logger)
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		if exporter != nil {
			m.tracers = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
		}
	}
	if obs.EnableMetrics {
		reader, scrape, err := metricReader(obs, logger)
		if err != nil {
			return nil, fmt.Errorf("metric reader: %w", err)
		}
		if reader != nil {
			m.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
			m.scrape = scrape
		}
	}

	lc.Append(fx.StartStopHook(m.install, m.shutdown))
	return m, nil
}

// traceExporter returns nil, nil for an unknown exporter name.
func traceExporter(obs config.Observability, logger *zap.Logger) (sdktrace.SpanExporter, error) {
	switch obs.TraceExporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if obs.TraceEndpoint == "" {
			return nil, errors.New("OBS_OTLP_ENDPOINT must be set for the otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(obs.TraceEndpoint)}
		if obs.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		return otlptracegrpc.New(ctx, opts...)
	default:
		logger.Warn("unknown trace exporter, tracing off", zap.String("exporter", obs.TraceExporter))
		return nil, nil
	}
}

// metricReader builds the reader for the configured exporter. Prometheus
// gets a private registry carrying the Go runtime and process collectors;
// the returned handler serves it.
func metricReader(obs config.Observability, logger *zap.Logger) (sdkmetric.Reader, http.Handler, error) {
	switch obs.MetricsExporter {
	case "prometheus":
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, err
		}
		return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}), nil
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, nil, err
		}
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(stdoutInterval)), nil, nil
	default:
		logger.Warn("unknown metrics exporter, metrics off", zap.String("exporter", obs.MetricsExporter))
		return nil, nil, nil
	}
}

// install makes the providers the otel globals. Tracers and instruments
// obtained from the globals before this call delegate to them afterwards.
func (m *Manager) install() {
	if m.tracers != nil {
		otel.SetTracerProvider(m.tracers)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}
	if m.meters != nil {
		otel.SetMeterProvider(m.meters)
	}
}

// shutdown flushes both providers.
func (m *Manager) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	var errs []error
	if m.tracers != nil {
		errs = append(errs, m.tracers.Shutdown(ctx))
	}
	if m.meters != nil {
		errs = append(errs, m.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Meter returns a meter from the manager's provider, or a no-op meter when
// metrics are off.
func (m *Manager) Meter(name string) metric.Meter {
	if m.meters == nil {
		return noop.NewMeterProvider().Meter(name)
	}
	return m.meters.Meter(name)
}

func (m *Manager) TracingEnabled() bool { return m.tracers != nil }

func (m *Manager) MetricsEnabled() bool { return m.meters != nil }

// MetricsHandler serves the prometheus registry; nil unless the prometheus
// exporter is active.
func (m *Manager) MetricsHandler() http.Handler { return m.scrape }

func (m *Manager) PrometheusPath() string { return m.cfg.PrometheusPath }

func serviceVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return fallbackVersion
}
