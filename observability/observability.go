package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"
)

/*
Observability bundles logger, meter and tracer providers used by the
validator components.
*/
type Observability struct {
	log *slog.Logger
	mp  metric.MeterProvider
	tp  trace.TracerProvider
	pr  *prometheus.Registry

	shutdownFuncs []func(context.Context) error
}

/*
New creates observability with given logger. Metrics exporter is one of:
  - "" (empty string): metrics are disabled;
  - "prometheus": metrics are exposed through MetricsHandler.
*/
func New(log *slog.Logger, metrics, version string) (*Observability, error) {
	o := &Observability{
		log: log,
		mp:  noop.NewMeterProvider(),
		tp:  tnop.NewTracerProvider(),
	}

	if metrics != "" {
		res, err := resource.Merge(
			resource.Default(),
			resource.NewWithAttributes(semconv.SchemaURL,
				semconv.ServiceName("poolvalidator"),
				semconv.ServiceVersion(version),
			))
		if err != nil {
			return nil, fmt.Errorf("creating OTEL resource: %w", err)
		}

		mp, err := o.initMeterProvider(metrics, res)
		if err != nil {
			return nil, fmt.Errorf("initialize meter provider: %w", err)
		}
		o.mp = mp
		o.shutdownFuncs = append(o.shutdownFuncs, mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return o, nil
}

/*
NewWithProviders creates observability from already initialized providers,
mostly useful for tests.
*/
func NewWithProviders(log *slog.Logger, mp metric.MeterProvider, tp trace.TracerProvider) *Observability {
	return &Observability{log: log, mp: mp, tp: tp}
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, opts...)
}

func (o *Observability) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return o.tp.Tracer(name, options...)
}

func (o *Observability) TracerProvider() trace.TracerProvider { return o.tp }

func (o *Observability) PrometheusRegisterer() prometheus.Registerer {
	if o.pr == nil {
		return nil
	}
	return o.pr
}

// MetricsHandler returns nil when Prometheus exporter is not enabled.
func (o *Observability) MetricsHandler() http.Handler {
	if o.pr == nil {
		return nil
	}
	return promhttp.HandlerFor(o.pr, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
}

func (o *Observability) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, fn := range o.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown: %w", errors.Join(errs...))
	}
	return nil
}

func (o *Observability) initMeterProvider(exporter string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var reader sdkmetric.Reader
	switch exporter {
	case "prometheus":
		var err error
		o.pr = prometheus.NewRegistry()
		if reader, err = promexp.New(promexp.WithRegisterer(o.pr), promexp.WithNamespace("pv")); err != nil {
			return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported exporter %q", exporter)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}
