// Package telemetry wires objpool pools into OpenTelemetry: one tracer and
// meter provider per process, tagged with the run, and shared pool gauges.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/coachpo/objpool/config"
	"github.com/coachpo/objpool/internal/pool"
)

const (
	defaultServiceName = "objpool"
	defaultEnvironment = "dev"
	exportInterval     = 15 * time.Second
)

// Option adjusts how Init builds the providers.
type Option func(*options)

type options struct {
	environment string
	runID       string
	readers     []sdkmetric.Reader
}

// WithEnvironment tags the resource and every pool gauge with env.
func WithEnvironment(env string) Option {
	return func(o *options) {
		if trimmed := strings.TrimSpace(env); trimmed != "" {
			o.environment = trimmed
		}
	}
}

// WithRunID tags the resource with the run identifier.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = strings.TrimSpace(id)
	}
}

// WithMetricReader adds a reader to the meter provider. A reader makes Init
// build an SDK meter provider even without an OTLP endpoint.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.readers = append(o.readers, r)
		}
	}
}

// Telemetry holds the process providers and the pool gauge registrations
// made against them.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  apimetric.MeterProvider
	environment    string
	shutdowns      []func(context.Context) error

	mu   sync.Mutex
	regs []apimetric.Registration
}

// Init configures OpenTelemetry from cfg and installs the providers globally.
// Without an OTLP endpoint traces are dropped; metrics are dropped too unless
// a reader was supplied through WithMetricReader.
func Init(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (*Telemetry, error) {
	o := options{environment: defaultEnvironment}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = defaultServiceName
	}

	t := &Telemetry{
		tracerProvider: nooptrace.NewTracerProvider(),
		meterProvider:  noop.NewMeterProvider(),
		environment:    o.environment,
	}
	if endpoint == "" && len(o.readers) == 0 {
		t.install()
		return t, nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(service),
		semconv.DeploymentEnvironment(o.environment),
	}
	if o.runID != "" {
		attrs = append(attrs, AttrRunID.String(o.runID))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	readers := o.readers
	if endpoint != "" {
		host, insecure, err := parseEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(host)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
		if insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}

		traceExp, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExp),
			sdktrace.WithResource(res),
		)
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
		readers = append(readers, sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(exportInterval)))
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	t.meterProvider = mp
	t.shutdowns = append(t.shutdowns, mp.Shutdown)

	t.install()
	return t, nil
}

func (t *Telemetry) install() {
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
}

// Tracer returns a tracer from the process tracer provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.tracerProvider.Tracer(name)
}

// MeterProvider returns the process meter provider.
func (t *Telemetry) MeterProvider() apimetric.MeterProvider {
	return t.meterProvider
}

// ObservePools starts reporting the given pools through the pool gauges.
func (t *Telemetry) ObservePools(sources ...StatsSource) error {
	reg, err := ObservePools(t.meterProvider, t.environment, sources...)
	if err != nil {
		return err
	}
	t.track(reg)
	return nil
}

// ObserveManager starts reporting every pool m holds.
func (t *Telemetry) ObserveManager(m *pool.Manager) error {
	reg, err := ObserveManager(t.meterProvider, m, t.environment)
	if err != nil {
		return err
	}
	t.track(reg)
	return nil
}

func (t *Telemetry) track(reg apimetric.Registration) {
	t.mu.Lock()
	t.regs = append(t.regs, reg)
	t.mu.Unlock()
}

// Shutdown unregisters the pool gauges, then flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	regs := t.regs
	t.regs = nil
	t.mu.Unlock()

	var shutdownErrs []error
	for _, reg := range regs {
		if err := reg.Unregister(); err != nil {
			shutdownErrs = append(shutdownErrs, fmt.Errorf("unregister pool gauges: %w", err))
		}
	}
	for _, shutdown := range t.shutdowns {
		if err := shutdown(ctx); err != nil {
			shutdownErrs = append(shutdownErrs, err)
		}
	}
	return errors.Join(shutdownErrs...)
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = raw
	}
	insecure := parsed.Scheme != "https"
	return host, insecure, nil
}
