package telemetry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/socialchef/beacon/internal/errors"
	"github.com/socialchef/beacon/internal/metrics"
	"github.com/socialchef/beacon/internal/telemetry/batch"
)

// DefaultMetricInterval is how often the periodic reader collects and exports.
const DefaultMetricInterval = 60 * time.Second

// ScopeName is the instrumentation scope used for the service's own telemetry.
const ScopeName = "github.com/socialchef/beacon"

// Config holds everything needed to build the three signal pipelines.
type Config struct {
	Endpoint    string
	LicenseKey  string
	ServiceName string
	HostName    string
	Encoding    Encoding

	Batch          batch.Config
	MetricInterval time.Duration

	// HTTPClient overrides the exporter client; mostly useful in tests.
	HTTPClient *http.Client
	// Diagnostics receives export failures. Defaults to a stderr logger.
	Diagnostics *Diagnostics
}

func (c Config) exporterConfig() ExporterConfig {
	return ExporterConfig{
		Endpoint:   c.Endpoint,
		LicenseKey: c.LicenseKey,
		Encoding:   c.Encoding,
		HTTPClient: c.HTTPClient,
	}
}

// Providers owns one tracer, meter and logger provider sharing a resource.
type Providers struct {
	Resource       *resource.Resource
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	spans *batch.SpanProcessor
	logs  *batch.LogProcessor
	diag  *Diagnostics

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds the exporters and providers. It does not publish anything
// globally. Any exporter failure aborts the whole construction: the
// exporters built so far are shut down and an InitError is returned.
func New(ctx context.Context, cfg Config) (*Providers, error) {
	diag := cfg.Diagnostics
	if diag == nil {
		diag = NewDiagnostics(nil)
	}
	expCfg := cfg.exporterConfig()

	traceExporter, err := NewTraceExporter(ctx, expCfg)
	if err != nil {
		return nil, apperrors.NewInitError("failed to build trace exporter", "INIT_TRACE_EXPORTER", err)
	}

	metricExporter, err := NewMetricExporter(ctx, expCfg)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, apperrors.NewInitError("failed to build metric exporter", "INIT_METRIC_EXPORTER", err)
	}

	logExporter, err := NewLogExporter(ctx, expCfg)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = metricExporter.Shutdown(ctx)
		return nil, apperrors.NewInitError("failed to build log exporter", "INIT_LOG_EXPORTER", err)
	}

	res := NewResource(cfg.ServiceName, cfg.HostName)

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
	)

	pipelineMetrics, err := metrics.NewPipelineMetrics(mp.Meter(ScopeName))
	if err != nil {
		// Instruments are optional; the pipelines work without them.
		diag.Report("failed to create pipeline metrics", err)
		pipelineMetrics = nil
	}

	spans := batch.NewSpanProcessor(traceExporter, cfg.Batch, pipelineHooks(pipelineMetrics, diag, SignalTrace))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(spans),
		sdktrace.WithResource(res),
	)

	logs := batch.NewLogProcessor(logExporter, cfg.Batch, pipelineHooks(pipelineMetrics, diag, SignalLog))
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(logs),
		sdklog.WithResource(res),
	)

	return &Providers{
		Resource:       res,
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		spans:          spans,
		logs:           logs,
		diag:           diag,
	}, nil
}

func pipelineHooks(m *metrics.PipelineMetrics, diag *Diagnostics, s Signal) batch.Hooks {
	hooks := m.Hooks(s.String(), func(err error, n int) {
		diag.Report("telemetry export failed", err, "signal", s.String(), "items", n)
	})
	onDropped := hooks.OnDropped
	hooks.OnDropped = func(n int) {
		if onDropped != nil {
			onDropped(n)
		}
		diag.Report("telemetry queue full", errQueueFull, "signal", s.String(), "items", n)
	}
	return hooks
}

var errQueueFull = errors.New("queue full, items dropped")

// Tracer returns a tracer from the owned tracer provider.
func (p *Providers) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return p.TracerProvider.Tracer(name, opts...)
}

// Meter returns a meter from the owned meter provider.
func (p *Providers) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return p.MeterProvider.Meter(name, opts...)
}

// Logger returns a logger from the owned logger provider.
func (p *Providers) Logger(name string, opts ...log.LoggerOption) log.Logger {
	return p.LoggerProvider.Logger(name, opts...)
}

// Diagnostics returns the failure reporter shared by the pipelines.
func (p *Providers) Diagnostics() *Diagnostics {
	return p.diag
}

// PipelineStats is a snapshot of one batching pipeline's counters. Dropped
// is brought up to date by ForceFlush and Shutdown.
type PipelineStats = batch.Stats

// Stats returns counters for the trace and log pipelines.
func (p *Providers) Stats() map[Signal]PipelineStats {
	return map[Signal]PipelineStats{
		SignalTrace: p.spans.Stats(),
		SignalLog:   p.logs.Stats(),
	}
}

// ForceFlush exports everything buffered in the three pipelines.
func (p *Providers) ForceFlush(ctx context.Context) error {
	return errors.Join(
		p.TracerProvider.ForceFlush(ctx),
		p.LoggerProvider.ForceFlush(ctx),
		p.swallowExportFailure(p.MeterProvider.ForceFlush(ctx)),
	)
}

// Shutdown drains and stops the pipelines in reverse order of creation:
// logs, traces, then metrics, so the last metric export carries the
// pipelines' own counters.
func (p *Providers) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		logErr := p.LoggerProvider.Shutdown(ctx)
		traceErr := p.TracerProvider.Shutdown(ctx)
		metricErr := p.swallowExportFailure(p.MeterProvider.Shutdown(ctx))
		p.shutdownErr = errors.Join(logErr, traceErr, metricErr)
	})
	return p.shutdownErr
}

// swallowExportFailure reports a failed final export instead of returning
// it. The periodic reader surfaces export errors from Shutdown, while the
// span and log pipelines already drop them.
func (p *Providers) swallowExportFailure(err error) error {
	if err != nil && apperrors.IsExportFailure(err) {
		p.diag.Report("final telemetry export failed", err)
		return nil
	}
	return err
}

var (
	publishOnce sync.Once
	published   atomic.Pointer[Providers]
)

// Publish installs p as the process-wide tracer, meter and logger provider,
// sets the W3C trace context propagator and routes SDK errors to the
// diagnostics logger. The global slots are write-once: a second call, with
// the same or different providers, is rejected and leaves the first
// publication in place.
func (p *Providers) Publish() error {
	ok := false
	publishOnce.Do(func() {
		otel.SetTracerProvider(p.TracerProvider)
		otel.SetMeterProvider(p.MeterProvider)
		global.SetLoggerProvider(p.LoggerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otel.SetErrorHandler(otel.ErrorHandlerFunc(p.diag.Handle))
		published.Store(p)
		ok = true
	})
	if !ok {
		return apperrors.NewInitError("telemetry providers are already published", "ALREADY_PUBLISHED", nil)
	}
	return nil
}

// Published returns the providers installed by Publish, or nil.
func Published() *Providers {
	return published.Load()
}

// Init builds the providers and publishes them globally.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	p, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Publish(); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	return p, nil
}

// Tracer returns a tracer from the globally published provider. Code that
// has a *Providers at hand should use its Tracer method instead.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
