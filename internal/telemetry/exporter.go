package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	apperrors "github.com/socialchef/beacon/internal/errors"
	"github.com/socialchef/beacon/internal/httpclient"
)

// Encoding selects the OTLP/HTTP payload format.
type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingProtobuf Encoding = "protobuf"
)

// ExporterConfig describes how to reach the collector for one signal.
type ExporterConfig struct {
	Endpoint   string
	LicenseKey string
	Encoding   Encoding
	Timeout    time.Duration
	// HTTPClient overrides the default exporter client.
	HTTPClient *http.Client
}

func (c ExporterConfig) headers() map[string]string {
	return map[string]string{LicenseKeyHeader: c.LicenseKey}
}

func (c ExporterConfig) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpclient.NewExporterClient(c.Timeout, nil)
}

func (c ExporterConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return httpclient.DefaultTimeout
}

// prepare validates the configuration and resolves the signal URL.
func (c ExporterConfig) prepare(s Signal) (string, error) {
	switch c.Encoding {
	case EncodingJSON, EncodingProtobuf:
	case "":
		return "", apperrors.NewConfigError("encoding is not set", "INVALID_ENCODING",
			"Set OTEL_EXPORTER_OTLP_ENCODING to json or protobuf.").WithSignal(s.String())
	default:
		return "", apperrors.NewConfigError(fmt.Sprintf("unsupported encoding %q", c.Encoding), "INVALID_ENCODING",
			"Set OTEL_EXPORTER_OTLP_ENCODING to json or protobuf.").WithSignal(s.String())
	}
	if c.LicenseKey == "" {
		return "", apperrors.NewConfigError("license key is empty", "MISSING_LICENSE_KEY",
			"Set NEWRELIC_LICENSE_KEY.").WithSignal(s.String())
	}
	return SignalURL(c.Endpoint, s)
}

func (c ExporterConfig) sender(s Signal, url string) *jsonSender {
	return &jsonSender{signal: s, url: url, headers: c.headers(), client: c.client()}
}

// NewTraceExporter builds the span exporter. Construction never contacts
// the collector; reachability problems surface at send time.
func NewTraceExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	url, err := cfg.prepare(SignalTrace)
	if err != nil {
		return nil, err
	}

	if cfg.Encoding == EncodingProtobuf {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(url),
			otlptracehttp.WithHeaders(cfg.headers()),
			otlptracehttp.WithHTTPClient(cfg.client()),
			otlptracehttp.WithTimeout(cfg.timeout()),
			otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
		)
	}
	return otlptrace.New(ctx, &traceClient{sender: cfg.sender(SignalTrace, url)})
}

// NewMetricExporter builds the metric exporter used by the periodic reader.
func NewMetricExporter(ctx context.Context, cfg ExporterConfig) (sdkmetric.Exporter, error) {
	url, err := cfg.prepare(SignalMetric)
	if err != nil {
		return nil, err
	}

	if cfg.Encoding == EncodingProtobuf {
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(url),
			otlpmetrichttp.WithHeaders(cfg.headers()),
			otlpmetrichttp.WithHTTPClient(cfg.client()),
			otlpmetrichttp.WithTimeout(cfg.timeout()),
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
			otlpmetrichttp.WithTemporalitySelector(DeltaTemporality),
		)
	}
	return &metricExporter{sender: cfg.sender(SignalMetric, url)}, nil
}

// NewLogExporter builds the log record exporter.
func NewLogExporter(ctx context.Context, cfg ExporterConfig) (sdklog.Exporter, error) {
	url, err := cfg.prepare(SignalLog)
	if err != nil {
		return nil, err
	}

	if cfg.Encoding == EncodingProtobuf {
		return otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(url),
			otlploghttp.WithHeaders(cfg.headers()),
			otlploghttp.WithHTTPClient(cfg.client()),
			otlploghttp.WithTimeout(cfg.timeout()),
			otlploghttp.WithRetry(otlploghttp.RetryConfig{Enabled: false}),
		)
	}
	return &logExporter{sender: cfg.sender(SignalLog, url)}, nil
}

// DeltaTemporality reports counters and histograms as deltas, which is what
// New Relic ingests natively. Up-down counters and gauges stay cumulative.
func DeltaTemporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	switch kind {
	case sdkmetric.InstrumentKindCounter,
		sdkmetric.InstrumentKindObservableCounter,
		sdkmetric.InstrumentKindHistogram:
		return metricdata.DeltaTemporality
	default:
		return metricdata.CumulativeTemporality
	}
}

// traceClient plugs the JSON sender into the otlptrace exporter, which
// handles the span to protobuf conversion.
type traceClient struct {
	sender *jsonSender
}

var _ otlptrace.Client = (*traceClient)(nil)

func (c *traceClient) Start(context.Context) error { return nil }

func (c *traceClient) Stop(context.Context) error {
	c.sender.close()
	return nil
}

func (c *traceClient) UploadTraces(ctx context.Context, spans []*tracepb.ResourceSpans) error {
	if len(spans) == 0 {
		return nil
	}
	return c.sender.send(ctx, &coltracepb.ExportTraceServiceRequest{ResourceSpans: spans})
}

type metricExporter struct {
	sender   *jsonSender
	shutdown atomic.Bool
}

var _ sdkmetric.Exporter = (*metricExporter)(nil)

func (e *metricExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return DeltaTemporality(kind)
}

func (e *metricExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (e *metricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if e.shutdown.Load() {
		return sdkmetric.ErrExporterShutdown
	}
	pb := resourceMetricsProto(rm)
	if len(pb.ScopeMetrics) == 0 {
		return nil
	}
	return e.sender.send(ctx, &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{pb},
	})
}

func (e *metricExporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

func (e *metricExporter) Shutdown(ctx context.Context) error {
	if e.shutdown.CompareAndSwap(false, true) {
		e.sender.close()
	}
	return ctx.Err()
}

type logExporter struct {
	sender   *jsonSender
	shutdown atomic.Bool
}

var _ sdklog.Exporter = (*logExporter)(nil)

func (e *logExporter) Export(ctx context.Context, records []sdklog.Record) error {
	if e.shutdown.Load() || len(records) == 0 {
		return nil
	}
	return e.sender.send(ctx, &collogspb.ExportLogsServiceRequest{ResourceLogs: logsProto(records)})
}

func (e *logExporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

func (e *logExporter) Shutdown(ctx context.Context) error {
	if e.shutdown.CompareAndSwap(false, true) {
		e.sender.close()
	}
	return ctx.Err()
}
