// Package httpclient builds the HTTP clients used to ship telemetry to the
// collector.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultTimeout bounds a single export request.
const DefaultTimeout = 10 * time.Second

// DefaultTransport is the base transport used by exporter clients.
var DefaultTransport = http.DefaultTransport

// newExporterTransport records client request metrics for collector calls.
// Spans are disabled: tracing the exporter's own requests would feed every
// export back into the trace pipeline.
func newExporterTransport(base http.RoundTripper, mp metric.MeterProvider) http.RoundTripper {
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(tracenoop.NewTracerProvider()),
	}
	if mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}
	return otelhttp.NewTransport(base, opts...)
}

// NewExporterClient returns an http.Client for collector requests. A nil
// meter provider falls back to the global one.
func NewExporterClient(timeout time.Duration, mp metric.MeterProvider) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := DefaultTransport
	if t, ok := base.(*http.Transport); ok {
		base = t.Clone()
	}
	return &http.Client{
		Transport: newExporterTransport(base, mp),
		Timeout:   timeout,
	}
}
