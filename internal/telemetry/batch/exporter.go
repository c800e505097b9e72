package batch

import (
	"context"
	"fmt"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

// guard runs one export, turning a panic into an ExportFailure, and records
// the outcome. The error is consumed here.
func guard(c *counter, signal string, n int, export func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.NewExportFailure(signal, "exporter panicked", fmt.Errorf("%v", r))
			}
		}()
		return export()
	}()
	c.done(n, err)
}

// spanExporter counts every batch the span processor hands to the wrapped exporter.
type spanExporter struct {
	sdktrace.SpanExporter
	counter *counter
}

func (e spanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	guard(e.counter, "traces", len(spans), func() error {
		return e.SpanExporter.ExportSpans(ctx, spans)
	})
	return nil
}

// logExporter counts every batch the log processor hands to the wrapped exporter.
type logExporter struct {
	sdklog.Exporter
	counter *counter
}

func (e logExporter) Export(ctx context.Context, records []sdklog.Record) error {
	guard(e.counter, "logs", len(records), func() error {
		return e.Exporter.Export(ctx, records)
	})
	return nil
}
