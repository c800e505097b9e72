package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

// Layer observes every event written through a Chain. Each layer decides
// on its own whether to act on an event.
type Layer interface {
	// Enabled reports whether events at level should be dispatched at all.
	// A single layer returning false suppresses the event for every layer.
	Enabled(ctx context.Context, level slog.Level) bool
	// OnSpanStart is called when a span opens. The returned context is
	// passed to the next layer and becomes the span's context.
	OnSpanStart(ctx context.Context, name string, attrs []attribute.KeyValue) context.Context
	// OnSpanEnd is called exactly once per started span with the span's
	// context and the error it ended with, if any.
	OnSpanEnd(ctx context.Context, err error)
	OnLog(ctx context.Context, r slog.Record) error
	OnMetric(ctx context.Context, m Measurement)
}

// NopLayer ignores every event. Embed it to implement only the callbacks
// a layer cares about.
type NopLayer struct{}

func (NopLayer) Enabled(context.Context, slog.Level) bool { return true }

func (NopLayer) OnSpanStart(ctx context.Context, _ string, _ []attribute.KeyValue) context.Context {
	return ctx
}

func (NopLayer) OnSpanEnd(context.Context, error) {}

func (NopLayer) OnLog(context.Context, slog.Record) error { return nil }

func (NopLayer) OnMetric(context.Context, Measurement) {}

// MetricKind selects the instrument a Measurement is recorded with.
type MetricKind int

const (
	// MonotonicCounter only ever increases.
	MonotonicCounter MetricKind = iota
	// Counter may go up and down.
	Counter
	Histogram
)

// Attribute key prefixes that turn a log attribute into a measurement.
const (
	MonotonicCounterPrefix = "monotonic_counter."
	CounterPrefix          = "counter."
	HistogramPrefix        = "histogram."
)

// Measurement is one recorded metric value.
type Measurement struct {
	Kind  MetricKind
	Name  string
	// Float is set when the value is fractional; Int is used otherwise.
	Float bool
	Int   int64
	Value float64
	Attrs []attribute.KeyValue
}

// Int64Measurement returns an integer measurement.
func Int64Measurement(kind MetricKind, name string, v int64, attrs ...attribute.KeyValue) Measurement {
	return Measurement{Kind: kind, Name: name, Int: v, Value: float64(v), Attrs: attrs}
}

// Float64Measurement returns a fractional measurement.
func Float64Measurement(kind MetricKind, name string, v float64, attrs ...attribute.KeyValue) Measurement {
	return Measurement{Kind: kind, Name: name, Float: true, Value: v, Attrs: attrs}
}
