package observe

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/socialchef/beacon/internal/telemetry"
)

// Span attributes interpreted by the trace layer.
const (
	// AttrSpanName replaces the name the span was opened with.
	AttrSpanName = "otel.name"
	// AttrSpanKind selects the span kind: server, client, producer,
	// consumer or internal.
	AttrSpanKind = "otel.kind"
)

// TraceLayer turns chain spans into OTel spans and log records into span
// events.
type TraceLayer struct {
	NopLayer
	tracer trace.Tracer
}

func NewTraceLayer(tp trace.TracerProvider) *TraceLayer {
	return &TraceLayer{tracer: tp.Tracer(telemetry.ScopeName)}
}

func (l *TraceLayer) OnSpanStart(ctx context.Context, name string, attrs []attribute.KeyValue) context.Context {
	kind := trace.SpanKindInternal
	for _, kv := range attrs {
		switch string(kv.Key) {
		case AttrSpanName:
			if v := kv.Value.Emit(); v != "" {
				name = v
			}
		case AttrSpanKind:
			kind = parseSpanKind(kv.Value.Emit())
		}
	}

	ctx, _ = l.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	return ctx
}

func (l *TraceLayer) OnSpanEnd(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// OnLog records r as an event on the active span. Error level records
// mark the span as failed, and error values among the attributes are
// recorded as exceptions.
func (l *TraceLayer) OnLog(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, r.NumAttrs()+5)
	attrs = append(attrs, attribute.String("level", r.Level.String()))
	attrs = append(attrs, codeLocation(r.PC)...)
	attrs = append(attrs, attributesFromRecord(r)...)
	if r.Level >= slog.LevelError {
		attrs = append(attrs, semconv.ExceptionMessage(r.Message))
		span.SetStatus(codes.Error, r.Message)
	}
	span.AddEvent(r.Message, trace.WithTimestamp(r.Time), trace.WithAttributes(attrs...))

	for _, err := range errorsFromRecord(r) {
		span.RecordError(err, trace.WithTimestamp(r.Time))
	}
	return nil
}

func parseSpanKind(s string) trace.SpanKind {
	switch strings.ToLower(s) {
	case "server":
		return trace.SpanKindServer
	case "client":
		return trace.SpanKindClient
	case "producer":
		return trace.SpanKindProducer
	case "consumer":
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}

func codeLocation(pc uintptr) []attribute.KeyValue {
	if pc == 0 {
		return nil
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.Function == "" {
		return nil
	}
	return []attribute.KeyValue{
		semconv.CodeFunction(frame.Function),
		semconv.CodeFilepath(frame.File),
		semconv.CodeLineNumber(frame.Line),
	}
}
