package observe

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConsoleLayer writes every record to a local slog handler, tagged with
// the path of open spans and the trace/span ids.
type ConsoleLayer struct {
	NopLayer
	handler slog.Handler
}

// NewConsoleLayer renders JSON when env is "production" and text
// otherwise. A nil w writes to stdout. Filtering is left to the chain,
// so the handler itself accepts every level.
func NewConsoleLayer(w io.Writer, env string) *ConsoleLayer {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: LevelTrace}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &ConsoleLayer{handler: handler}
}

type spanPathKey struct{}

func (l *ConsoleLayer) OnSpanStart(ctx context.Context, name string, _ []attribute.KeyValue) context.Context {
	parent, _ := ctx.Value(spanPathKey{}).([]string)
	return context.WithValue(ctx, spanPathKey{}, append(slices.Clip(parent), name))
}

func (l *ConsoleLayer) OnLog(ctx context.Context, r slog.Record) error {
	r = r.Clone()
	if path := SpanPath(ctx); path != "" {
		r.AddAttrs(slog.String("span", path))
	}
	if a := WithTraceContext(ctx); !a.Equal(slog.Attr{}) {
		r.AddAttrs(a)
	}
	return l.handler.Handle(ctx, r)
}

// SpanPath returns the names of the spans open in ctx, outermost first,
// joined with ':'.
func SpanPath(ctx context.Context) string {
	path, _ := ctx.Value(spanPathKey{}).([]string)
	return strings.Join(path, ":")
}

// WithTraceContext returns a slog.Attr containing trace_id and span_id if available in the context.
func WithTraceContext(ctx context.Context) slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return slog.Attr{}
	}
	return slog.Group("trace",
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
