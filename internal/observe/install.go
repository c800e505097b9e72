package observe

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

// Options configures the standard chain. Nil providers fall back to the
// globally registered ones.
type Options struct {
	Env     string
	Level   slog.Level
	Console io.Writer

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider
}

// New builds the standard chain. Layer order is significant: console,
// level filter, trace bridge, metrics bridge, log bridge.
func New(opts Options) *Chain {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	lp := opts.LoggerProvider
	if lp == nil {
		lp = global.GetLoggerProvider()
	}

	return NewChain(
		NewConsoleLayer(opts.Console, opts.Env),
		NewFilterLayer(opts.Level),
		NewTraceLayer(tp),
		NewMetricsLayer(mp),
		NewLogLayer(lp),
	)
}

var (
	installOnce sync.Once
	installed   atomic.Pointer[Chain]
)

// Install makes c the process-wide sink: the slog default logger writes
// through it and the package level Start opens spans with it. Only the
// first call takes effect; later calls return an InitError.
func Install(c *Chain) error {
	ok := false
	installOnce.Do(func() {
		installed.Store(c)
		slog.SetDefault(slog.New(c))
		ok = true
	})
	if !ok {
		return apperrors.NewInitError("observation chain is already installed", "ALREADY_INSTALLED", nil)
	}
	return nil
}

// Installed returns the chain set by Install, or nil.
func Installed() *Chain {
	return installed.Load()
}

// Start opens a span through the installed chain. Without one, the span
// is inert and ctx is returned unchanged.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	c := installed.Load()
	if c == nil {
		return ctx, &Span{ctx: ctx}
	}
	return c.Start(ctx, name, attrs...)
}
