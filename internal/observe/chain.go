// Package observe routes spans, log records and measurements through an
// ordered list of layers. The Chain is also a slog.Handler, so slog calls
// are the way application code emits log records and metric events.
package observe

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// Chain fans every event out to its layers in order.
type Chain struct {
	layers []Layer
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*Chain)(nil)

// NewChain returns a chain dispatching to layers in the given order.
func NewChain(layers ...Layer) *Chain {
	return &Chain{layers: slices.Clone(layers)}
}

// Layers returns the layers in dispatch order.
func (c *Chain) Layers() []Layer {
	return slices.Clone(c.layers)
}

// Enabled reports whether every layer accepts events at level.
func (c *Chain) Enabled(ctx context.Context, level slog.Level) bool {
	for _, l := range c.layers {
		if !l.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

// Handle dispatches r to every layer. Attributes carrying one of the
// metric prefixes are additionally dispatched as measurements.
func (c *Chain) Handle(ctx context.Context, r slog.Record) error {
	rec := c.resolve(r)

	var errs []error
	for _, l := range c.layers {
		if err := l.OnLog(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range measurementsFromRecord(rec) {
		c.Measure(ctx, m)
	}
	return errors.Join(errs...)
}

func (c *Chain) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return c
	}
	n := c.clone()
	n.attrs = append(n.attrs, nest(c.groups, attrs)...)
	return n
}

func (c *Chain) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	n := c.clone()
	n.groups = append(n.groups, name)
	return n
}

func (c *Chain) clone() *Chain {
	return &Chain{
		layers: c.layers,
		attrs:  slices.Clip(c.attrs),
		groups: slices.Clip(c.groups),
	}
}

// resolve folds the handler's bound attributes and groups into a fresh record.
func (c *Chain) resolve(r slog.Record) slog.Record {
	if len(c.attrs) == 0 && len(c.groups) == 0 {
		return r
	}
	rec := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	rec.AddAttrs(c.attrs...)

	own := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		own = append(own, a)
		return true
	})
	if len(own) > 0 {
		rec.AddAttrs(nest(c.groups, own)...)
	}
	return rec
}

func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	for i := len(groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: groups[i], Value: slog.GroupValue(attrs...)}}
	}
	return attrs
}

// Measure dispatches m to every layer. Measurements are not leveled and
// are never filtered.
func (c *Chain) Measure(ctx context.Context, m Measurement) {
	for _, l := range c.layers {
		l.OnMetric(ctx, m)
	}
}

// Start opens an info level span named name as a child of the span in ctx.
// The returned context carries the new span; callers must End it, usually
// with defer.
func (c *Chain) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	return c.StartAt(ctx, slog.LevelInfo, name, attrs...)
}

// StartAt is Start with an explicit level. A span whose level is filtered
// out is not opened, and the returned Span is inert.
func (c *Chain) StartAt(ctx context.Context, level slog.Level, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	if !c.Enabled(ctx, level) {
		return ctx, &Span{ctx: ctx}
	}
	for _, l := range c.layers {
		ctx = l.OnSpanStart(ctx, name, attrs)
	}
	return ctx, &Span{chain: c, ctx: ctx}
}

// Span is the handle of an open span.
type Span struct {
	chain *Chain
	ctx   context.Context

	mu    sync.Mutex
	err   error
	ended bool
}

// Context returns the context the span was opened with.
func (s *Span) Context() context.Context {
	return s.ctx
}

// Recording reports whether the span was opened by the layers.
func (s *Span) Recording() bool {
	return s.chain != nil
}

// Fail marks the span as failed; the error is reported when it ends.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	} else {
		s.err = errors.Join(s.err, err)
	}
	s.mu.Unlock()
}

// End closes the span. Only the first call has an effect.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	err := s.err
	s.mu.Unlock()

	if s.chain == nil {
		return
	}
	for i := len(s.chain.layers) - 1; i >= 0; i-- {
		s.chain.layers[i].OnSpanEnd(s.ctx, err)
	}
}
