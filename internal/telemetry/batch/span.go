package batch

import (
	"context"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanProcessor is an sdktrace batch span processor that keeps Stats.
type SpanProcessor struct {
	processor sdktrace.SpanProcessor
	counter   *counter

	mu      sync.RWMutex
	stopped bool
}

var _ sdktrace.SpanProcessor = (*SpanProcessor)(nil)

// NewSpanProcessor batches spans into exporter. The processor owns the
// exporter and shuts it down with itself.
func NewSpanProcessor(exporter sdktrace.SpanExporter, cfg Config, hooks Hooks) *SpanProcessor {
	cfg = cfg.withDefaults()
	c := &counter{hooks: hooks}
	return &SpanProcessor{
		processor: sdktrace.NewBatchSpanProcessor(
			spanExporter{SpanExporter: exporter, counter: c},
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithBatchTimeout(cfg.ExportInterval),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		),
		counter: c,
	}
}

func (p *SpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	p.processor.OnStart(ctx, s)
}

func (p *SpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsSampled() {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.counter.drop(1)
		return
	}
	p.counter.offer()
	p.processor.OnEnd(s)
}

func (p *SpanProcessor) ForceFlush(ctx context.Context) error {
	return p.counter.settle(func() error { return p.processor.ForceFlush(ctx) })
}

// Shutdown exports the queued spans and stops the processor. Spans ended
// afterwards are counted as dropped.
func (p *SpanProcessor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	return p.counter.settle(func() error { return p.processor.Shutdown(ctx) })
}

func (p *SpanProcessor) Stats() Stats {
	return p.counter.stats()
}
