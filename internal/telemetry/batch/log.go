package batch

import (
	"context"
	"sync"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogProcessor is an sdklog BatchProcessor that keeps Stats.
type LogProcessor struct {
	processor *sdklog.BatchProcessor
	counter   *counter

	mu      sync.RWMutex
	stopped bool
}

var _ sdklog.Processor = (*LogProcessor)(nil)

// NewLogProcessor batches log records into exporter. The processor owns the
// exporter and shuts it down with itself.
func NewLogProcessor(exporter sdklog.Exporter, cfg Config, hooks Hooks) *LogProcessor {
	cfg = cfg.withDefaults()
	c := &counter{hooks: hooks}
	return &LogProcessor{
		processor: sdklog.NewBatchProcessor(
			logExporter{Exporter: exporter, counter: c},
			sdklog.WithMaxQueueSize(cfg.MaxQueueSize),
			sdklog.WithExportMaxBatchSize(cfg.MaxExportBatchSize),
			sdklog.WithExportInterval(cfg.ExportInterval),
			sdklog.WithExportTimeout(cfg.ExportTimeout),
		),
		counter: c,
	}
}

func (p *LogProcessor) Enabled(ctx context.Context, param sdklog.EnabledParameters) bool {
	return p.processor.Enabled(ctx, param)
}

func (p *LogProcessor) OnEmit(ctx context.Context, record *sdklog.Record) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.counter.drop(1)
		return nil
	}
	p.counter.offer()
	return p.processor.OnEmit(ctx, record)
}

func (p *LogProcessor) ForceFlush(ctx context.Context) error {
	return p.counter.settle(func() error { return p.processor.ForceFlush(ctx) })
}

// Shutdown exports the queued records and stops the processor. Records
// emitted afterwards are counted as dropped.
func (p *LogProcessor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	return p.counter.settle(func() error { return p.processor.Shutdown(ctx) })
}

func (p *LogProcessor) Stats() Stats {
	return p.counter.stats()
}
