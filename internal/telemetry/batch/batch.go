// Package batch puts the SDK batch processors between telemetry producers
// and the network exporters and accounts for every item handed to them.
//
// Spans go through the sdktrace batch span processor. When its queue is full
// the newest span is dropped and the accepted spans keep their order. Log
// records go through the sdklog BatchProcessor, which drops the oldest
// record instead. Neither blocks the producer. Exporter errors and panics
// are reported through Hooks and never returned to the processor.
package batch

import (
	"sync/atomic"
	"time"
)

const (
	DefaultMaxQueueSize       = 2048
	DefaultMaxExportBatchSize = 512
	DefaultExportInterval     = 5 * time.Second
	DefaultExportTimeout      = 30 * time.Second
)

// Config holds the sizing and timing of a pipeline. Zero values select the defaults.
type Config struct {
	MaxQueueSize       int
	MaxExportBatchSize int
	ExportInterval     time.Duration
	ExportTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxExportBatchSize <= 0 {
		c.MaxExportBatchSize = DefaultMaxExportBatchSize
	}
	if c.MaxExportBatchSize > c.MaxQueueSize {
		c.MaxExportBatchSize = c.MaxQueueSize
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = DefaultExportInterval
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = DefaultExportTimeout
	}
	return c
}

// Hooks observe the outcome of a pipeline. All fields are optional.
type Hooks struct {
	// OnExported is called with the size of each batch that was sent successfully.
	OnExported func(n int)
	// OnFailed is called with the error and the size of each batch that was lost.
	OnFailed func(err error, n int)
	// OnDropped is called with the number of items the full queue discarded.
	OnDropped func(n int)
}

// Stats is a snapshot of one pipeline's counters.
type Stats struct {
	Offered  int64
	Exported int64
	Failed   int64
	Dropped  int64
}

// counter tracks the items of one pipeline from hand-off to export.
type counter struct {
	hooks Hooks

	offered  atomic.Int64
	exported atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

func (c *counter) offer() {
	c.offered.Add(1)
}

func (c *counter) drop(n int) {
	c.dropped.Add(int64(n))
	if c.hooks.OnDropped != nil {
		c.hooks.OnDropped(n)
	}
}

func (c *counter) done(n int, err error) {
	if err != nil {
		c.failed.Add(int64(n))
		if c.hooks.OnFailed != nil {
			c.hooks.OnFailed(err, n)
		}
		return
	}
	c.exported.Add(int64(n))
	if c.hooks.OnExported != nil {
		c.hooks.OnExported(n)
	}
}

// settle runs a successful flush and then attributes to the queue every
// item offered before it that was neither exported nor failed. Items
// offered during the flush may be exported by it, so the result is a lower
// bound that is exact when producers are idle.
func (c *counter) settle(flush func() error) error {
	offered := c.offered.Load()
	if err := flush(); err != nil {
		return err
	}
	missing := offered - c.exported.Load() - c.failed.Load()
	for {
		prev := c.dropped.Load()
		if missing <= prev {
			return nil
		}
		if c.dropped.CompareAndSwap(prev, missing) {
			if c.hooks.OnDropped != nil {
				c.hooks.OnDropped(int(missing - prev))
			}
			return nil
		}
	}
}

func (c *counter) stats() Stats {
	return Stats{
		Offered:  c.offered.Load(),
		Exported: c.exported.Load(),
		Failed:   c.failed.Load(),
		Dropped:  c.dropped.Load(),
	}
}
