package telemetry

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Diagnostics reports telemetry-internal failures on the local console.
// It must never write through the observation chain, otherwise a failing
// log export would produce more log records to export.
type Diagnostics struct {
	logger    *slog.Logger
	sometimes rate.Sometimes
	count     atomic.Int64
}

// NewDiagnostics reports through logger, or through a stderr text logger when nil.
func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Diagnostics{
		logger:    logger,
		sometimes: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Report logs err, at most a few times and then once per interval.
func (d *Diagnostics) Report(msg string, err error, attrs ...any) {
	total := d.count.Add(1)
	d.sometimes.Do(func() {
		args := append([]any{"error", err, "occurrences", total}, attrs...)
		d.logger.Warn(msg, args...)
	})
}

// Handle implements otel.ErrorHandler.
func (d *Diagnostics) Handle(err error) {
	d.Report("opentelemetry error", err)
}

// Count returns the number of reported failures, including suppressed ones.
func (d *Diagnostics) Count() int64 {
	return d.count.Load()
}
