package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/socialchef/beacon/internal/telemetry/batch"
)

// PipelineMetrics counts what happens to telemetry items inside the
// batching pipelines.
type PipelineMetrics struct {
	exported metric.Int64Counter
	failed   metric.Int64Counter
	dropped  metric.Int64Counter
}

func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	exported, err := meter.Int64Counter(
		"telemetry.pipeline.exported",
		metric.WithDescription("Telemetry items delivered to the collector"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter(
		"telemetry.pipeline.failed",
		metric.WithDescription("Telemetry items lost to export failures"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"telemetry.pipeline.dropped",
		metric.WithDescription("Telemetry items rejected by a full queue"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		exported: exported,
		failed:   failed,
		dropped:  dropped,
	}, nil
}

// Hooks returns batch hooks that record into m for the given signal and
// forward failures to onFailure.
func (m *PipelineMetrics) Hooks(signal string, onFailure func(err error, n int)) batch.Hooks {
	attrs := metric.WithAttributes(attribute.String("signal", signal))
	hooks := batch.Hooks{OnFailed: onFailure}
	if m == nil {
		return hooks
	}

	hooks.OnExported = func(n int) {
		m.exported.Add(context.Background(), int64(n), attrs)
	}
	hooks.OnFailed = func(err error, n int) {
		m.failed.Add(context.Background(), int64(n), attrs)
		if onFailure != nil {
			onFailure(err, n)
		}
	}
	hooks.OnDropped = func(n int) {
		m.dropped.Add(context.Background(), int64(n), attrs)
	}
	return hooks
}
