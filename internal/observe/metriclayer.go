package observe

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/socialchef/beacon/internal/telemetry"
)

// MetricsLayer records measurements with OTel instruments. Instruments
// are created on first use and cached by name.
type MetricsLayer struct {
	NopLayer
	meter metric.Meter

	mu          sync.RWMutex
	instruments map[instrumentKey]any
}

type instrumentKey struct {
	kind  MetricKind
	float bool
	name  string
}

func NewMetricsLayer(mp metric.MeterProvider) *MetricsLayer {
	return &MetricsLayer{
		meter:       mp.Meter(telemetry.ScopeName),
		instruments: make(map[instrumentKey]any),
	}
}

func (l *MetricsLayer) OnMetric(ctx context.Context, m Measurement) {
	if m.Kind == MonotonicCounter && m.Value < 0 {
		otel.Handle(fmt.Errorf("monotonic counter %q: negative value %v ignored", m.Name, m.Value))
		return
	}

	inst, err := l.instrument(instrumentKey{kind: m.Kind, float: m.Float, name: m.Name})
	if err != nil {
		otel.Handle(err)
		return
	}

	opt := metric.WithAttributes(m.Attrs...)
	switch i := inst.(type) {
	case metric.Int64Counter:
		i.Add(ctx, m.Int, opt)
	case metric.Float64Counter:
		i.Add(ctx, m.Value, opt)
	case metric.Int64UpDownCounter:
		i.Add(ctx, m.Int, opt)
	case metric.Float64UpDownCounter:
		i.Add(ctx, m.Value, opt)
	case metric.Int64Histogram:
		i.Record(ctx, m.Int, opt)
	case metric.Float64Histogram:
		i.Record(ctx, m.Value, opt)
	}
}

func (l *MetricsLayer) instrument(key instrumentKey) (any, error) {
	l.mu.RLock()
	inst, ok := l.instruments[key]
	l.mu.RUnlock()
	if ok {
		return inst, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if inst, ok := l.instruments[key]; ok {
		return inst, nil
	}

	var err error
	switch {
	case key.kind == MonotonicCounter && key.float:
		inst, err = l.meter.Float64Counter(key.name)
	case key.kind == MonotonicCounter:
		inst, err = l.meter.Int64Counter(key.name)
	case key.kind == Counter && key.float:
		inst, err = l.meter.Float64UpDownCounter(key.name)
	case key.kind == Counter:
		inst, err = l.meter.Int64UpDownCounter(key.name)
	case key.kind == Histogram && key.float:
		inst, err = l.meter.Float64Histogram(key.name)
	case key.kind == Histogram:
		inst, err = l.meter.Int64Histogram(key.name)
	default:
		return nil, fmt.Errorf("unknown metric kind %d for %q", key.kind, key.name)
	}
	if err != nil {
		return nil, err
	}
	l.instruments[key] = inst
	return inst, nil
}
