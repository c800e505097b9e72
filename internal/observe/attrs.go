package observe

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
)

// attributesFromRecord flattens the record's attributes into OTel
// attributes. Group members get dotted keys.
func attributesFromRecord(r slog.Record) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		out = appendAttribute(out, "", a)
		return true
	})
	return out
}

func appendAttribute(dst []attribute.KeyValue, prefix string, a slog.Attr) []attribute.KeyValue {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + a.Key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		if a.Key == "" {
			key = prefix
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttribute(dst, key, ga)
		}
		return dst
	case slog.KindString:
		return append(dst, attribute.String(key, a.Value.String()))
	case slog.KindInt64:
		return append(dst, attribute.Int64(key, a.Value.Int64()))
	case slog.KindUint64:
		if u := a.Value.Uint64(); u <= math.MaxInt64 {
			return append(dst, attribute.Int64(key, int64(u)))
		}
		return append(dst, attribute.String(key, a.Value.String()))
	case slog.KindFloat64:
		return append(dst, attribute.Float64(key, a.Value.Float64()))
	case slog.KindBool:
		return append(dst, attribute.Bool(key, a.Value.Bool()))
	case slog.KindDuration:
		return append(dst, attribute.String(key, a.Value.Duration().String()))
	case slog.KindTime:
		return append(dst, attribute.String(key, a.Value.Time().Format(time.RFC3339Nano)))
	}

	switch v := a.Value.Any().(type) {
	case error:
		return append(dst, attribute.String(key, v.Error()))
	case []string:
		return append(dst, attribute.StringSlice(key, v))
	case []int:
		return append(dst, attribute.IntSlice(key, v))
	case []int64:
		return append(dst, attribute.Int64Slice(key, v))
	case []float64:
		return append(dst, attribute.Float64Slice(key, v))
	case []bool:
		return append(dst, attribute.BoolSlice(key, v))
	case fmt.Stringer:
		return append(dst, attribute.Stringer(key, v))
	default:
		return append(dst, attribute.String(key, fmt.Sprint(v)))
	}
}

// errorsFromRecord returns the error-typed attribute values of r.
func errorsFromRecord(r slog.Record) []error {
	var errs []error
	r.Attrs(func(a slog.Attr) bool {
		if err, ok := a.Value.Resolve().Any().(error); ok && err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errs
}

// toOTelValue converts a slog value to an OTel log value.
func toOTelValue(v slog.Value) log.Value {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return log.StringValue(v.String())
	case slog.KindInt64:
		return log.Int64Value(v.Int64())
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return log.Int64Value(int64(u))
		}
		return log.StringValue(v.String())
	case slog.KindBool:
		return log.BoolValue(v.Bool())
	case slog.KindFloat64:
		return log.Float64Value(v.Float64())
	case slog.KindDuration:
		return log.StringValue(v.Duration().String())
	case slog.KindTime:
		return log.StringValue(v.Time().Format(time.RFC3339Nano))
	case slog.KindGroup:
		group := v.Group()
		kvs := make([]log.KeyValue, 0, len(group))
		for _, a := range group {
			kvs = append(kvs, log.KeyValue{Key: a.Key, Value: toOTelValue(a.Value)})
		}
		return log.MapValue(kvs...)
	}

	switch x := v.Any().(type) {
	case error:
		return log.StringValue(x.Error())
	case []byte:
		return log.BytesValue(x)
	default:
		return log.StringValue(v.String())
	}
}

// measurementsFromRecord extracts the metric attributes of r. The
// record's other attributes become the measurements' attributes.
func measurementsFromRecord(r slog.Record) []Measurement {
	var (
		metrics []Measurement
		rest    []attribute.KeyValue
	)
	r.Attrs(func(a slog.Attr) bool {
		kind, name, ok := metricKey(a.Key)
		if !ok {
			rest = appendAttribute(rest, "", a)
			return true
		}
		if m, ok := measurement(kind, name, a.Value.Resolve()); ok {
			metrics = append(metrics, m)
		}
		return true
	})
	for i := range metrics {
		metrics[i].Attrs = rest
	}
	return metrics
}

func metricKey(key string) (MetricKind, string, bool) {
	switch {
	case strings.HasPrefix(key, MonotonicCounterPrefix):
		return MonotonicCounter, strings.TrimPrefix(key, MonotonicCounterPrefix), true
	case strings.HasPrefix(key, CounterPrefix):
		return Counter, strings.TrimPrefix(key, CounterPrefix), true
	case strings.HasPrefix(key, HistogramPrefix):
		return Histogram, strings.TrimPrefix(key, HistogramPrefix), true
	default:
		return 0, "", false
	}
}

// measurement converts a numeric value; other kinds are not measurements.
func measurement(kind MetricKind, name string, v slog.Value) (Measurement, bool) {
	if name == "" {
		return Measurement{}, false
	}
	switch v.Kind() {
	case slog.KindInt64:
		return Int64Measurement(kind, name, v.Int64()), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return Int64Measurement(kind, name, int64(u)), true
		}
		return Float64Measurement(kind, name, float64(v.Uint64())), true
	case slog.KindFloat64:
		return Float64Measurement(kind, name, v.Float64()), true
	default:
		return Measurement{}, false
	}
}
