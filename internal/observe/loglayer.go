package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/log"

	"github.com/socialchef/beacon/internal/telemetry"
)

// LogLayer forwards records to an OTel logger. The SDK logger attaches
// the trace and span id of the span active in the emitting context.
type LogLayer struct {
	NopLayer
	logger log.Logger
}

func NewLogLayer(lp log.LoggerProvider) *LogLayer {
	return &LogLayer{logger: lp.Logger(telemetry.ScopeName)}
}

func (l *LogLayer) OnLog(ctx context.Context, r slog.Record) error {
	var otelRecord log.Record
	otelRecord.SetTimestamp(r.Time)
	otelRecord.SetObservedTimestamp(r.Time)
	otelRecord.SetBody(log.StringValue(r.Message))
	otelRecord.SetSeverity(severity(r.Level))
	otelRecord.SetSeverityText(r.Level.String())

	r.Attrs(func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return true
		}
		otelRecord.AddAttributes(log.KeyValue{
			Key:   a.Key,
			Value: toOTelValue(a.Value),
		})
		return true
	})

	l.logger.Emit(ctx, otelRecord)
	return nil
}

// severity maps a slog level to an OTel severity. Offsets between the
// named slog levels map to the finer OTel steps, so INFO+2 is INFO3.
func severity(level slog.Level) log.Severity {
	var base, offset log.Severity
	switch {
	case level >= slog.LevelError:
		base, offset = log.SeverityError, log.Severity(level-slog.LevelError)
	case level >= slog.LevelWarn:
		base, offset = log.SeverityWarn, log.Severity(level-slog.LevelWarn)
	case level >= slog.LevelInfo:
		base, offset = log.SeverityInfo, log.Severity(level-slog.LevelInfo)
	case level >= slog.LevelDebug:
		base, offset = log.SeverityDebug, log.Severity(level-slog.LevelDebug)
	default:
		return log.SeverityTrace
	}
	if offset > 3 {
		offset = 3
	}
	return base + offset
}
