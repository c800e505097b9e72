package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/socialchef/beacon/internal/config"
	"github.com/socialchef/beacon/internal/observe"
)

type logRecorder struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (r *logRecorder) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }

func (r *logRecorder) OnEmit(_ context.Context, rec *sdklog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *logRecorder) Shutdown(context.Context) error   { return nil }
func (r *logRecorder) ForceFlush(context.Context) error { return nil }

type testEnv struct {
	router http.Handler
	spans  *tracetest.SpanRecorder
	logs   *logRecorder
	reader *sdkmetric.ManualReader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		spans:  tracetest.NewSpanRecorder(),
		logs:   &logRecorder{},
		reader: sdkmetric.NewManualReader(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(env.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(env.reader))
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(env.logs))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
		_ = lp.Shutdown(context.Background())
	})

	chain := observe.New(observe.Options{
		Level:          slog.LevelInfo,
		Console:        io.Discard,
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
	})
	cfg := &config.Config{ServiceName: "beacon-test", CORSAllowedOrigins: []string{"*"}}
	env.router = NewRouter(NewServer(cfg, chain), mp)
	return env
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func spansNamed(spans []sdktrace.ReadOnlySpan, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func caller(s sdktrace.ReadOnlySpan) string {
	for _, kv := range s.Attributes() {
		if kv.Key == attribute.Key(CallerKey) {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestHandleIndex(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get(t, "/")

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "<h1>Hello, World!</h1>" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get(t, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestCallGraph_SpanTree(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	spans := env.spans.Ended()
	require.Len(t, spans, 5)

	root := spansNamed(spans, "GET /")
	require.Len(t, root, 1)
	assert.Equal(t, trace.SpanKindServer, root[0].SpanKind())
	assert.False(t, root[0].Parent().IsValid())

	handler := spansNamed(spans, "handler")
	require.Len(t, handler, 1)
	assert.Equal(t, root[0].SpanContext().SpanID(), handler[0].Parent().SpanID())

	sub1 := spansNamed(spans, "sub1")
	require.Len(t, sub1, 1)
	assert.Equal(t, handler[0].SpanContext().SpanID(), sub1[0].Parent().SpanID())
	assert.Equal(t, "handler", caller(sub1[0]))

	sub2 := spansNamed(spans, "sub2")
	require.Len(t, sub2, 2, "sub2 runs once from handler and once from sub1")
	parents := map[string]trace.SpanID{}
	for _, s := range sub2 {
		parents[caller(s)] = s.Parent().SpanID()
	}
	assert.Equal(t, handler[0].SpanContext().SpanID(), parents["handler"])
	assert.Equal(t, sub1[0].SpanContext().SpanID(), parents["sub1"])

	for _, s := range spans {
		assert.Equal(t, root[0].SpanContext().TraceID(), s.SpanContext().TraceID(), s.Name())
	}
}

func TestCallGraph_LogSeverities(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	env.logs.mu.Lock()
	records := append([]sdklog.Record(nil), env.logs.records...)
	env.logs.mu.Unlock()

	type entry struct {
		body     string
		severity log.Severity
	}
	var got []entry
	for _, r := range records {
		got = append(got, entry{r.Body().AsString(), r.Severity()})
	}
	assert.Equal(t, []entry{
		{"request received", log.SeverityInfo},
		{"sub1", log.SeverityInfo},
		{"sub2", log.SeverityError},
		{"sub2", log.SeverityError},
	}, got)

	// Every record belongs to the span of the call that emitted it.
	spans := env.spans.Ended()
	bySpanID := map[trace.SpanID]string{}
	for _, s := range spans {
		bySpanID[s.SpanContext().SpanID()] = s.Name()
	}
	assert.Equal(t, "handler", bySpanID[records[0].SpanID()])
	assert.Equal(t, "sub1", bySpanID[records[1].SpanID()])
	assert.Equal(t, "sub2", bySpanID[records[2].SpanID()])
	assert.Equal(t, "sub2", bySpanID[records[3].SpanID()])
	assert.NotEqual(t, records[2].SpanID(), records[3].SpanID())
}

func TestCallGraph_ErrorStatus(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	spans := env.spans.Ended()
	for _, s := range spansNamed(spans, "sub2") {
		assert.Equal(t, "Error", s.Status().Code.String())
	}
	assert.Equal(t, "Unset", spansNamed(spans, "handler")[0].Status().Code.String())
	assert.Equal(t, "Unset", spansNamed(spans, "GET /")[0].Status().Code.String())
}

func TestRouter_UnmatchedPath(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get(t, "/does/not/exist")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	spans := env.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /does/not/exist", spans[0].Name())
}

func TestRouter_RecordsRequestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	var rm metricdata.ResourceMetrics
	require.NoError(t, env.reader.Collect(context.Background(), &rm))
	count := 0
	for _, sm := range rm.ScopeMetrics {
		count += len(sm.Metrics)
	}
	assert.Positive(t, count)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
