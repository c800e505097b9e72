package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

func sampleTraceRequest() *coltracepb.ExportTraceServiceRequest {
	traceID := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{{
					TraceId:      traceID,
					SpanId:       []byte{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8},
					ParentSpanId: []byte{0xb1, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7, 0xb8},
					Name:         "GET /",
					Kind:         tracepb.Span_SPAN_KIND_SERVER,
				}},
			}},
		}},
	}
}

func TestMarshalOTLPJSON(t *testing.T) {
	raw, err := marshalOTLPJSON(sampleTraceRequest())
	require.NoError(t, err)

	var doc struct {
		ResourceSpans []struct {
			ScopeSpans []struct {
				Spans []map[string]any `json:"spans"`
			} `json:"scopeSpans"`
		} `json:"resourceSpans"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.ResourceSpans, 1)
	span := doc.ResourceSpans[0].ScopeSpans[0].Spans[0]

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", span["traceId"])
	assert.Equal(t, "a1a2a3a4a5a6a7a8", span["spanId"])
	assert.Equal(t, "b1b2b3b4b5b6b7b8", span["parentSpanId"])
	assert.Equal(t, "GET /", span["name"])
	assert.EqualValues(t, 2, span["kind"], "enums are encoded as numbers")
}

func TestJSONSender_Send(t *testing.T) {
	var (
		gotPath, gotKey, gotType string
		gotBody                  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(LicenseKeyHeader)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &jsonSender{
		signal:  SignalTrace,
		url:     srv.URL + SignalTrace.Path(),
		headers: map[string]string{LicenseKeyHeader: "test-key"},
		client:  srv.Client(),
	}
	require.NoError(t, s.send(context.Background(), sampleTraceRequest()))

	assert.Equal(t, "/v1/traces", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotType)
	assert.True(t, json.Valid(gotBody))
}

func TestJSONSender_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid license key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := &jsonSender{signal: SignalLog, url: srv.URL + SignalLog.Path(), client: srv.Client()}
	err := s.send(context.Background(), sampleTraceRequest())

	require.Error(t, err)
	assert.True(t, apperrors.IsExportFailure(err))
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid license key")
}

func TestJSONSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + SignalMetric.Path()
	srv.Close()

	s := &jsonSender{signal: SignalMetric, url: url, client: http.DefaultClient}
	err := s.send(context.Background(), sampleTraceRequest())

	require.Error(t, err)
	assert.True(t, apperrors.IsExportFailure(err))
}
