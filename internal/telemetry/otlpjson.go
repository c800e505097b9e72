package telemetry

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

// LicenseKeyHeader carries the collector credential on every request.
const LicenseKeyHeader = "api-key"

var otlpJSON = protojson.MarshalOptions{UseEnumNumbers: true}

// marshalOTLPJSON encodes msg following the OTLP/JSON mapping: protobuf
// JSON field names, enums as numbers, and trace/span ids as hex strings
// rather than the base64 protojson emits for bytes fields.
func marshalOTLPJSON(msg proto.Message) ([]byte, error) {
	raw, err := otlpJSON.Marshal(msg)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	hexIDs(doc)
	return json.Marshal(doc)
}

func hexIDs(v any) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			switch k {
			case "traceId", "spanId", "parentSpanId":
				if s, ok := child.(string); ok {
					if b, err := base64.StdEncoding.DecodeString(s); err == nil {
						node[k] = hex.EncodeToString(b)
					}
				}
			default:
				hexIDs(child)
			}
		}
	case []any:
		for _, child := range node {
			hexIDs(child)
		}
	}
}

// jsonSender posts OTLP/JSON payloads for one signal.
type jsonSender struct {
	signal  Signal
	url     string
	headers map[string]string
	client  *http.Client
}

func (s *jsonSender) send(ctx context.Context, msg proto.Message) error {
	body, err := marshalOTLPJSON(msg)
	if err != nil {
		return apperrors.NewExportFailure(s.signal.String(), "failed to encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewExportFailure(s.signal.String(), "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.NewExportFailure(s.signal.String(), "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return apperrors.NewExportFailure(s.signal.String(),
		fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt)), nil)
}

func (s *jsonSender) close() {
	s.client.CloseIdleConnections()
}
