package telemetry

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

// Signal is one of the three telemetry data kinds.
type Signal int

const (
	SignalTrace Signal = iota
	SignalMetric
	SignalLog
)

func (s Signal) String() string {
	switch s {
	case SignalTrace:
		return "traces"
	case SignalMetric:
		return "metrics"
	case SignalLog:
		return "logs"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Path is the OTLP/HTTP path suffix for the signal.
func (s Signal) Path() string {
	return "/v1/" + s.String()
}

// SignalURL validates base and appends the signal path to it.
func SignalURL(base string, s Signal) (string, error) {
	raw := strings.TrimSpace(base)
	if raw == "" {
		return "", apperrors.NewConfigError("endpoint is empty", "INVALID_ENDPOINT",
			"Set OTEL_EXPORTER_OTLP_ENDPOINT to the collector base URL.").WithSignal(s.String())
	}

	u, err := url.Parse(raw)
	if err != nil {
		cfgErr := apperrors.NewConfigError(fmt.Sprintf("malformed endpoint %q", raw), "INVALID_ENDPOINT",
			"Use an absolute URL such as https://otlp.nr-data.net.").WithSignal(s.String())
		cfgErr.Err = err
		return "", cfgErr
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperrors.NewConfigError(fmt.Sprintf("endpoint %q must use http or https", raw), "INVALID_ENDPOINT_SCHEME",
			"Use an absolute URL such as https://otlp.nr-data.net.").WithSignal(s.String())
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", apperrors.NewConfigError(fmt.Sprintf("endpoint %q has no host", raw), "INVALID_ENDPOINT_HOST",
			"Use an absolute URL such as https://otlp.nr-data.net.").WithSignal(s.String())
	}
	if u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return "", apperrors.NewConfigError(fmt.Sprintf("endpoint %q must not carry credentials, a query or a fragment", raw), "INVALID_ENDPOINT",
			"Pass the license key via NEWRELIC_LICENSE_KEY instead.").WithSignal(s.String())
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + s.Path()
	u.RawPath = ""
	return u.String(), nil
}
