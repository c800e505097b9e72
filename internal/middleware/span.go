package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/socialchef/beacon/internal/observe"
)

type contextKey string

const RequestIDKey contextKey = "requestID"

// RequestIDHeader carries the request id. An incoming value is reused,
// otherwise one is generated; either way it is echoed on the response.
const RequestIDHeader = "X-Request-Id"

// Span opens the root span of every request through chain, before the
// handler runs, and ends it when the handler returns. routes resolves the
// route template used in the span name; it is normally the router the
// middleware is mounted on.
func Span(chain *observe.Chain, routes chi.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			ctx = context.WithValue(ctx, RequestIDKey, requestID)

			name := SpanName(r.Method, RouteTemplate(routes, r))
			ctx, span := chain.Start(ctx, "request",
				attribute.String("http.method", r.Method),
				attribute.String("http.uri", requestURI(r)),
				attribute.String("http.version", r.Proto),
				attribute.String(observe.AttrSpanName, name),
				attribute.String(observe.AttrSpanKind, "server"),
				attribute.String("request.id", requestID),
			)
			defer span.End()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			otelSpan := trace.SpanFromContext(ctx)
			otelSpan.SetAttributes(attribute.Int("http.status_code", status))
			if status >= http.StatusInternalServerError {
				span.Fail(fmt.Errorf("%d %s", status, http.StatusText(status)))
			}
			// The span still ends through the deferred End; the event marks
			// that nobody was left to read the response.
			if cause := context.Cause(r.Context()); cause != nil {
				otelSpan.AddEvent("client.disconnected", trace.WithAttributes(attribute.String("cause", cause.Error())))
			}
		})
	}
}

// SpanName is "<method> <route>".
func SpanName(method, route string) string {
	return method + " " + route
}

// RouteTemplate returns the pattern of the route in routes matching r,
// such as /users/{id}. Unmatched requests yield the literal path.
func RouteTemplate(routes chi.Routes, r *http.Request) string {
	if routes != nil {
		if pattern := routes.Find(chi.NewRouteContext(), r.Method, r.URL.Path); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

// GetRequestID returns the request id stored by Span.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok
}
