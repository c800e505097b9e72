package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel/metric"

	"github.com/socialchef/beacon/internal/middleware"
)

// NewRouter builds the HTTP surface. mp receives the server request
// metrics.
func NewRouter(s *Server, mp metric.MeterProvider) *chi.Mux {
	r := chi.NewRouter()

	// Root span first so the other middleware run inside it
	r.Use(middleware.Span(s.chain, r))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(s.cfg.ServiceName, otelchimetric.WithMeterProvider(mp))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, "traceparent", "tracestate"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}))

	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleIndex)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
