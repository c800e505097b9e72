package api

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/socialchef/beacon/internal/config"
	"github.com/socialchef/beacon/internal/observe"
)

// CallerKey is the span and log attribute naming the calling function.
const CallerKey = "call_fn"

const helloPage = "<h1>Hello, World!</h1>"

type Server struct {
	cfg    *config.Config
	chain  *observe.Chain
	logger *slog.Logger
}

func NewServer(cfg *config.Config, chain *observe.Chain) *Server {
	return &Server{
		cfg:    cfg,
		chain:  chain,
		logger: slog.New(chain),
	}
}

// HandleIndex serves the greeting page. It calls sub1 and sub2, each
// under its own span nested in the handler's.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.chain.Start(r.Context(), "handler")
	defer span.End()

	s.logger.InfoContext(ctx, "request received")
	s.sub1(ctx, "handler")
	s.sub2(ctx, "handler")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(helloPage))
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) sub1(ctx context.Context, callFn string) {
	ctx, span := s.chain.Start(ctx, "sub1", attribute.String(CallerKey, callFn))
	defer span.End()

	s.logger.InfoContext(ctx, "sub1", CallerKey, callFn)
	s.sub2(ctx, "sub1")
}

// sub2 logs at error level on every call.
func (s *Server) sub2(ctx context.Context, callFn string) {
	ctx, span := s.chain.Start(ctx, "sub2", attribute.String(CallerKey, callFn))
	defer span.End()

	s.logger.ErrorContext(ctx, "sub2")
}
