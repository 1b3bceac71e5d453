package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/productroom/pkg/config"
	"github.com/abgdnv/productroom/pkg/web"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPServer creates and configures a new HTTP server instance.
// The handler is wrapped with OpenTelemetry instrumentation named after the service.
func NewHTTPServer(cfg config.HTTPConfig, serviceName string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(handler, serviceName),
		ReadTimeout:       cfg.Timeout.Read,
		WriteTimeout:      cfg.Timeout.Write,
		IdleTimeout:       cfg.Timeout.Idle,
		ReadHeaderTimeout: cfg.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// NewChiRouter creates a new Chi router with a set of
// middleware for request ID injection, structured logging, and recovery.
func NewChiRouter(logger *slog.Logger) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(web.RequestIDInjector)
	mux.Use(web.StructuredLogger(logger))
	mux.Use(web.Recoverer(logger))
	return mux
}
