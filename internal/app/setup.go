// Package app wires the product room components together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/productroom/internal/config"
	perrors "github.com/abgdnv/productroom/internal/errors"
	"github.com/abgdnv/productroom/internal/service"
	"github.com/abgdnv/productroom/internal/store"
	"github.com/abgdnv/productroom/internal/subscriber"
	grpcImpl "github.com/abgdnv/productroom/internal/transport/grpc"
	"github.com/abgdnv/productroom/internal/transport/rest"
	"github.com/abgdnv/productroom/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/productroom/pkg/config"
	"github.com/abgdnv/productroom/pkg/messaging"
	"github.com/abgdnv/productroom/pkg/nats"
	"github.com/abgdnv/productroom/pkg/server"
	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/grpc"
)

// ServiceName names the process in telemetry and the environment prefix.
const ServiceName = "productroom"

type Dependencies struct {
	Store          *store.LiveStore
	ProductService *service.Service
	Health         *grpcImpl.HealthServer
	Logger         *slog.Logger
}

// OpenStore opens the engine selected by cfg.Driver. The returned func releases it.
func OpenStore(ctx context.Context, cfg pkgconfig.DatabaseConfig, logger *slog.Logger) (store.ProductStore, func(), error) {
	switch cfg.Driver {
	case pkgconfig.DriverSqlite:
		s, err := store.OpenSqlite(ctx, cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Opened SQLite database", "path", s.Path())
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close SQLite database", "error", err)
			}
		}, nil
	case pkgconfig.DriverPostgres:
		version, err := store.MigratePostgres(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database schema is up to date", "version", version)
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to the database!")
		return store.NewPgStore(dbPool), dbPool.Close, nil
	case pkgconfig.DriverMemory:
		logger.Warn("Using the in-memory store, products are lost on exit")
		return store.NewInMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", perrors.ErrUnsupportedDriver, cfg.Driver)
	}
}

// Broker is the event side of the application.
type Broker struct {
	Publisher messaging.Publisher
	// JetStream is nil when NATS is disabled.
	JetStream jetstream.JetStream
	Close     func()
}

// NewBroker returns the JetStream publisher behind a circuit breaker when
// NATS is enabled, and a no-op publisher otherwise.
func NewBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Broker, error) {
	if !cfg.NATS.Enabled {
		return &Broker{Publisher: messaging.NoopPublisher{}, Close: func() {}}, nil
	}
	nc, err := nats.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
	if err != nil {
		return nil, err
	}
	js, err := nats.NewJetStreamContext(nc)
	if err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithTimeout(ctx, cfg.NATS.Timeout)
	defer cancel()
	if _, err := nats.EnsureStream(streamCtx, js, cfg.NATS.Stream, messaging.ProductsSubjects); err != nil {
		nc.Close()
		return nil, err
	}
	logger.Info("Publishing product events", "stream", cfg.NATS.Stream, "subjects", messaging.ProductsSubjects)
	return &Broker{
		Publisher: messaging.NewBreakerPublisher(nats.NewNatsPublisher(js), cfg.Resilience.CircuitBreaker),
		JetStream: js,
		Close: func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("Failed to drain NATS connection", "error", err)
			}
		},
	}, nil
}

// RunSubscriber consumes product events and refreshes the live view on each
// one until ctx is done. It returns at once when there is nothing to consume.
func RunSubscriber(ctx context.Context, broker *Broker, cfg pkgconfig.NATSConfig, deps *Dependencies) error {
	if broker.JetStream == nil || !cfg.Subscriber.Enabled {
		return nil
	}
	return subscriber.Start(ctx, broker.JetStream, cfg.Stream, cfg.Subscriber, deps.Store.Refresh, deps.Logger)
}

// SetupDependencies builds the live view and the product service over an opened engine.
func SetupDependencies(ctx context.Context, engine store.ProductStore, publisher messaging.Publisher, cfg config.ServiceConfig, logger *slog.Logger) (*Dependencies, error) {
	live, err := store.NewLiveStore(ctx, engine, logger)
	if err != nil {
		return nil, err
	}
	svc, err := service.NewService(live, publisher, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Dependencies{
		Store:          live,
		ProductService: svc,
		Health:         grpcImpl.NewHealthServer(logger),
		Logger:         logger,
	}, nil
}

// SetupHttpHandler builds the router with the REST routes, plus the metrics
// endpoint when metrics is not nil.
func SetupHttpHandler(deps *Dependencies, metricsPath string, metrics http.Handler) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	rest.NewHandler(deps.ProductService, deps.Logger).RegisterRoutes(mux)
	if metrics != nil {
		mux.Method(http.MethodGet, metricsPath, metrics)
	}
	return mux
}

// SetupHttpServer creates and configures an HTTP server for the product room.
func SetupHttpServer(deps *Dependencies, cfg pkgconfig.HTTPConfig, metricsPath string, metrics http.Handler) *http.Server {
	return server.NewHTTPServer(cfg, ServiceName, SetupHttpHandler(deps, metricsPath, metrics))
}

// SetupGrpcServer initializes the gRPC server with the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(reflectionEnabled, deps.Health.Register)
}
