// Package main runs the product room: a product list kept in an embedded or
// server database, driven from the terminal, over HTTP and observed over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/productroom/internal/app"
	"github.com/abgdnv/productroom/internal/config"
	"github.com/abgdnv/productroom/internal/surface/console"
	"github.com/abgdnv/productroom/pkg/bootstrap"
	"github.com/abgdnv/productroom/pkg/config/configloader"
	"github.com/abgdnv/productroom/pkg/telemetry"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, opens the store and runs every enabled surface until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](app.ServiceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	// the console owns stdout
	var logOut io.Writer = os.Stdout
	if cfg.Console.Enabled {
		logOut = os.Stderr
	}
	logger := bootstrap.NewLogger(logOut, cfg.Log.Level)
	slog.SetDefault(logger)

	if cfg.Telemetry.Traces.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, app.ServiceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer shutdownWithTimeout(logger, "tracer provider", cfg.Shutdown.Timeout, tp.Shutdown)
	}
	var metrics http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		mp, handler, err := telemetry.NewMeterProvider(app.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to create meter provider: %w", err)
		}
		defer shutdownWithTimeout(logger, "meter provider", cfg.Shutdown.Timeout, mp.Shutdown)
		metrics = handler
	}

	engine, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open product store: %w", err)
	}
	defer closeStore()

	broker, err := app.NewBroker(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up event broker: %w", err)
	}
	defer broker.Close()

	deps, err := app.SetupDependencies(ctx, engine, broker.Publisher, cfg.Service, logger)
	if err != nil {
		return fmt.Errorf("failed to set up dependencies: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Keep the live product view in sync with the database
	g.Go(func() error {
		if err := deps.Store.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("live product view failed: %w", err)
		}
		return nil
	})
	// Refresh the live view on changes made by other processes
	g.Go(func() error {
		if err := app.RunSubscriber(gCtx, broker, cfg.NATS, deps); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("product event subscriber failed: %w", err)
		}
		return nil
	})
	// Execute product operations
	g.Go(func() error {
		return deps.ProductService.Run(gCtx)
	})

	if cfg.HTTPServer.Enabled {
		httpServer := app.SetupHttpServer(deps, cfg.HTTPServer, cfg.Telemetry.Metrics.Path, metrics)
		serveHTTP(g, gCtx, logger, "HTTP", httpServer, cfg.Shutdown.Timeout)
	}

	if cfg.GRPC.Enabled {
		grpcServer := app.SetupGrpcServer(deps, cfg.GRPC.ReflectionEnabled)
		serveGRPC(g, gCtx, logger, grpcServer, deps, ":"+cfg.GRPC.Port, cfg.Shutdown.Timeout)
	}

	if cfg.PProf.Enabled {
		serveHTTP(g, gCtx, logger, "pprof", &http.Server{Addr: cfg.PProf.Addr}, cfg.Shutdown.Timeout)
	}

	if cfg.Console.Enabled {
		g.Go(func() error {
			// leaving the console stops the application
			defer cancel()
			return console.New(deps.ProductService, os.Stdin, os.Stdout, logger).Run(gCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// serveHTTP starts srv and shuts it down gracefully once ctx is done.
func serveHTTP(g *errgroup.Group, ctx context.Context, logger *slog.Logger, name string, srv *http.Server, timeout time.Duration) {
	g.Go(func() error {
		logger.Info(name+" server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down " + name + " server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// serveGRPC starts the gRPC server and stops it gracefully once ctx is done.
func serveGRPC(g *errgroup.Group, ctx context.Context, logger *slog.Logger, grpcServer *grpc.Server, deps *app.Dependencies, addr string, timeout time.Duration) {
	g.Go(func() error {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("gRPC server listening", slog.String("addr", addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		deps.Health.Shutdown()
		logger.Info("Shutting down gRPC server...")
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully.")
			return nil
		case <-time.After(timeout):
			logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
			grpcServer.Stop()
			return fmt.Errorf("grpc server graceful stop timed out")
		}
	})
}

func shutdownWithTimeout(logger *slog.Logger, name string, timeout time.Duration, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("Failed to shut down "+name, "error", err)
	}
}
