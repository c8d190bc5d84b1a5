package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/config"
	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/logger"
	"github.com/bagofwords1/bagofwords-sub001/mcpserver"
	"github.com/bagofwords1/bagofwords-sub001/metrics"
	"github.com/bagofwords1/bagofwords-sub001/pipeline"
	"github.com/bagofwords1/bagofwords-sub001/sandbox"
)

// openTimeout bounds connecting to every data source at startup.
const openTimeout = 30 * time.Second

func main() {
	app := fx.New(appOptions())

	// Start the application
	app.Run()
}

func appOptions() fx.Option {
	return fx.Options(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Data sources, closed on stop
			newRegistry,
			newSources,

			// Starlark sandbox executor
			newExecutor,

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(
			registerMetricsServer,
			registerTransport,
		),

		// Use the application logger for fx logs
		fx.WithLogger(logger.NewFxLogger),
	)
}

func newRegistry(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*datasource.Registry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	reg, err := datasource.Open(ctx, log.Named("datasource"), cfg.DataSources)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return reg.Close()
		},
	})
	return reg, nil
}

func newSources(reg *datasource.Registry) mcpserver.Sources {
	return reg
}

func newExecutor(cfg *config.Config, log *zap.Logger) pipeline.Executor {
	return sandbox.NewExecutor(log.Named("sandbox"), cfg.ExecutorConfig())
}

// registerTransport serves MCP on the configured transport. The app shuts
// down when the transport ends.
func registerTransport(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, server *mcpserver.MCPServer, log *zap.Logger) error {
	var serve func() error
	switch cfg.Server.Transport {
	case "stdio":
		serve = server.ServeStdio
	case "http":
		serve = server.ServeHTTP
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.Server.Transport)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := serve()
				switch {
				case err == nil, errors.Is(err, http.ErrServerClosed):
					_ = shutdowner.Shutdown()
				default:
					log.Error("MCP transport failed", zap.String("transport", cfg.Server.Transport), zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: server.Shutdown,
	})
	return nil
}

// registerMetricsServer exposes /metrics when enabled.
func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
