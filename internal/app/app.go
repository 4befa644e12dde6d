package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/driftwell/clauding/internal/gateway"
	"github.com/driftwell/clauding/internal/router"
	"github.com/driftwell/clauding/internal/translate"
	"github.com/driftwell/clauding/internal/transport"
	"github.com/driftwell/clauding/internal/usage"
)

// App orchestrates the lifecycle of the gateway server and its
// supporting services (the usage meter, most notably).
type App struct {
	cfg    atomic.Pointer[Config]
	gw     *gateway.Gateway
	server *gateway.Server
	meter  *usage.Meter // nil when usage.track is disabled
}

// New wires a Gateway (router, translators, backend client, usage
// meter) and its Server from a resolved, validated Config.
func New(cfg *Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var meter *usage.Meter
	if cfg.Usage.Track {
		m, err := usage.Open(cfg.Usage.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open usage store: %w", err)
		}
		meter = m
	}

	gw := buildGateway(cfg, meter, logger)
	server := gateway.NewServer(gw, cfg.ProxyAuthKey, logger)

	a := &App{gw: gw, server: server, meter: meter}
	a.cfg.Store(cfg)
	return a, nil
}

func buildGateway(cfg *Config, meter *usage.Meter, logger *slog.Logger) *gateway.Gateway {
	return gateway.NewGateway(
		router.New(cfg.ToRouterConfig()),
		cfg.RequestTransformer(),
		translate.ResponseTransformer{Logger: logger},
		transport.NewBackendClient(cfg.CustomHeaders),
		meter,
		logger,
		catalogFromConfig(cfg),
	)
}

func catalogFromConfig(cfg *Config) gateway.ModelCatalog {
	return gateway.ModelCatalog{
		BigModel:           cfg.BigModel.Model,
		MiddleModel:        cfg.MiddleModel.Model,
		SmallModel:         cfg.SmallModel.Model,
		BigEndpoint:        cfg.BigModel.Endpoint,
		MiddleEndpoint:     cfg.MiddleModel.Endpoint,
		SmallEndpoint:      cfg.SmallModel.Endpoint,
		ProviderBaseURL:    cfg.ProviderBaseURL,
		ReasoningAvailable: router.ModelSupportsReasoning(cfg.BigModel.Model),
	}
}

// Reload validates a new Config, rebuilds the Gateway's router, request
// transformer, and model catalog from it, and swaps them into the running
// Gateway; the backend client, response transformer, and usage meter are
// not rebuilt. In-flight requests keep using whatever snapshot
// they already read; the swap is not transactional across requests, only
// atomic per pointer read — deliberately simpler than draining, since a
// config reload here only ever adjusts routing and credentials, never
// anything an in-flight request has already committed to.
func (a *App) Reload(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.gw.Swap(router.New(cfg.ToRouterConfig()), cfg.RequestTransformer(), catalogFromConfig(cfg))
	a.cfg.Store(cfg)
	return nil
}

// Start starts all services and blocks until ctx is cancelled or a
// service reports a fatal runtime error.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfg.Load()
	g, gCtx := errgroup.WithContext(ctx)

	address := cfg.Server.Host + ":" + strconv.FormatUint(uint64(cfg.Server.Port), 10)

	slog.InfoContext(gCtx, "starting gateway server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "gateway ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "server shutdown failed", "error", err)
		errs = append(errs, err)
	}
	if a.meter != nil {
		if err := a.meter.Close(); err != nil {
			slog.ErrorContext(shutdownCtx, "usage meter close failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("gateway stopped")
	return nil
}
