package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/yunabot/dispatch-gateway/config"
	"github.com/yunabot/dispatch-gateway/internal/admission"
	"github.com/yunabot/dispatch-gateway/internal/dispatch"
	"github.com/yunabot/dispatch-gateway/internal/handler"
	"github.com/yunabot/dispatch-gateway/internal/health"
	"github.com/yunabot/dispatch-gateway/internal/httpserver"
	"github.com/yunabot/dispatch-gateway/internal/ledger"
	"github.com/yunabot/dispatch-gateway/internal/metrics"
	"github.com/yunabot/dispatch-gateway/internal/registry"
	"github.com/yunabot/dispatch-gateway/internal/sdapi"
	"github.com/yunabot/dispatch-gateway/internal/selector"
	"github.com/yunabot/dispatch-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := initializeRegistry(cfg)
	if err != nil {
		log.Error("failed to initialize backend registry", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)
	defer collector.Stop()

	sdClient := sdapi.NewClient(cfg.Dispatch.RetryMax, cfg.CallTimeout(), cfg.ProbeTimeout())

	monitor := health.NewMonitor(reg, sdClient, cfg.Interval(), log, collector)
	monitor.Start(ctx)
	defer monitor.Stop()

	picker := createPicker(log, cfg.Dispatch.Strategy)
	sel := selector.New(reg, monitor, picker, log)

	store := ledger.NewMemory(cfg.Ledger.StartingBalance)
	adm := admission.NewController(store, log)

	gateway := dispatch.New(adm, sel, sdClient, createLimiter(cfg), collector, log)

	gatewayHandler := handler.NewGatewayHandler(log, gateway, reg, cfg.Dispatch.JobCost)

	mux := setupRouter(gatewayHandler, collector, cfg.Dispatch.Strategy)

	// The write timeout must outlive the slowest generation call.
	srv, err := httpserver.New(cfg.Server.Address, mux, cfg.CallTimeout()+30*time.Second)
	if err != nil {
		log.Error("failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("dispatch gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("backends", reg.Len()))

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("error starting dispatch gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeRegistry(cfg *config.Config) (*registry.Registry, error) {
	urls, err := cfg.BackendURLs()
	if err != nil {
		return nil, err
	}

	return registry.New(urls)
}

func createPicker(log *slog.Logger, strategy string) selector.Picker {
	switch strategy {
	case config.StrategyRoundRobin:
		return selector.NewRoundRobinPicker()
	case config.StrategyRandom:
		return selector.NewRandomPicker()
	default:
		log.Warn("unknown strategy, defaulting to random", slog.String("requested", strategy))
		return selector.NewRandomPicker()
	}
}

func createLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.Dispatch.RateLimit.Rate <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(cfg.Dispatch.RateLimit.Rate), cfg.Dispatch.RateLimit.Burst)
}
