// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the meraki-dashboard-exporter.
//
// The exporter polls the Cisco Meraki Dashboard API on a per-tier cadence
// and serves the results as Prometheus metrics. It holds no persisted
// state: every value served on /metrics is either a live reading from the
// most recent collection pass or the last value seen before it expired.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 load (defaults, config file, env vars)
//  2. Logging: zerolog, configured from the loaded Logging section
//  3. Metrics Registry: the Prometheus registry every collector writes through
//  4. Upstream Client: Meraki Dashboard API client with per-org circuit breakers
//  5. Inventory Cache: single-flight, TTL-cached organizations/networks/devices
//  6. Collector Catalog: every domain collector, grouped by tier
//  7. Collector Manager: the per-tier ticker loops that drive the catalog
//  8. HTTP Server: /metrics and /health, optionally under a path prefix
//
// The Collector Manager, the metric reaper and the HTTP server all run
// under a suture supervisor tree, so a panic or repeated failure in one
// restarts that component without taking down the others.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional config.yaml, then
// built-in defaults. See internal/config for the full set of knobs.
//
// # Signal Handling
//
// The process handles graceful shutdown on SIGINT and SIGTERM: in-flight
// collector runs are canceled via context, the HTTP server is given its
// configured shutdown timeout to drain, and any service that fails to
// stop in time is logged rather than blocking exit indefinitely.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/api"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector/catalog"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/config"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/inventory"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/logging"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/scheduler"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/supervisor"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("meraki_base_url", cfg.Meraki.APIBaseURL).
		Bool("single_org_scoped", cfg.Meraki.OrgID != "").
		Msg("Starting meraki-dashboard-exporter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New()
	client := meraki.New(cfg.Meraki, cfg.API, reg)

	invTTL := cfg.UpdateIntervals.Medium
	inv := inventory.New(client, invTTL)

	deps := catalog.Deps{
		Client:  client,
		Inv:     inv,
		Inst:    collector.NewInstrumentation(reg),
		Batch:   catalog.NewBatchConfig(cfg.API),
		Clients: cfg.Clients,
	}

	mgr := scheduler.New(reg, deps.Inst, cfg.UpdateIntervals, cfg.Collectors, catalog.All(deps))

	unhealthyAfter := 3 * cfg.UpdateIntervals.Medium
	if unhealthyAfter <= 0 {
		unhealthyAfter = 5 * time.Minute
	}

	router := api.NewRouter(reg, mgr, unhealthyAfter, cfg.Server.PathPrefix, cfg.Server.EnableHealthCheck)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(mgr)
	logging.Info().Msg("Collector manager added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server service added to supervisor tree")

	reapInterval := cfg.UpdateIntervals.Fast
	reapTiers := metrics.TierIntervals{
		merakitypes.TierFast:   cfg.UpdateIntervals.Fast,
		merakitypes.TierMedium: cfg.UpdateIntervals.Medium,
		merakitypes.TierSlow:   cfg.UpdateIntervals.Slow,
	}
	reaperSvc := services.NewReaperService(services.ReaperFunc(func(ctx context.Context) {
		reg.StartReaper(ctx, reapInterval, cfg.Monitoring.MetricTTLMultiplier, reapTiers)
	}))
	tree.AddMessagingService(reaperSvc)
	logging.Info().Dur("reap_interval", reapInterval).Float64("ttl_multiplier", cfg.Monitoring.MetricTTLMultiplier).Msg("Metric reaper added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Exporter stopped gracefully")
}
