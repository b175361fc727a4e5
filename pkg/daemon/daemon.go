// Package daemon wires the supervisor into the long-running service: the
// gRPC control server, the metrics endpoint and boot-time autostart.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	corecontrol "github.com/core-tools/hsu-core/pkg/control"
	coredomain "github.com/core-tools/hsu-core/pkg/domain"
	corelogging "github.com/core-tools/hsu-core/pkg/logging"

	"github.com/core-tools/hsu-gamesrv/pkg/artifact"
	"github.com/core-tools/hsu-gamesrv/pkg/config"
	"github.com/core-tools/hsu-gamesrv/pkg/control"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
	"github.com/core-tools/hsu-gamesrv/pkg/metrics"
	"github.com/core-tools/hsu-gamesrv/pkg/supervisor"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownTimeout bounds the control and metrics server shutdown; server
// processes get their own stop timeout
const ShutdownTimeout = 30 * time.Second

type Daemon struct {
	config        *config.Config
	server        corecontrol.Server
	supervisor    *supervisor.Supervisor
	collector     *metrics.PrometheusCollector
	metricsServer *http.Server
	logger        logging.Logger
}

func NewDaemon(cfg *config.Config, coreLogger corelogging.Logger, logger logging.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("configuration cannot be nil", nil)
	}

	collector := metrics.NewPrometheusCollector("")

	sup, err := NewSupervisor(cfg, collector, logger)
	if err != nil {
		return nil, err
	}

	serverOptions := corecontrol.ServerOptions{
		Port: cfg.Control.Port,
	}
	server, err := corecontrol.NewServer(serverOptions, coreLogger)
	if err != nil {
		return nil, errors.NewInternalError("failed to create server", err)
	}

	// Register core services
	coreHandler := coredomain.NewDefaultHandler(coreLogger)
	corecontrol.RegisterGRPCServerHandler(server.GRPC(), coreHandler, coreLogger)

	control.RegisterGRPCServerHandler(server.GRPC(), sup, logging.WithPrefix(logger, "control: "))

	d := &Daemon{
		config:     cfg,
		server:     server,
		supervisor: sup,
		collector:  collector,
		logger:     logger,
	}

	if cfg.Metrics.Port != 0 {
		d.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           MetricsHandler(collector, cfg.Metrics.Path),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return d, nil
}

// NewSupervisor builds the supervisor described by cfg, reporting to
// collector
func NewSupervisor(cfg *config.Config, collector metrics.Collector, logger logging.Logger) (*supervisor.Supervisor, error) {
	fetcher := artifact.NewFetcher(artifact.Options{
		ManifestURL: cfg.Artifacts.ManifestURL,
		HTTPTimeout: cfg.Artifacts.HTTPTimeout,
		Metrics:     collector,
	}, logging.WithPrefix(logger, "artifact: "))

	warnUnprovisionable(cfg, fetcher, logger)

	options := cfg.SupervisorOptions()
	options.Fetcher = fetcher
	options.Metrics = collector

	sup, err := supervisor.NewSupervisor(options, logging.WithPrefix(logger, "supervisor: "))
	if err != nil {
		return nil, errors.NewInternalError("failed to create supervisor", err)
	}
	return sup, nil
}

// warnUnprovisionable flags configured servers whose jar cannot be fetched
// automatically while no override jar is set; their starts will fail with
// an unsupported distribution error until one is provided.
func warnUnprovisionable(cfg *config.Config, fetcher *artifact.Fetcher, logger logging.Logger) []string {
	ids := make([]string, 0)
	if cfg.Runtime.ServerJar != "" {
		return ids
	}
	for _, server := range cfg.Servers {
		if !fetcher.Supports(server.Kind) {
			logger.Warnf("Server %s is of kind %s, which cannot be downloaded automatically; set %s or runtime.server_jar",
				server.ID, server.Kind, supervisor.ServerJarEnv)
			ids = append(ids, server.ID)
		}
	}
	return ids
}

// MetricsHandler serves the collector's registry at path
func MetricsHandler(collector *metrics.PrometheusCollector, path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// Supervisor exposes the wired supervisor
func (d *Daemon) Supervisor() *supervisor.Supervisor {
	return d.supervisor
}

func (d *Daemon) Start(ctx context.Context) {
	d.logger.Infof("Starting daemon, control port: %d", d.config.Control.Port)

	d.server.Start(ctx)

	if d.metricsServer != nil {
		go func() {
			d.logger.Infof("Metrics endpoint listening, addr: %s, path: %s", d.metricsServer.Addr, d.config.Metrics.Path)
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	d.logger.Infof("Daemon started")
}

// Autostart starts every server marked autostart, one after another. A
// failing server does not prevent the others from starting.
func (d *Daemon) Autostart(ctx context.Context) int {
	started := 0
	for _, def := range d.config.Autostart() {
		if err := d.supervisor.Start(ctx, def); err != nil {
			d.logger.Errorf("Failed to autostart server %s: %v", def.ID, err)
			continue
		}
		started++
		d.logger.Infof("Autostarted server: %s", def.ID)
	}
	return started
}

// Stop stops every running server first, then the control and metrics
// servers
func (d *Daemon) Stop(ctx context.Context) {
	d.logger.Infof("Stopping daemon...")

	if err := d.supervisor.StopAll(ctx); err != nil {
		d.logger.Errorf("Failed to stop all servers: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	d.server.Shutdown(ctx)

	if d.metricsServer != nil {
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			d.logger.Errorf("Failed to shutdown metrics server: %v", err)
		}
	}

	d.logger.Infof("Daemon stopped")
}
