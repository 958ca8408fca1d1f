// Command scheduler runs the key-partitioned, workload-adaptive request
// scheduler core: it wires Storage, the Graph, the Pattern tracker, the
// Partition workers, and the Scheduler together, exposes a wire-protocol
// admission listener in place of an upstream consensus layer, and serves
// Prometheus metrics.
//
// Everything runs as a single process: partition workers are in-process
// goroutines rather than networked peers, so there is no separate "node"
// binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/keypart/internal/config"
	"github.com/dreamware/keypart/internal/graph"
	"github.com/dreamware/keypart/internal/metrics"
	"github.com/dreamware/keypart/internal/scheduler"
	"github.com/dreamware/keypart/internal/store"
	"github.com/dreamware/keypart/internal/tracker"
	"github.com/dreamware/keypart/internal/worker"
)

type cli struct {
	Config        string `help:"Path to a YAML configuration file." type:"existingfile"`
	AdmissionAddr string `help:"Listen address for the wire-protocol admission connection." default:":7070"`
	MetricsAddr   string `help:"Listen address for the Prometheus /metrics endpoint." default:":9090"`
	KahipBinary   string `help:"Path to the kaffpa binary, when repartition_method is KAHIP." default:"kaffpa"`
}

func main() {
	var c cli
	kong.Parse(&c, kong.Description("keypart-scheduler runs the key-partitioned workload-adaptive scheduler core."))

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(c, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(c cli, logger *zap.Logger) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("cmd/scheduler: %w", err)
	}

	st := store.New()
	seedKeys, err := prepopulate(st, cfg)
	if err != nil {
		return fmt.Errorf("cmd/scheduler: prepopulate: %w", err)
	}

	g := graph.New()
	tr := tracker.New(g)
	workers := make([]*worker.Worker, cfg.NPartitions)
	for i := range workers {
		workers[i] = worker.New(i, st)
	}

	p, err := choosePartitioner(cfg.RepartitionMethod, c.KahipBinary)
	if err != nil {
		return fmt.Errorf("cmd/scheduler: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	depthSources := make([]metrics.QueueDepthSource, len(workers))
	for i, w := range workers {
		depthSources[i] = w
	}
	depthReporter := metrics.NewQueueDepthReporter(m, depthSources, time.Second)

	sched, err := scheduler.New(
		scheduler.Config{K: cfg.NPartitions, RepartitionInterval: cfg.RepartitionInterval, CutMethod: cfg.RepartitionMethod},
		workers, tr, g, p, logger, m,
	)
	if err != nil {
		return fmt.Errorf("cmd/scheduler: %w", err)
	}
	sched.Seed(seedKeys)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, w := range workers {
		w := w
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("worker exited", zap.Int("partition", w.ID()), zap.Error(err))
			}
		}()
	}
	go func() {
		if err := tr.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("tracker exited", zap.Error(err))
		}
	}()
	depthReporter.Start()

	ln, err := net.Listen("tcp", c.AdmissionAddr)
	if err != nil {
		return fmt.Errorf("cmd/scheduler: listen admission: %w", err)
	}
	admission := newAdmissionServer(sched, logger)
	go func() {
		logger.Info("admission listening", zap.String("addr", c.AdmissionAddr))
		if err := admission.Serve(ctx, ln); err != nil {
			logger.Error("admission server failed", zap.Error(err))
		}
	}()

	metricsSrv := &http.Server{
		Addr:              c.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", zap.String("addr", c.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	depthReporter.Stop()
	for _, w := range workers {
		w.Shutdown()
	}
	tr.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("scheduler stopped")
	return nil
}
