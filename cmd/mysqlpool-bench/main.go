// Package main is the entrypoint for mysqlpool-bench, a YAML-configured
// demo/load driver that exercises the pool registry end to end: parsing
// connection strings, checking sessions in and out under concurrent
// load, and exposing the resulting Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sref/mysqlpool/internal/benchconfig"
	"github.com/sref/mysqlpool/internal/pool"
	"github.com/sref/mysqlpool/internal/registry"
)

var configPath = flag.String("config", "configs/bench.yaml", "Path to bench configuration file")

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[main] Starting mysqlpool-bench")

	cfg, err := benchconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] Failed to load configuration: %v", err)
	}
	log.Printf("[main] Configuration loaded: %d worker groups, run_duration=%s", len(cfg.Workers), cfg.RunDuration)

	reg := registry.New()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[main] Metrics server listening on :%d/metrics", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] Metrics server error: %v", err)
		}
	}()

	waitForShutdownSignal := reg.InstallShutdownHook()

	runCtx, cancelRun := context.WithTimeout(context.Background(), cfg.RunDuration)
	defer cancelRun()

	var wg sync.WaitGroup
	for _, group := range cfg.Workers {
		p, err := reg.GetOrCreate(group.DSN, true)
		if err != nil {
			log.Fatalf("[main] Failed to create pool for worker group %s: %v", group.Name, err)
		}
		if p == nil {
			log.Printf("[main] Worker group %s: pooling disabled for this DSN, skipping", group.Name)
			continue
		}

		for i := 0; i < group.Concurrency; i++ {
			wg.Add(1)
			go runWorker(runCtx, &wg, group, p)
		}
	}

	// A SIGINT/SIGTERM runs the registry's shutdown hook and ends the run
	// early.
	go func() {
		waitForShutdownSignal()
		cancelRun()
	}()

	log.Println("[main] Workers running. Waiting for run_duration to elapse or shutdown signal...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] Run duration elapsed, all workers stopped")
	case <-runCtx.Done():
		<-done
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] Metrics server shutdown error: %v", err)
	}

	// Run a final clear_all directly so it happens even when the run
	// finished on its own, not just on SIGINT/SIGTERM.
	if err := reg.ClearAll(context.Background(), pool.ModeSync); err != nil {
		log.Printf("[main] final clear_all error (swallowed): %v", err)
	}

	log.Println("[main] Shutdown complete.")
}

func runWorker(ctx context.Context, wg *sync.WaitGroup, group benchconfig.WorkerGroup, p *pool.ConnectionPool) {
	defer wg.Done()

	holdRange := group.HoldTimeMax - group.HoldTimeMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		owner := pool.NewOwner()
		sess, err := p.Checkout(ctx, owner, uint32(time.Now().UnixMilli()), pool.ModeAsync)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[bench] %s: checkout failed: %v", group.Name, err)
			continue
		}

		hold := group.HoldTimeMin
		if holdRange > 0 {
			hold += time.Duration(rand.Int63n(int64(holdRange)))
		}
		select {
		case <-time.After(hold):
		case <-ctx.Done():
		}
		runtime.KeepAlive(owner)

		p.Return(sess, pool.ModeAsync)
	}
}
