package registry

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sref/mysqlpool/internal/pool"
)

// InstallShutdownHook registers a SIGINT/SIGTERM handler that runs
// ClearAll in synchronous mode and swallows errors. It returns a function
// the caller can invoke to wait for the signal and run the hook inline
// (used by cmd/mysqlpool-bench), and stops listening once that function
// returns.
func (r *Registry) InstallShutdownHook() (wait func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return func() {
		sig := <-sigCh
		signal.Stop(sigCh)
		log.Printf("[registry] received signal %v, clearing all pools", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := r.ClearAll(ctx, pool.ModeSync); err != nil {
			log.Printf("[registry] shutdown clear_all error (swallowed): %v", err)
		}
	}
}
