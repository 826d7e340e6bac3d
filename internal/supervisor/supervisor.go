// Package supervisor owns every long-running worker — feed client,
// sampler, archiver, retention pruner, diagnostics server — and joins
// them on shutdown.
//
// Grounded on the teacher's cmd/feedsim/main.go wiring (context
// cancellation on SIGINT/SIGTERM, http.Server.Shutdown with a bounded
// timeout) but restructured around golang.org/x/sync/errgroup instead of
// bare goroutines, since this supervisor needs to know whether any worker
// exited with an unrecoverable error, not just fire-and-forget them.
package supervisor

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndrandal/tickerbook/internal/archive"
	"github.com/ndrandal/tickerbook/internal/feed"
	"github.com/ndrandal/tickerbook/internal/persist"
	"github.com/ndrandal/tickerbook/internal/sampler"
)

const shutdownTimeout = 5 * time.Second

// Supervisor starts and stops every worker as one unit.
type Supervisor struct {
	feedClient    *feed.Client
	sampler       *sampler.Sampler
	archiver      *archive.Archiver
	store         *persist.Store
	retentionDays int
	retentionScan time.Duration
	diagServer    *http.Server
}

// New builds a Supervisor. diagServer is optional; pass nil to run without
// a diagnostics HTTP server.
func New(feedClient *feed.Client, smp *sampler.Sampler, archiver *archive.Archiver, store *persist.Store, retentionDays int, retentionScan time.Duration, diagServer *http.Server) *Supervisor {
	return &Supervisor{
		feedClient:    feedClient,
		sampler:       smp,
		archiver:      archiver,
		store:         store,
		retentionDays: retentionDays,
		retentionScan: retentionScan,
		diagServer:    diagServer,
	}
}

// Run starts every worker and blocks until ctx is canceled or a worker
// fails with an unrecoverable error. On return, every worker has been
// given the chance to stop (Supervisor does not return until they all
// have exited or shutdownTimeout elapses for the HTTP server).
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.feedClient.Run(gctx)
	})

	g.Go(func() error {
		return s.sampler.Run(gctx)
	})

	if s.archiver != nil {
		g.Go(func() error {
			s.archiver.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		persist.RunRetention(gctx, s.store, s.retentionDays, s.retentionScan)
		return nil
	})

	if s.diagServer != nil {
		g.Go(func() error {
			return s.runDiagServer(gctx)
		})
	}

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Supervisor) runDiagServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.diagServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("supervisor: diagnostics server shutdown: %v", err)
		}
	}()

	log.Printf("supervisor: diagnostics server listening on %s", s.diagServer.Addr)
	if err := s.diagServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
