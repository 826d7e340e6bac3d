// Package sampler periodically captures a banded-volume snapshot of every
// tracked book and forwards it to a sink.
package sampler

import (
	"context"
	"log"
	"time"

	"github.com/ndrandal/tickerbook/internal/book"
)

// BookSink receives one sampled row at a time. Implementations are
// expected to be durable (the Mongo-backed sink in internal/sink) but the
// sampler itself never blocks retrying a failed append — that policy
// belongs to the sink.
type BookSink interface {
	AppendBook(ctx context.Context, row book.Row) error
}

// Sampler runs a fixed-cadence loop over a Registry, skipping any book that
// hasn't received its initial snapshot yet (spec's "skip unbuilt books"
// rule), and forwards every other book's sample to sink.
type Sampler struct {
	registry *book.Registry
	sink     BookSink
	period   time.Duration
	bands    []float64

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New builds a Sampler over registry, sampling every period at the given
// percent bands and forwarding rows to sink.
func New(registry *book.Registry, sink BookSink, period time.Duration, bands []float64) *Sampler {
	return &Sampler{
		registry: registry,
		sink:     sink,
		period:   period,
		bands:    bands,
		now:      time.Now,
	}
}

// Run blocks, sampling every s.period until ctx is canceled. The loop is
// self-paced: it waits s.period after each pass finishes, however long the
// pass took.
func (s *Sampler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.period):
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	for _, b := range s.registry.All() {
		if !b.Built() {
			continue
		}
		row := b.Sample(s.now(), s.bands)
		if err := s.sink.AppendBook(ctx, row); err != nil {
			log.Printf("sampler: append failed for %s: %v", b.Product(), err)
		}
	}
}
