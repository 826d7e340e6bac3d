package feed

import (
	"context"
	"sync"
	"testing"

	"github.com/ndrandal/tickerbook/internal/book"
	"github.com/ndrandal/tickerbook/internal/symbol"
)

type fakeTickerSink struct {
	mu   sync.Mutex
	rows []TickerRow
}

func (f *fakeTickerSink) AppendTicker(ctx context.Context, row TickerRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeTickerSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func newTestDemux() (*Demux, *book.Registry, *fakeTickerSink) {
	reg := book.NewRegistry(symbol.DefaultProducts())
	sink := &fakeTickerSink{}
	return NewDemux(reg, sink), reg, sink
}

func TestHandleSnapshotBuildsBook(t *testing.T) {
	d, reg, _ := newTestDemux()
	d.Handle(context.Background(), []byte(`{"type":"snapshot","product_id":"BTC-USD","bids":[["99.00","1.5"]],"asks":[["101.00","0.5"]]}`))

	b := reg.Get("BTC-USD")
	if !b.Built() {
		t.Fatal("expected book to be built after snapshot")
	}
	if total := b.Total(); total != 2.0 {
		t.Fatalf("expected total 2.0, got %f", total)
	}
}

func TestHandleL2UpdateAppliesChange(t *testing.T) {
	d, reg, _ := newTestDemux()
	d.Handle(context.Background(), []byte(`{"type":"snapshot","product_id":"BTC-USD","bids":[["99.00","1.5"]],"asks":[]}`))
	d.Handle(context.Background(), []byte(`{"type":"l2update","product_id":"BTC-USD","changes":[["buy","99.00","3.0"]]}`))

	b := reg.Get("BTC-USD")
	if total := b.Total(); total != 3.0 {
		t.Fatalf("expected total 3.0 after update, got %f", total)
	}
}

func TestHandleMatchSetsMarketPrice(t *testing.T) {
	d, reg, _ := newTestDemux()
	d.Handle(context.Background(), []byte(`{"type":"match","product_id":"BTC-USD","price":"100.00","size":"0.1"}`))

	b := reg.Get("BTC-USD")
	if mp := b.MarketPrice(); mp != 100.00 {
		t.Fatalf("expected market price 100.00, got %f", mp)
	}
}

func TestHandleTickerSetsMarketPriceAndForwardsRow(t *testing.T) {
	d, reg, sink := newTestDemux()
	d.Handle(context.Background(), []byte(`{"type":"ticker","product_id":"ETH-USD","price":"2500.50","best_bid":"2500.00","best_ask":"2501.00","side":"buy","last_size":"0.25"}`))

	b := reg.Get("ETH-USD")
	if mp := b.MarketPrice(); mp != 2500.50 {
		t.Fatalf("expected market price 2500.50, got %f", mp)
	}
	if sink.count() != 1 {
		t.Fatalf("expected 1 ticker row forwarded, got %d", sink.count())
	}
	row := sink.rows[0]
	if row.ProductID != "ETH-USD" || row.Price != 2500.50 || row.Side != "buy" {
		t.Fatalf("unexpected ticker row: %+v", row)
	}
}

func TestHandleUntrackedProductIgnored(t *testing.T) {
	d, _, _ := newTestDemux()
	// Should not panic for an untracked product.
	d.Handle(context.Background(), []byte(`{"type":"match","product_id":"DOGE-USD","price":"1.00","size":"1"}`))
}

func TestHandleMalformedFrameIgnored(t *testing.T) {
	d, _, _ := newTestDemux()
	// Should not panic on malformed JSON.
	d.Handle(context.Background(), []byte(`not json`))
}

func TestHandleUnknownTypeIgnored(t *testing.T) {
	d, _, _ := newTestDemux()
	d.Handle(context.Background(), []byte(`{"type":"done","product_id":"BTC-USD"}`))
}
