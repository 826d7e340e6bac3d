package book

import (
	"sync"
	"testing"
	"time"
)

func TestNewBookUnbuilt(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	if b.Built() {
		t.Fatal("expected fresh book to be unbuilt")
	}
	if total := b.Total(); total != 0 {
		t.Fatalf("expected total 0, got %f", total)
	}
}

func TestInitFromSnapshotBuildsTree(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	bids := []LevelInput{{Price: "99.00", Volume: "1.5"}, {Price: "98.50", Volume: "2.0"}}
	asks := []LevelInput{{Price: "101.00", Volume: "0.5"}}
	b.InitFromSnapshot(bids, asks)

	if !b.Built() {
		t.Fatal("expected book to be built after snapshot")
	}
	if total := b.Total(); total != 4.0 {
		t.Fatalf("expected total 4.0, got %f", total)
	}
}

func TestRangeSumInclusiveBounds(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "3"}}, nil)

	sum := b.RangeSum("100.00", "100.00")
	if sum != 3 {
		t.Fatalf("expected 3 at exact price, got %f", sum)
	}
	sum = b.RangeSum("99.00", "101.00")
	if sum != 3 {
		t.Fatalf("expected 3 within a range containing the level, got %f", sum)
	}
	sum = b.RangeSum("100.01", "101.00")
	if sum != 0 {
		t.Fatalf("expected 0 just above the level, got %f", sum)
	}
}

func TestRangeSumInvertedBoundsIsZero(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "3"}}, nil)
	if sum := b.RangeSum("101.00", "99.00"); sum != 0 {
		t.Fatalf("expected 0 for inverted bounds, got %f", sum)
	}
}

func TestSetLevelUpdatesInPlace(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "3"}}, nil)

	if err := b.SetLevel("100.00", "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total := b.Total(); total != 5 {
		t.Fatalf("expected total 5 after update, got %f", total)
	}
}

func TestSetLevelZeroRemovesLevel(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "3"}}, nil)

	if err := b.SetLevel("100.00", "0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total := b.Total(); total != 0 {
		t.Fatalf("expected total 0 after zeroing level, got %f", total)
	}
}

func TestSetLevelRejectsInvalidPrice(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	if err := b.SetLevel("not-a-price", "1"); err != ErrInvalidOrder {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	if dropped := b.DroppedUpdates(); dropped != 1 {
		t.Fatalf("expected 1 dropped update, got %d", dropped)
	}
}

func TestSetLevelRejectsAboveCapLeavesTreeUnchanged(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "3"}}, nil)
	_ = b.SetLevel("500.00", "10")
	if total := b.Total(); total != 3 {
		t.Fatalf("expected total unchanged at 3, got %f", total)
	}
}

func TestSetMarketPriceAndSample(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot(
		[]LevelInput{{Price: "99.00", Volume: "1"}, {Price: "98.00", Volume: "2"}},
		[]LevelInput{{Price: "101.00", Volume: "1"}, {Price: "102.00", Volume: "2"}},
	)
	if err := b.SetMarketPrice("100.00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mp := b.MarketPrice(); mp != 100.00 {
		t.Fatalf("expected market price 100.00, got %f", mp)
	}

	row := b.Sample(time.Unix(1700000000, 0), []float64{1, 5})
	if row.Product != "BTC-USD" {
		t.Fatalf("expected product BTC-USD, got %s", row.Product)
	}
	if row.MarketPrice != 100.00 {
		t.Fatalf("expected sampled market price 100.00, got %f", row.MarketPrice)
	}
	if row.Total != 6 {
		t.Fatalf("expected total 6, got %f", row.Total)
	}
	// 1% band: [99.00, 100.00] buy side catches the 99.00 level (vol 1).
	if row.BuyVol[0] != 1 {
		t.Fatalf("expected buy volume 1 within 1%% band, got %f", row.BuyVol[0])
	}
	// 5% band: [95.00, 100.00] buy side catches both bid levels (1+2=3).
	if row.BuyVol[1] != 3 {
		t.Fatalf("expected buy volume 3 within 5%% band, got %f", row.BuyVol[1])
	}
}

func TestSampleWithoutMarketPriceIsZero(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "3"}}, nil)
	row := b.Sample(time.Unix(1700000000, 0), []float64{1})
	if row.MarketPrice != 0 {
		t.Fatalf("expected market price 0 when never set, got %f", row.MarketPrice)
	}
}

func TestConcurrentWritesAndSampleDoNotRace(t *testing.T) {
	b := NewBook("BTC-USD", 200)
	b.InitFromSnapshot([]LevelInput{{Price: "100.00", Volume: "1"}}, nil)
	_ = b.SetMarketPrice("100.00")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = b.SetLevel("100.00", "1")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Sample(time.Unix(1700000000, 0), []float64{1, 5, 10})
		}
	}()
	wg.Wait()
}
