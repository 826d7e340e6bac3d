// Package book implements the concurrent aggregating order book: a
// price-indexed segment tree that maintains running sums of resting volume
// per product and answers arbitrary price-range volume queries in
// logarithmic time.
//
// Grounded on original_source/gdax_logger/OrderBook.py, translated into
// idiomatic Go: a single mutex serializes every public operation (matching
// OrderBook.__access_lock), and the half-open interval-tree query from the
// Python `get_volume_in_range` is kept verbatim, with the inclusive
// [lo, hi] convention applied uniformly per spec's recommended resolution
// to the ambiguous boundary noted in its Open Questions section.
package book

import (
	"errors"
	"sync"
	"time"

	"github.com/ndrandal/tickerbook/internal/priceindex"
)

// ErrInvalidOrder is returned when a price/volume pair fails validation and
// is dropped rather than applied.
var ErrInvalidOrder = errors.New("book: invalid price or volume")

// LevelInput is one (price, volume) pair as received from the feed, still
// in string form so the grid can convert it without float64 drift.
type LevelInput struct {
	Price  string
	Volume string
}

// Row is a single banded-volume sample, matching the order_books sink
// schema (spec §6).
type Row struct {
	SystemTime  float64
	Product     string
	ServerTime  string
	MarketPrice float64
	BuyVol      []float64
	SellVol     []float64
	Total       float64
}

// Book is a mutable, concurrency-safe segment tree over one product's price
// domain. All public operations acquire mu for their entire duration; no
// operation ever suspends while holding it (spec §5).
type Book struct {
	mu          sync.Mutex
	product     string
	grid        priceindex.Grid
	tree        []float64 // len 2*PriceCapCents; leaves at [PriceCapCents, 2*PriceCapCents)
	marketCents int64     // last observed trade price, in cents; 0 if none seen

	// droppedUpdates counts updates rejected by validation, for the
	// diagnostics endpoint — not logged per-occurrence to avoid burst spam
	// (spec §7's "log once per burst" guidance).
	droppedUpdates uint64
}

// NewBook constructs an empty book for product with the given price cap
// (whole currency units). The book starts unbuilt: every leaf and the root
// are zero until InitFromSnapshot populates them.
func NewBook(product string, priceCap float64) *Book {
	grid := priceindex.NewGrid(priceCap)
	return &Book{
		product: product,
		grid:    grid,
		tree:    make([]float64, 2*grid.PriceCapCents),
	}
}

// Product returns the product this book tracks.
func (b *Book) Product() string {
	return b.product
}

// InitFromSnapshot builds a fresh leaf array from a snapshot's bid and ask
// sides and computes every internal node bottom-up. If a price appears on
// both sides, the later-written entry wins (bids are written first, so a
// colliding ask overwrites it) — this is a feed anomaly in a valid
// snapshot, but the policy keeps the operation total either way.
//
// The whole rebuild happens under one lock acquisition: no external
// observer ever sees a partially rebuilt tree.
func (b *Book) InitFromSnapshot(bids, asks []LevelInput) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.grid.PriceCapCents
	leaves := make([]float64, n)

	apply := func(levels []LevelInput) {
		for _, lvl := range levels {
			idx, err := b.grid.ToIndex(lvl.Price)
			if err != nil {
				b.droppedUpdates++
				continue
			}
			vol, err := priceindex.ParseVolume(lvl.Volume)
			if err != nil {
				b.droppedUpdates++
				continue
			}
			leaves[idx] = vol
		}
	}
	apply(bids)
	apply(asks)

	for i := 0; i < n; i++ {
		b.tree[n+i] = leaves[i]
	}
	for i := n - 1; i >= 1; i-- {
		b.tree[i] = b.tree[2*i] + b.tree[2*i+1]
	}
}

// SetLevel absolutely assigns volume at price, replacing whatever was there
// (the l2update message carries the new total volume at that level,
// including zero, which removes the level — callers must not pre-subtract).
// Invalid input is dropped and counted, never applied partially.
func (b *Book) SetLevel(priceStr, volumeStr string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.grid.ToIndex(priceStr)
	if err != nil {
		b.droppedUpdates++
		return ErrInvalidOrder
	}
	vol, err := priceindex.ParseVolume(volumeStr)
	if err != nil {
		b.droppedUpdates++
		return ErrInvalidOrder
	}

	n := b.grid.PriceCapCents
	i := n + idx
	b.tree[i] = vol
	for i > 1 {
		i >>= 1
		b.tree[i] = b.tree[2*i] + b.tree[2*i+1]
	}
	return nil
}

// SetMarketPrice records the last observed trade price, used to divide the
// book into bid/ask halves during sampling. Invalid input leaves state
// unchanged.
func (b *Book) SetMarketPrice(priceStr string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.grid.ToIndex(priceStr)
	if err != nil {
		return ErrInvalidOrder
	}
	b.marketCents = int64(idx) + 1
	return nil
}

// MarketPrice returns the last observed trade price in whole currency
// units, or 0 if none has been set.
func (b *Book) MarketPrice() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.marketCents) / 100
}

// RangeSum returns the sum of resting volume over [loPrice, hiPrice],
// inclusive on both bounds at cent granularity. Returns 0 for inverted or
// invalid bounds.
func (b *Book) RangeSum(loStr, hiStr string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rangeSumLocked(loStr, hiStr)
}

func (b *Book) rangeSumLocked(loStr, hiStr string) float64 {
	loIdx, err := b.grid.ToIndex(loStr)
	if err != nil {
		return 0
	}
	hiIdx, err := b.grid.ToIndex(hiStr)
	if err != nil {
		return 0
	}
	if hiIdx < loIdx {
		return 0
	}
	return b.querySum(loIdx, hiIdx)
}

// querySum performs the iterative interval-tree query over the half-open
// range [loIdx, hiIdx+1), an inclusive-on-both-ends query at cent
// granularity once hiIdx+1 is taken.
func (b *Book) querySum(loIdx, hiIdx int) float64 {
	n := b.grid.PriceCapCents
	l := n + loIdx
	r := n + hiIdx + 1
	sum := 0.0
	for l < r {
		if l&1 == 1 {
			sum += b.tree[l]
			l++
		}
		if r&1 == 1 {
			r--
			sum += b.tree[r]
		}
		l >>= 1
		r >>= 1
	}
	return sum
}

// Total returns the book's total resting volume across the whole price
// domain. Equivalent to tree[1] once built.
func (b *Book) Total() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalLocked()
}

func (b *Book) totalLocked() float64 {
	n := b.grid.PriceCapCents
	return b.querySum(0, n-1)
}

// Built reports whether the book has received its initial snapshot: true
// iff total resting volume is non-zero.
func (b *Book) Built() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalLocked() != 0
}

// DroppedUpdates returns the number of updates rejected by validation since
// construction, for diagnostics.
func (b *Book) DroppedUpdates() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.droppedUpdates
}

// Sample captures a point-in-time banded-volume row: for each percent p in
// bands, the resting volume within p% of the current market price on each
// side. The entire sample is taken under one lock acquisition, so it is
// always consistent with either the pre- or post-state of any concurrent
// write (spec P6, S4).
func (b *Book) Sample(now time.Time, bands []float64) Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	marketPrice := float64(b.marketCents) / 100
	row := Row{
		SystemTime:  float64(now.UnixNano()) / 1e9,
		Product:     b.product,
		ServerTime:  now.UTC().Format("2006-01-02 15:04:05.999999"),
		MarketPrice: marketPrice,
		BuyVol:      make([]float64, len(bands)),
		SellVol:     make([]float64, len(bands)),
		Total:       b.totalLocked(),
	}

	for i, pct := range bands {
		delta := marketPrice * pct / 100
		lo := marketPrice - delta
		hi := marketPrice + delta
		row.BuyVol[i] = b.rangeSumLocked(b.grid.CentsToPriceString(round2(lo)), b.grid.CentsToPriceString(round2(marketPrice)))
		row.SellVol[i] = b.rangeSumLocked(b.grid.CentsToPriceString(round2(marketPrice)), b.grid.CentsToPriceString(round2(hi)))
	}

	return row
}

// round2 rounds a price (in whole currency units) to the nearest cent and
// returns the cent count, mirroring the grid's own round-half-to-even
// boundary handling for band math performed in floating point.
func round2(price float64) int64 {
	cents := price * 100
	floor := int64(cents)
	frac := cents - float64(floor)
	switch {
	case frac > 0.5:
		return floor + 1
	case frac < 0.5:
		return floor
	default:
		if floor%2 == 0 {
			return floor
		}
		return floor + 1
	}
}
