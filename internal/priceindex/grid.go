// Package priceindex converts exchange price/volume strings into the
// fixed-point cent index a SegmentBook leaf array is keyed by.
//
// Prices arrive from the feed as decimal strings. Converting through
// float64 risks drift at cent boundaries (e.g. "19999.995" rounding the
// wrong way), so every conversion goes string -> decimal -> integer cents,
// matching the pattern the Coinbase market-data sample uses for its
// px/qty fields: decimal.Decimal end to end, float64 never touches a
// financial value.
package priceindex

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned when a price is non-numeric, non-positive, or
// above the grid's price cap.
var ErrInvalidPrice = errors.New("priceindex: invalid price")

const centsPerUnit = 100

// Grid converts between a product's decimal price strings and the
// zero-based leaf index of its price-capped segment tree.
type Grid struct {
	// PriceCapCents is the upper bound of the leaf domain, in cents. Valid
	// prices satisfy 1 <= cents <= PriceCapCents.
	PriceCapCents int
}

// NewGrid builds a Grid for a product whose price cap is given in whole
// currency units (e.g. 50000 for a $50,000 BTC-USD cap).
func NewGrid(priceCap float64) Grid {
	return Grid{PriceCapCents: int(priceCap * centsPerUnit)}
}

// ToIndex parses a decimal price string and returns its zero-based leaf
// index: cents-1, where cents = round-half-to-even(price * 100).
// Returns ErrInvalidPrice if the string doesn't parse, is non-positive, or
// exceeds the grid's price cap.
func (g Grid) ToIndex(priceStr string) (int, error) {
	d, err := decimal.NewFromString(priceStr)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	return g.toIndexDecimal(d)
}

// ToIndexFloat performs the same conversion starting from a float64 price,
// for call sites that already hold a parsed numeric value (e.g. a market
// price echoed back from an earlier ToIndex call). Feed input should always
// go through ToIndex instead, so the raw string drives the rounding.
func (g Grid) ToIndexFloat(price float64) (int, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, ErrInvalidPrice
	}
	d := decimal.NewFromFloat(price)
	return g.toIndexDecimal(d)
}

func (g Grid) toIndexDecimal(d decimal.Decimal) (int, error) {
	// RoundBank applies round-half-to-even, matching spec's
	// round-to-nearest-even requirement at the cent boundary.
	cents := d.Shift(2).RoundBank(0)
	if cents.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	if !cents.IsInteger() {
		return 0, ErrInvalidPrice
	}
	centsInt := cents.IntPart()
	if centsInt < 1 || centsInt > int64(g.PriceCapCents) {
		return 0, ErrInvalidPrice
	}
	return int(centsInt - 1), nil
}

// CentsToPriceString renders a cent count back into a decimal price string,
// e.g. cents=10000 (leaf index 9999) -> "100.00". Used when a caller needs to
// echo an index-derived bound back through ToIndex (band computation).
func (g Grid) CentsToPriceString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ValidVolume reports whether v is a finite, non-negative volume.
func ValidVolume(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ParseVolume parses a decimal volume string into a float64, validating it
// is finite and non-negative. Returns an error for malformed or negative
// input.
func ParseVolume(volStr string) (float64, error) {
	d, err := decimal.NewFromString(volStr)
	if err != nil {
		return 0, errors.New("priceindex: invalid volume")
	}
	v, _ := d.Float64()
	if !ValidVolume(v) {
		return 0, errors.New("priceindex: invalid volume")
	}
	return v, nil
}
