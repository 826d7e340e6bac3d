// Package symbol holds the fixed table of tracked products and their
// per-product price caps.
package symbol

// Product describes one tracked trading pair and the upper price bound its
// order book is built over.
type Product struct {
	ID       string
	PriceCap float64
}

// PriceCapCents is the price cap expressed as a whole number of cents,
// matching the leaf domain size of the segment tree built for this product.
func (p Product) PriceCapCents() int {
	return int(p.PriceCap * 100)
}

// defaultProducts is the built-in product table, mirroring the real GDAX
// price caps the original logger hardcoded per currency pair.
var defaultProducts = []Product{
	{ID: "BTC-USD", PriceCap: 50000},
	{ID: "ETH-USD", PriceCap: 10000},
	{ID: "LTC-USD", PriceCap: 5000},
	{ID: "BCH-USD", PriceCap: 20000},
}

// DefaultProducts returns the built-in four-product table.
func DefaultProducts() []Product {
	out := make([]Product, len(defaultProducts))
	copy(out, defaultProducts)
	return out
}

// ByID indexes a product list by its product ID for quick lookups.
func ByID(products []Product) map[string]Product {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
