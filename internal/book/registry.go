package book

import (
	"fmt"

	"github.com/ndrandal/tickerbook/internal/symbol"
)

// Registry is a fixed map of product ID to Book, built once at startup.
// Its shape never changes at runtime: no product is ever added or removed
// after construction, so readers never need to guard the map itself with a
// lock, only the Book each entry points to.
type Registry struct {
	books map[string]*Book
}

// NewRegistry builds one Book per product, sized to that product's price
// cap.
func NewRegistry(products []symbol.Product) *Registry {
	books := make(map[string]*Book, len(products))
	for _, p := range products {
		books[p.ID] = NewBook(p.ID, p.PriceCap)
	}
	return &Registry{books: books}
}

// Get returns the book for product, or nil if product isn't tracked.
func (r *Registry) Get(product string) *Book {
	return r.books[product]
}

// MustGet returns the book for product, panicking if it isn't tracked.
// Used at wiring time where an unknown product indicates a configuration
// bug, not a runtime condition to recover from.
func (r *Registry) MustGet(product string) *Book {
	b, ok := r.books[product]
	if !ok {
		panic(fmt.Sprintf("book: no registry entry for product %q", product))
	}
	return b
}

// Products returns the tracked product IDs, in no particular order.
func (r *Registry) Products() []string {
	out := make([]string, 0, len(r.books))
	for id := range r.books {
		out = append(out, id)
	}
	return out
}

// All returns every tracked book, in no particular order. Used by the
// sampler to iterate once per cadence tick.
func (r *Registry) All() []*Book {
	out := make([]*Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	return out
}
