package book

import (
	"testing"

	"github.com/ndrandal/tickerbook/internal/symbol"
)

func TestRegistryGetKnownProduct(t *testing.T) {
	r := NewRegistry(symbol.DefaultProducts())
	b := r.Get("BTC-USD")
	if b == nil {
		t.Fatal("expected BTC-USD to be registered")
	}
	if b.Product() != "BTC-USD" {
		t.Fatalf("expected product BTC-USD, got %s", b.Product())
	}
}

func TestRegistryGetUnknownProduct(t *testing.T) {
	r := NewRegistry(symbol.DefaultProducts())
	if b := r.Get("DOGE-USD"); b != nil {
		t.Fatal("expected nil for untracked product")
	}
}

func TestRegistryMustGetPanicsOnUnknown(t *testing.T) {
	r := NewRegistry(symbol.DefaultProducts())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for untracked product")
		}
	}()
	r.MustGet("DOGE-USD")
}

func TestRegistryAllCoversEveryProduct(t *testing.T) {
	products := symbol.DefaultProducts()
	r := NewRegistry(products)
	if len(r.All()) != len(products) {
		t.Fatalf("expected %d books, got %d", len(products), len(r.All()))
	}
	if len(r.Products()) != len(products) {
		t.Fatalf("expected %d product ids, got %d", len(products), len(r.Products()))
	}
}
