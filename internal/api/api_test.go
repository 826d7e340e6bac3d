package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndrandal/tickerbook/internal/book"
	"github.com/ndrandal/tickerbook/internal/symbol"
)

func TestHandleHealthz(t *testing.T) {
	registry := book.NewRegistry(symbol.DefaultProducts())
	s := NewServer(registry)
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleStatsReportsAllProducts(t *testing.T) {
	registry := book.NewRegistry(symbol.DefaultProducts())
	registry.Get("BTC-USD").InitFromSnapshot([]book.LevelInput{{Price: "100.00", Volume: "1"}}, nil)

	s := NewServer(registry)
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != len(symbol.DefaultProducts()) {
		t.Fatalf("expected %d products, got %d", len(symbol.DefaultProducts()), len(resp.Products))
	}

	var btc *productStats
	for i := range resp.Products {
		if resp.Products[i].Product == "BTC-USD" {
			btc = &resp.Products[i]
		}
	}
	if btc == nil {
		t.Fatal("expected BTC-USD in stats response")
	}
	if !btc.Built {
		t.Fatal("expected BTC-USD to be built")
	}
}
