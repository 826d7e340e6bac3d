package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ndrandal/tickerbook/internal/book"
	"github.com/ndrandal/tickerbook/internal/config"
	"github.com/ndrandal/tickerbook/internal/symbol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestClientSubscribesAndDemuxesFrames(t *testing.T) {
	registry := book.NewRegistry(symbol.DefaultProducts())
	demux := NewDemux(registry, &fakeTickerSink{})

	receivedSub := make(chan subscribeRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeRequest
		if err := json.Unmarshal(msg, &sub); err == nil {
			receivedSub <- sub
		}

		snapshot := []byte(`{"type":"snapshot","product_id":"BTC-USD","bids":[["100.00","2.0"]],"asks":[]}`)
		if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
			return
		}

		// Keep the connection open briefly so the client's read loop has
		// time to process the frame before the test tears down.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	cfg := config.FeedConfig{
		URL:          wsURL,
		Products:     []config.Product{{ID: "BTC-USD", PriceCap: 200}},
		Channels:     []string{"ticker", "level2"},
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		PingInterval: time.Second,
		ReconnectMin: 100 * time.Millisecond,
		ReconnectMax: time.Second,
	}

	client := NewClient(cfg, demux)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	select {
	case sub := <-receivedSub:
		if sub.Type != "subscribe" {
			t.Fatalf("expected subscribe type, got %s", sub.Type)
		}
		if len(sub.ProductIDs) != 1 || sub.ProductIDs[0] != "BTC-USD" {
			t.Fatalf("expected product BTC-USD, got %v", sub.ProductIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe request")
	}

	<-ctx.Done()
	<-done

	b := registry.Get("BTC-USD")
	if !b.Built() {
		t.Fatal("expected BTC-USD book to be built from the snapshot frame")
	}
}
