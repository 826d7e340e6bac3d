// Package feed dials an exchange's public WebSocket market-data feed,
// decodes its GDAX-shaped JSON messages, and demultiplexes them into the
// per-product books that track resting volume and market price.
//
// Grounded on the teacher's internal/session package: the original
// runs a broadcast server that client browsers dial into; this package
// inverts that direction — it is the dialing side — but keeps the same
// read-pump/write-pump split, deadline discipline, and ping/pong handling
// from session/handler.go.
package feed

import (
	"context"
	"encoding/json"
	"strconv"
)

// subscribeRequest is sent once per connection, naming the channels and
// products to receive.
type subscribeRequest struct {
	Type       string       `json:"type"`
	ProductIDs []string     `json:"product_ids"`
	Channels   []string     `json:"channels"`
}

// envelope is decoded first to discover a message's type before unmarshaling
// the rest of its fields, mirroring how the original Python logger branches
// on msg["type"] in its GDAXFeedListener.
type envelope struct {
	Type string `json:"type"`
}

// snapshotMessage is the initial full order book state for a product.
type snapshotMessage struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Bids      [][]string `json:"bids"` // [price, size]
	Asks      [][]string `json:"asks"`
}

// l2UpdateMessage carries incremental price-level changes.
type l2UpdateMessage struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Changes   [][]string `json:"changes"` // [side, price, size]
}

// matchMessage reports an executed trade, which updates market price.
// The GDAX feed emits both "match" and legacy "last_match" with identical
// shape.
type matchMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
}

// tickerMessage is GDAX's periodic best-bid/ask/price summary. Besides
// updating market price, its full field set is forwarded to the ticker
// sink verbatim.
type tickerMessage struct {
	Type       string `json:"type"`
	ProductID  string `json:"product_id"`
	Price      string `json:"price"`
	Open24h    string `json:"open_24h"`
	Volume24h  string `json:"volume_24h"`
	BestBid    string `json:"best_bid"`
	BestAsk    string `json:"best_ask"`
	Side       string `json:"side"`
	LastSize   string `json:"last_size"`
}

// TickerRow is one ticker-channel observation, matching the tickers sink
// table (spec §6).
type TickerRow struct {
	SystemTime float64
	ServerTime string
	ProductID  string
	Price      float64
	Open24h    float64
	Volume24h  float64
	BestBid    float64
	BestAsk    float64
	Side       string
	LastSize   float64
}

// TickerSink receives decoded ticker rows. Implemented by the Mongo-backed
// sink in internal/sink.
type TickerSink interface {
	AppendTicker(ctx context.Context, row TickerRow) error
}

func decodeType(raw []byte) (string, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", err
	}
	return e.Type, nil
}

// parseOptionalFloat parses a numeric feed field that may be absent or
// malformed; callers treat a parse failure as 0 rather than dropping the
// whole row, since ticker fields besides price are supplementary.
func parseOptionalFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
