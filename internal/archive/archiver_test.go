package archive

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestGroupByDay(t *testing.T) {
	rows := []bson.M{
		{"system_time": float64(1700000000), "product_id": "BTC-USD"},
		{"system_time": float64(1700000100), "product_id": "BTC-USD"},
		{"system_time": float64(1700100000), "product_id": "ETH-USD"},
	}
	batches := groupByDay(rows)
	if len(batches) != 2 {
		t.Fatalf("expected 2 day batches, got %d", len(batches))
	}
}

func TestCursorKey(t *testing.T) {
	if got := cursorKey("tickers"); got != "tickers_archive_cursor" {
		t.Fatalf("unexpected cursor key: %s", got)
	}
}
