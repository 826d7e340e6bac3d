// Package sink implements the durable tickers/order_books time series on
// top of MongoDB, grounded on the teacher's internal/persist.Store wrapper.
// Both tables share one append contract: a successful append is
// synchronous; a duplicate system_time is dropped silently (the sample is
// superseded by the next one); any other error, transient or not, is
// forwarded to the rate-limited operator notifier and returned to the
// caller to log, never escalated to a crash.
package sink

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ndrandal/tickerbook/internal/book"
	"github.com/ndrandal/tickerbook/internal/feed"
	"github.com/ndrandal/tickerbook/internal/notify"
	"github.com/ndrandal/tickerbook/internal/persist"
	"github.com/ndrandal/tickerbook/internal/sampler"
)

// Mongo implements both feed.TickerSink and sampler.BookSink against a
// single persist.Store, routing every error other than a duplicate key to
// notifier. Timeouts and network errors are not told apart from other
// failures.
type Mongo struct {
	store    *persist.Store
	notifier notify.Notifier
}

// New builds a Mongo sink over store, reporting unexpected errors through
// notifier.
func New(store *persist.Store, notifier notify.Notifier) *Mongo {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Mongo{store: store, notifier: notifier}
}

var (
	_ feed.TickerSink    = (*Mongo)(nil)
	_ sampler.BookSink   = (*Mongo)(nil)
)

// tickerDoc and bookDoc give each row a stable BSON shape, independent of
// the in-memory struct field order.
type tickerDoc struct {
	SystemTime float64 `bson:"system_time"`
	ServerTime string  `bson:"server_time"`
	ProductID  string  `bson:"product_id"`
	Price      float64 `bson:"price"`
	Open24h    float64 `bson:"open_24h"`
	Volume24h  float64 `bson:"volume_24h"`
	BestBid    float64 `bson:"best_bid"`
	BestAsk    float64 `bson:"best_ask"`
	Side       string  `bson:"side"`
	LastSize   float64 `bson:"last_size"`
}

type bookDoc struct {
	SystemTime  float64   `bson:"system_time"`
	ProductID   string    `bson:"product_id"`
	ServerTime  string    `bson:"server_time"`
	MarketPrice float64   `bson:"market_price"`
	BuyVol      []float64 `bson:"buy_vol"`
	SellVol     []float64 `bson:"sell_vol"`
	Total       float64   `bson:"total"`
}

// AppendTicker inserts one ticker row. Duplicate system_time is dropped
// without escalation; any other error is reported through notifier.
func (m *Mongo) AppendTicker(ctx context.Context, row feed.TickerRow) error {
	doc := tickerDoc{
		SystemTime: row.SystemTime,
		ServerTime: row.ServerTime,
		ProductID:  row.ProductID,
		Price:      row.Price,
		Open24h:    row.Open24h,
		Volume24h:  row.Volume24h,
		BestBid:    row.BestBid,
		BestAsk:    row.BestAsk,
		Side:       row.Side,
		LastSize:   row.LastSize,
	}
	_, err := m.store.DB().Collection(persist.TickersCollection).InsertOne(ctx, doc)
	return m.handleInsertError(ctx, persist.TickersCollection, err)
}

// AppendBook inserts one book-snapshot row, following the same
// duplicate/other-error policy as AppendTicker.
func (m *Mongo) AppendBook(ctx context.Context, row book.Row) error {
	doc := bookDoc{
		SystemTime:  row.SystemTime,
		ProductID:   row.Product,
		ServerTime:  row.ServerTime,
		MarketPrice: row.MarketPrice,
		BuyVol:      row.BuyVol,
		SellVol:     row.SellVol,
		Total:       row.Total,
	}
	_, err := m.store.DB().Collection(persist.BooksCollection).InsertOne(ctx, doc)
	return m.handleInsertError(ctx, persist.BooksCollection, err)
}

func (m *Mongo) handleInsertError(ctx context.Context, collection string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		// Duplicate system_time: the row is superseded by the next sample,
		// drop without escalation per spec.
		return nil
	}
	msg := fmt.Sprintf("sink: insert into %s failed: %v", collection, err)
	if notifyErr := m.notifier.Notify(ctx, msg); notifyErr != nil {
		return fmt.Errorf("%s (notify also failed: %v)", msg, notifyErr)
	}
	return fmt.Errorf("insert into %s: %w", collection, err)
}
