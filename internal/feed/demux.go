package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ndrandal/tickerbook/internal/book"
)

// Demux routes decoded feed frames to the right product's book, and
// forwards ticker frames to a TickerSink. It holds no mutable state of its
// own beyond those references, so Handle is safe to call from a single
// reader goroutine without any locking here — every Book guards its own
// mutation, and the sink is expected to be safe for concurrent use.
type Demux struct {
	registry   *book.Registry
	tickerSink TickerSink
	now        func() time.Time
}

// NewDemux builds a Demux over registry, forwarding decoded ticker rows to
// tickerSink.
func NewDemux(registry *book.Registry, tickerSink TickerSink) *Demux {
	return &Demux{registry: registry, tickerSink: tickerSink, now: time.Now}
}

// Handle decodes one raw feed frame and applies it to the matching book or
// sink. Unknown message types and frames for untracked products are
// silently ignored, matching the original listener's behavior of only
// reacting to the message types it understands.
func (d *Demux) Handle(ctx context.Context, raw []byte) {
	typ, err := decodeType(raw)
	if err != nil {
		log.Printf("feed: malformed frame: %v", err)
		return
	}

	switch typ {
	case "snapshot":
		d.handleSnapshot(raw)
	case "l2update":
		d.handleL2Update(raw)
	case "match", "last_match":
		d.handleMatch(raw)
	case "ticker":
		d.handleTicker(ctx, raw)
	case "subscriptions", "heartbeat":
		// acknowledgements and heartbeats carry no book-relevant state.
	case "error":
		log.Printf("feed: server reported error frame: %s", raw)
	default:
		// Forward compatibility: the feed may add message types we don't
		// need to react to.
	}
}

func (d *Demux) handleSnapshot(raw []byte) {
	var msg snapshotMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("feed: malformed snapshot: %v", err)
		return
	}
	b := d.registry.Get(msg.ProductID)
	if b == nil {
		return
	}

	bids := make([]book.LevelInput, 0, len(msg.Bids))
	for _, lvl := range msg.Bids {
		if len(lvl) < 2 {
			continue
		}
		bids = append(bids, book.LevelInput{Price: lvl[0], Volume: lvl[1]})
	}
	asks := make([]book.LevelInput, 0, len(msg.Asks))
	for _, lvl := range msg.Asks {
		if len(lvl) < 2 {
			continue
		}
		asks = append(asks, book.LevelInput{Price: lvl[0], Volume: lvl[1]})
	}
	b.InitFromSnapshot(bids, asks)
}

func (d *Demux) handleL2Update(raw []byte) {
	var msg l2UpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("feed: malformed l2update: %v", err)
		return
	}
	b := d.registry.Get(msg.ProductID)
	if b == nil {
		return
	}
	for _, change := range msg.Changes {
		if len(change) < 3 {
			continue
		}
		price, vol := change[1], change[2]
		_ = b.SetLevel(price, vol)
	}
}

func (d *Demux) handleMatch(raw []byte) {
	var msg matchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("feed: malformed match: %v", err)
		return
	}
	b := d.registry.Get(msg.ProductID)
	if b == nil {
		return
	}
	_ = b.SetMarketPrice(msg.Price)
}

func (d *Demux) handleTicker(ctx context.Context, raw []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("feed: malformed ticker: %v", err)
		return
	}
	b := d.registry.Get(msg.ProductID)
	if b == nil {
		return
	}
	_ = b.SetMarketPrice(msg.Price)

	if d.tickerSink == nil {
		return
	}
	now := d.now()
	row := TickerRow{
		SystemTime: float64(now.UnixNano()) / 1e9,
		ServerTime: now.UTC().Format("2006-01-02 15:04:05.999999"),
		ProductID:  msg.ProductID,
		Price:      parseOptionalFloat(msg.Price),
		Open24h:    parseOptionalFloat(msg.Open24h),
		Volume24h:  parseOptionalFloat(msg.Volume24h),
		BestBid:    parseOptionalFloat(msg.BestBid),
		BestAsk:    parseOptionalFloat(msg.BestAsk),
		Side:       msg.Side,
		LastSize:   parseOptionalFloat(msg.LastSize),
	}
	if err := d.tickerSink.AppendTicker(ctx, row); err != nil {
		log.Printf("feed: ticker sink append failed for %s: %v", msg.ProductID, err)
	}
}
