package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ndrandal/tickerbook/internal/config"
)

// defaultPingPeriod is how often the client writes its own ping frame when the
// configured interval is zero; otherwise cfg.PingInterval is used directly.
const defaultPingPeriod = 15 * time.Second

// Client dials an exchange WebSocket feed, subscribes to the configured
// products and channels, and forwards every decoded frame to a Demux. It
// reconnects automatically with exponential backoff on any read or dial
// error, matching the original Python listener's retry loop but expressed
// as the client side of the teacher's read-pump/write-pump split
// (session/handler.go) instead of the server side.
type Client struct {
	cfg   config.FeedConfig
	demux *Demux
}

// NewClient builds a feed Client that will deliver frames to demux.
func NewClient(cfg config.FeedConfig, demux *Demux) *Client {
	return &Client{cfg: cfg, demux: demux}
}

// Run dials and serves the feed until ctx is canceled, reconnecting with
// exponential backoff between attempts. It only returns when ctx is done.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := c.cfg.ReconnectMax
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("feed: connection error: %v (retrying in %s)", err, backoff)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runOnce performs a single dial-subscribe-read cycle. It always returns a
// non-nil error: ctx's error once ctx is canceled, otherwise the dial,
// subscribe or read error that ended the cycle, which triggers the
// reconnect/backoff loop in Run.
func (c *Client) runOnce(ctx context.Context) error {
	dialTimeout := c.cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return fmt.Errorf("dial %s: %w (status %d)", c.cfg.URL, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	productIDs := make([]string, 0, len(c.cfg.Products))
	for _, p := range c.cfg.Products {
		productIDs = append(productIDs, p.ID)
	}
	sub := subscribeRequest{Type: "subscribe", ProductIDs: productIDs, Channels: c.cfg.Channels}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscribe request: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write subscribe request: %w", err)
	}

	readTimeout := c.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	pingPeriod := c.cfg.PingInterval
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	done := make(chan struct{})
	go c.writePump(conn, pingPeriod, done)
	defer close(done)

	return c.readPump(ctx, conn, readTimeout)
}

// readPump blocks reading frames off conn and forwarding each to the demux
// until ctx is canceled or the connection errors.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, readTimeout time.Duration) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read: %w", err)
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.demux.Handle(ctx, raw)
	}
}

// writePump sends periodic ping frames to keep the connection alive from
// the client side, independent of any server-initiated pings.
func (c *Client) writePump(conn *websocket.Conn, period time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
