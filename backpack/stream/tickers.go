// Package stream provides the public websocket ticker feed. No signing is
// involved; the feed carries market data only.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// DefaultURL is the exchange's public websocket endpoint.
const DefaultURL = "wss://ws.backpack.exchange"

// TickerUpdate is one ticker.<symbol> stream event.
type TickerUpdate struct {
	Symbol      string `json:"s"`
	LastPrice   string `json:"c"`
	OpenPrice   string `json:"o"`
	HighPrice   string `json:"h"`
	LowPrice    string `json:"l"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"V"`
	Trades      int64  `json:"n"`
	EventTime   int64  `json:"E"`
}

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type request struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Config tunes the ticker stream connection.
type Config struct {
	URL      string
	ProxyURL string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration

	// ReconnectDelay and MaxReconnects bound the reconnect loop.
	// MaxReconnects <= 0 means reconnect forever.
	ReconnectDelay time.Duration
	MaxReconnects  int

	Log *log.Entry
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.Log == nil {
		c.Log = log.WithField("component", "ticker-stream")
	}
}

// Tickers streams ticker updates for a fixed symbol set. Updates are
// delivered on the channel returned by Updates; the stream reconnects and
// re-subscribes on connection loss until the context is cancelled or the
// reconnect budget runs out.
type Tickers struct {
	cfg     Config
	symbols []string
	updates chan TickerUpdate
}

// NewTickers prepares a ticker stream for the given symbols. Run starts it.
func NewTickers(cfg Config, symbols ...string) *Tickers {
	cfg.applyDefaults()
	return &Tickers{
		cfg:     cfg,
		symbols: symbols,
		updates: make(chan TickerUpdate, 64),
	}
}

// Updates is the delivery channel. It is closed when Run returns.
func (t *Tickers) Updates() <-chan TickerUpdate { return t.updates }

// Run connects, subscribes and pumps updates until ctx is cancelled or the
// reconnect budget is exhausted. It always closes the updates channel on
// return.
func (t *Tickers) Run(ctx context.Context) error {
	defer close(t.updates)

	attempts := 0
	for {
		err := t.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		if t.cfg.MaxReconnects > 0 && attempts > t.cfg.MaxReconnects {
			return fmt.Errorf("ticker stream: giving up after %d reconnects: %w", attempts-1, err)
		}
		t.cfg.Log.WithError(err).WithField("attempt", attempts).
			Warn("ticker stream disconnected, reconnecting")

		select {
		case <-time.After(t.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tickers) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	if t.cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(t.cfg.ProxyURL)
		if err != nil {
			return fmt.Errorf("ticker stream: invalid proxy url: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("ticker stream: dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the context goes away.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := t.subscribe(conn); err != nil {
		return err
	}
	t.cfg.Log.WithField("symbols", t.symbols).Info("ticker stream subscribed")

	for {
		conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ticker stream: read: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil || env.Stream == "" {
			// Subscription acks and pings arrive without a stream field.
			continue
		}
		var update TickerUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			t.cfg.Log.WithError(err).WithField("stream", env.Stream).
				Warn("ticker stream: undecodable event")
			continue
		}

		select {
		case t.updates <- update:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Slow consumer: drop the tick, the next one supersedes it.
		}
	}
}

func (t *Tickers) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(t.symbols))
	for _, symbol := range t.symbols {
		params = append(params, "ticker."+symbol)
	}
	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := conn.WriteJSON(request{Method: "SUBSCRIBE", Params: params}); err != nil {
		return fmt.Errorf("ticker stream: subscribe: %w", err)
	}
	return nil
}
