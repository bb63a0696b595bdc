package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBinanceURL = "wss://stream.binance.com:9443/stream"

	readTimeout  = 30 * time.Second
	pingInterval = 15 * time.Second
	maxBackoff   = 30 * time.Second
)

type Config struct {
	URL     string
	Venue   string
	Symbols []string
	// Trades also subscribes to the trade stream of every symbol.
	Trades bool
}

// BinanceFeed streams bookTicker quotes (and optionally trades) from a Binance
// combined stream endpoint, reconnecting with backoff until ctx is done.
type BinanceFeed struct {
	cfg    Config
	log    *logrus.Entry
	dialer websocket.Dialer
}

func NewBinanceFeed(cfg Config, logger *logrus.Logger) (*BinanceFeed, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("binance feed requires at least one symbol")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultBinanceURL
	}
	if cfg.Venue == "" {
		cfg.Venue = "BINANCE"
	}
	return &BinanceFeed{
		cfg:    cfg,
		log:    logger.WithFields(logrus.Fields{"component": "feed", "venue": cfg.Venue}),
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

func (f *BinanceFeed) Name() string {
	return "binance:" + f.cfg.Venue
}

func (f *BinanceFeed) streamURL() string {
	streams := make([]string, 0, len(f.cfg.Symbols)*2)
	for _, sym := range f.cfg.Symbols {
		lower := strings.ToLower(sym)
		streams = append(streams, lower+"@bookTicker")
		if f.cfg.Trades {
			streams = append(streams, lower+"@trade")
		}
	}
	return fmt.Sprintf("%s?streams=%s", f.cfg.URL, strings.Join(streams, "/"))
}

func (f *BinanceFeed) Run(ctx context.Context, out chan<- domain.Tick) error {
	url := f.streamURL()
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consume(ctx, url, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.WithError(err).WithField("retry_in", backoff.String()).Warn("feed disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (f *BinanceFeed) consume(ctx context.Context, url string, out chan<- domain.Tick) error {
	conn, _, err := f.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.WithField("symbols", f.cfg.Symbols).Info("connected market data feed")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					f.log.WithError(err).Warn("ping failed")
					return
				}
			case <-pingCtx.Done():
				// unblock ReadMessage on shutdown
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		tick, ok, err := parseMessage(f.cfg.Venue, message)
		if err != nil {
			f.log.WithError(err).Debug("failed to decode message")
			continue
		}
		if !ok {
			continue
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type bookTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

type trade struct {
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// parseMessage decodes one combined-stream frame. ok is false for frames that
// carry no tick, such as subscription acknowledgements.
func parseMessage(venue string, raw []byte) (domain.Tick, bool, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Tick{}, false, err
	}
	_, kind, found := strings.Cut(env.Stream, "@")
	if !found || len(env.Data) == 0 {
		return domain.Tick{}, false, nil
	}

	switch kind {
	case "bookTicker":
		var bt bookTicker
		if err := json.Unmarshal(env.Data, &bt); err != nil {
			return domain.Tick{}, false, err
		}
		bid, err := strconv.ParseFloat(bt.Bid, 64)
		if err != nil {
			return domain.Tick{}, false, fmt.Errorf("invalid bid %q: %w", bt.Bid, err)
		}
		ask, err := strconv.ParseFloat(bt.Ask, 64)
		if err != nil {
			return domain.Tick{}, false, fmt.Errorf("invalid ask %q: %w", bt.Ask, err)
		}
		return domain.Tick{
			Exchange: venue,
			Symbol:   strings.ToUpper(bt.Symbol),
			Kind:     domain.TickQuote,
			Time:     time.Now().UTC(),
			Price:    (bid + ask) / 2,
			BidPrice: bid,
			AskPrice: ask,
			HasBid:   true,
		}, true, nil
	case "trade":
		var tr trade
		if err := json.Unmarshal(env.Data, &tr); err != nil {
			return domain.Tick{}, false, err
		}
		px, err := strconv.ParseFloat(tr.Price, 64)
		if err != nil {
			return domain.Tick{}, false, fmt.Errorf("invalid price %q: %w", tr.Price, err)
		}
		return domain.Tick{
			Exchange: venue,
			Symbol:   strings.ToUpper(tr.Symbol),
			Kind:     domain.TickTrade,
			Time:     time.UnixMilli(tr.TradeTime).UTC(),
			Price:    px,
		}, true, nil
	default:
		return domain.Tick{}, false, nil
	}
}
