// Package btse adapts the BTSE public futures websockets into book and
// trade updates for the reconciliation engine.
package btse

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/adapter"
	"github.com/caesar-terminal/ladder/internal/metrics"
)

// Conn is the part of adapter.WSClient a feed needs.
type Conn interface {
	Subscribe() <-chan []byte
	Send(data []byte)
	OnConnect(fn func())
}

// BookFeed consumes the order book channel and emits BookUpdate values.
type BookFeed struct {
	conn    Conn
	channel string
	raw     <-chan []byte
	updates chan adapter.BookUpdate
	log     zerolog.Logger
	now     func() time.Time
}

// NewBookFeed creates a BookFeed on conn for channel (e.g. "update:BTCPFC").
// It subscribes to the connection fan-out immediately and registers the
// subscription handshake so it is replayed on every reconnect. Call it
// before conn.Connect.
func NewBookFeed(conn Conn, channel string, log zerolog.Logger) *BookFeed {
	f := &BookFeed{
		conn:    conn,
		channel: channel,
		raw:     conn.Subscribe(),
		updates: make(chan adapter.BookUpdate, 1024),
		log:     log.With().Str("component", "btse").Str("feed", metrics.FeedBook).Logger(),
		now:     time.Now,
	}
	conn.OnConnect(f.Subscribe)
	return f
}

// Updates returns the channel of parsed book updates.
func (f *BookFeed) Updates() <-chan adapter.BookUpdate {
	return f.updates
}

// Subscribe sends the subscription request for the book channel.
func (f *BookFeed) Subscribe() {
	f.conn.Send(SubscribeMessage(f.channel))
}

// Run parses raw messages until ctx is cancelled or the connection closes.
// The updates channel is closed on return.
func (f *BookFeed) Run(ctx context.Context) {
	defer close(f.updates)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-f.raw:
			if !ok {
				return
			}
			f.handleMessage(raw)
		}
	}
}

func (f *BookFeed) handleMessage(raw []byte) {
	metrics.MessagesReceived.WithLabelValues(metrics.FeedBook).Inc()

	update, err := parseBook(raw, f.channel, f.now())
	if err != nil {
		discard(f.log, metrics.FeedBook, raw, err)
		return
	}

	f.push(update)
}

// push never blocks. When the buffer is full the oldest queued update is
// dropped so the newest book always reaches the engine. Run is the only
// sender, so the freed slot cannot be taken by another producer.
func (f *BookFeed) push(update adapter.BookUpdate) {
	select {
	case f.updates <- update:
		return
	default:
	}

	select {
	case stale := <-f.updates:
		metrics.MessagesDiscarded.WithLabelValues(metrics.FeedBook, metrics.ReasonBufferFull).Inc()
		f.log.Warn().Str("topic", stale.Topic).Msg("btse: updates channel full, dropping oldest book update")
	default:
	}

	select {
	case f.updates <- update:
	default:
	}
}

// TradeFeed consumes the trade history channel and emits TradeUpdate values.
type TradeFeed struct {
	conn    Conn
	channel string
	raw     <-chan []byte
	updates chan adapter.TradeUpdate
	log     zerolog.Logger
	now     func() time.Time
}

// NewTradeFeed creates a TradeFeed on conn for channel
// (e.g. "tradeHistoryApi:BTCPFC"). Call it before conn.Connect.
func NewTradeFeed(conn Conn, channel string, log zerolog.Logger) *TradeFeed {
	f := &TradeFeed{
		conn:    conn,
		channel: channel,
		raw:     conn.Subscribe(),
		updates: make(chan adapter.TradeUpdate, 1024),
		log:     log.With().Str("component", "btse").Str("feed", metrics.FeedTrade).Logger(),
		now:     time.Now,
	}
	conn.OnConnect(f.Subscribe)
	return f
}

// Updates returns the channel of parsed trade updates.
func (f *TradeFeed) Updates() <-chan adapter.TradeUpdate {
	return f.updates
}

// Subscribe sends the subscription request for the trade channel.
func (f *TradeFeed) Subscribe() {
	f.conn.Send(SubscribeMessage(f.channel))
}

// Run parses raw messages until ctx is cancelled or the connection closes.
// The updates channel is closed on return.
func (f *TradeFeed) Run(ctx context.Context) {
	defer close(f.updates)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-f.raw:
			if !ok {
				return
			}
			f.handleMessage(raw)
		}
	}
}

func (f *TradeFeed) handleMessage(raw []byte) {
	metrics.MessagesReceived.WithLabelValues(metrics.FeedTrade).Inc()

	update, err := parseTrade(raw, f.channel, f.now())
	if err != nil {
		discard(f.log, metrics.FeedTrade, raw, err)
		return
	}

	select {
	case f.updates <- update:
	default:
		metrics.MessagesDiscarded.WithLabelValues(metrics.FeedTrade, metrics.ReasonBufferFull).Inc()
		f.log.Warn().Msg("btse: updates channel full, dropping trade update")
	}
}

// discard counts and logs a message that will not reach the engine. Acks
// and foreign topics are routine; decode failures are worth a warning.
func discard(log zerolog.Logger, feed string, raw []byte, err error) {
	switch {
	case errors.Is(err, ErrNoData):
		metrics.MessagesDiscarded.WithLabelValues(feed, metrics.ReasonNoData).Inc()
		log.Debug().Bytes("raw", raw).Msg("btse: ignoring message without data")
	case errors.Is(err, ErrTopicMismatch):
		metrics.MessagesDiscarded.WithLabelValues(feed, metrics.ReasonTopicMismatch).Inc()
		log.Debug().Bytes("raw", raw).Msg("btse: ignoring foreign topic")
	default:
		metrics.MessagesDiscarded.WithLabelValues(feed, metrics.ReasonInvalidJSON).Inc()
		log.Warn().Err(err).Msg("btse: discarding malformed message")
	}
}
