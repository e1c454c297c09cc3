// Package sink publishes engine snapshots to external stores.
package sink

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/engine"
)

// RedisClient abstracts the Redis operations used by RedisWriter.
// In production this is GoRedis; in tests a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
}

// GoRedis adapts *redis.Client to RedisClient.
type GoRedis struct {
	c *redis.Client
}

// NewGoRedis opens a client. go-redis connects lazily, so Ping is the
// first network round trip.
func NewGoRedis(addr, password string, db int) *GoRedis {
	return &GoRedis{c: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping checks connectivity.
func (g *GoRedis) Ping(ctx context.Context) error {
	return g.c.Ping(ctx).Err()
}

func (g *GoRedis) HSet(ctx context.Context, key string, values ...any) error {
	return g.c.HSet(ctx, key, values...).Err()
}

// Close releases the connection pool.
func (g *GoRedis) Close() error {
	return g.c.Close()
}

// quote is the last-written top of book, kept to skip duplicate writes.
type quote struct {
	Bid       string
	BidSize   string
	Ask       string
	AskSize   string
	Last      string
	Direction string
}

// RedisWriter mirrors the visible top of book into a Redis hash so other
// processes can show the same ladder header:
//
//	Key:    {prefix}:{symbol}
//	Fields: bid, bid_size, ask, ask_size, last, direction, seq, ts
//
// Snapshots that only change highlights or levels below the best are not
// written.
type RedisWriter struct {
	client RedisClient
	key    string
	feed   <-chan engine.Snapshot
	log    zerolog.Logger

	last    quote
	written bool
}

// NewRedisWriter creates a RedisWriter reading from feed, normally an
// engine.Subscribe channel.
func NewRedisWriter(client RedisClient, prefix, symbol string, feed <-chan engine.Snapshot, log zerolog.Logger) *RedisWriter {
	return &RedisWriter{
		client: client,
		key:    fmt.Sprintf("%s:%s", prefix, symbol),
		feed:   feed,
		log:    log.With().Str("component", "redis").Logger(),
	}
}

// Run writes snapshots until ctx is cancelled or feed is closed.
func (rw *RedisWriter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-rw.feed:
			if !ok {
				return
			}
			rw.write(ctx, snap)
		}
	}
}

func (rw *RedisWriter) write(ctx context.Context, snap engine.Snapshot) {
	q := quote{
		Bid:       formatLevel(snap.Bids[0].Price),
		BidSize:   formatLevel(snap.Bids[0].Size),
		Ask:       formatLevel(snap.Asks[0].Price),
		AskSize:   formatLevel(snap.Asks[0].Size),
		Last:      "0",
		Direction: snap.Direction.String(),
	}
	if snap.HasLastPrice {
		q.Last = formatLevel(snap.LastPrice)
	}

	if rw.written && q == rw.last {
		return
	}

	ts := strconv.FormatInt(snap.UpdatedAt.UnixMilli(), 10)
	err := rw.client.HSet(ctx, rw.key,
		"bid", q.Bid,
		"bid_size", q.BidSize,
		"ask", q.Ask,
		"ask_size", q.AskSize,
		"last", q.Last,
		"direction", q.Direction,
		"seq", strconv.FormatUint(snap.Seq, 10),
		"ts", ts,
	)
	if err != nil {
		// Retry on the next change rather than marking this quote written.
		rw.log.Warn().Err(err).Str("key", rw.key).Msg("redis: hset failed")
		return
	}
	rw.last = q
	rw.written = true
}

// formatLevel renders sentinel and non-finite values as "0".
func formatLevel(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
