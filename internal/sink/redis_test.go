package sink

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/adapter"
	"github.com/caesar-terminal/ladder/internal/engine"
)

// mockRedis records every HSet call for assertion.
type mockRedis struct {
	mu    sync.Mutex
	calls []hsetCall
	fail  bool
}

type hsetCall struct {
	Key    string
	Fields map[string]string
}

func (m *mockRedis) HSet(_ context.Context, key string, values ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("connection refused")
	}
	fields := make(map[string]string)
	for i := 0; i+1 < len(values); i += 2 {
		k, _ := values[i].(string)
		v, _ := values[i+1].(string)
		fields[k] = v
	}
	m.calls = append(m.calls, hsetCall{Key: key, Fields: fields})
	return nil
}

func (m *mockRedis) getCalls() []hsetCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hsetCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func snapshot(seq uint64, bid, ask float64) engine.Snapshot {
	s := engine.Snapshot{Seq: seq, UpdatedAt: time.UnixMilli(1700000000000)}
	s.Bids[0] = adapter.PriceLevel{Price: bid, Size: 4}
	s.Asks[0] = adapter.PriceLevel{Price: ask, Size: 2}
	return s
}

func TestRedisWriter_HSetCommand(t *testing.T) {
	mock := &mockRedis{}
	feed := make(chan engine.Snapshot, 8)

	rw := NewRedisWriter(mock, "ladder", "BTCPFC", feed, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	snap := snapshot(7, 64000.5, 64001)
	snap.LastPrice = 64000.75
	snap.HasLastPrice = true
	snap.Direction = engine.DirectionUp
	feed <- snap
	close(feed)
	<-done

	calls := mock.getCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 HSET call, got %d", len(calls))
	}
	c := calls[0]
	if c.Key != "ladder:BTCPFC" {
		t.Fatalf("wrong key: %s", c.Key)
	}
	want := map[string]string{
		"bid":       "64000.5",
		"bid_size":  "4",
		"ask":       "64001",
		"ask_size":  "2",
		"last":      "64000.75",
		"direction": "up",
		"seq":       "7",
		"ts":        "1700000000000",
	}
	for k, v := range want {
		if c.Fields[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, c.Fields[k])
		}
	}
}

func TestRedisWriter_DuplicateSuppression(t *testing.T) {
	mock := &mockRedis{}
	rw := NewRedisWriter(mock, "ladder", "BTCPFC", nil, zerolog.Nop())
	ctx := context.Background()

	rw.write(ctx, snapshot(1, 100, 101))
	rw.write(ctx, snapshot(2, 100, 101))

	// Highlight-only change at the same prices.
	decayed := snapshot(3, 100, 101)
	decayed.RowHighlights.Bids[0] = true
	rw.write(ctx, decayed)

	if n := len(mock.getCalls()); n != 1 {
		t.Fatalf("expected 1 HSET call (duplicates suppressed), got %d", n)
	}

	rw.write(ctx, snapshot(4, 100.5, 101))
	calls := mock.getCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 HSET calls after price change, got %d", len(calls))
	}
	if calls[1].Fields["bid"] != "100.5" {
		t.Fatalf("expected updated bid '100.5', got %q", calls[1].Fields["bid"])
	}
}

func TestRedisWriter_SizeOnlyChangeIsWritten(t *testing.T) {
	mock := &mockRedis{}
	rw := NewRedisWriter(mock, "ladder", "BTCPFC", nil, zerolog.Nop())
	ctx := context.Background()

	rw.write(ctx, snapshot(1, 100, 101))

	bigger := snapshot(2, 100, 101)
	bigger.Bids[0].Size = 9
	rw.write(ctx, bigger)

	smaller := snapshot(3, 100, 101)
	smaller.Bids[0].Size = 9
	smaller.Asks[0].Size = 1
	rw.write(ctx, smaller)

	calls := mock.getCalls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 HSET calls for size changes at the best level, got %d", len(calls))
	}
	if calls[1].Fields["bid_size"] != "9" {
		t.Fatalf("expected bid_size '9', got %q", calls[1].Fields["bid_size"])
	}
	if calls[2].Fields["ask_size"] != "1" {
		t.Fatalf("expected ask_size '1', got %q", calls[2].Fields["ask_size"])
	}
}

func TestRedisWriter_RetriesAfterFailure(t *testing.T) {
	mock := &mockRedis{fail: true}
	rw := NewRedisWriter(mock, "ladder", "BTCPFC", nil, zerolog.Nop())
	ctx := context.Background()

	rw.write(ctx, snapshot(1, 100, 101))

	mock.mu.Lock()
	mock.fail = false
	mock.mu.Unlock()

	rw.write(ctx, snapshot(2, 100, 101))
	if n := len(mock.getCalls()); n != 1 {
		t.Fatalf("failed write should be retried on the next snapshot, got %d calls", n)
	}
}

func TestFormatLevel(t *testing.T) {
	if got := formatLevel(math.NaN()); got != "0" {
		t.Fatalf("NaN should format as 0, got %q", got)
	}
	if got := formatLevel(0); got != "0" {
		t.Fatalf("sentinel should format as 0, got %q", got)
	}
}
