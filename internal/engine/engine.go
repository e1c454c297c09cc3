// Package engine reconciles the book and trade feeds into a fixed-depth,
// highlighted, rate-limited view of the market.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/adapter"
	"github.com/caesar-terminal/ladder/internal/metrics"
)

// DefaultWindow is the publish throttle window.
const DefaultWindow = 200 * time.Millisecond

// Config holds engine settings.
type Config struct {
	Window time.Duration
	// Clock drives the throttle timer. Nil means the wall clock.
	Clock Clock
}

// Engine owns all reconciliation state. ApplyBook, ApplyTrade and
// CloseWindow mutate it and must be called from a single goroutine; Run is
// that goroutine in production. Snapshot and Subscribe are safe from any
// goroutine.
type Engine struct {
	log      zerolog.Logger
	throttle *Throttle
	now      func() time.Time

	// primed is false until the first book message, so the very first
	// snapshot always publishes even if it is all sentinels.
	primed   bool
	baseline Book

	visible    Book
	highlights Highlights
	ticker     Ticker
	seq        uint64

	current  atomic.Pointer[Snapshot]
	notifier notifier
}

// New creates an Engine with an all-sentinel visible book.
func New(cfg Config, log zerolog.Logger) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	e := &Engine{
		log:      log.With().Str("component", "engine").Logger(),
		throttle: NewThrottle(cfg.Window, cfg.Clock),
		now:      time.Now,
	}
	e.current.Store(&Snapshot{})
	return e
}

// Snapshot returns the current visible state.
func (e *Engine) Snapshot() Snapshot {
	return *e.current.Load()
}

// Subscribe returns a channel that receives the newest snapshot after every
// visible change. It is closed when Run returns.
func (e *Engine) Subscribe() <-chan Snapshot {
	return e.notifier.subscribe()
}

// ThrottleState reports whether a publish window is open. Like ApplyBook it
// reads loop-owned state and must only be called from the loop goroutine.
func (e *Engine) ThrottleState() ThrottleState {
	return e.throttle.State()
}

// Baseline returns the book the next diff will compare against. Loop
// goroutine only.
func (e *Engine) Baseline() Book {
	return e.baseline
}

// ApplyBook normalizes u and runs it through the differ and throttle. It
// reports whether the update became visible.
func (e *Engine) ApplyBook(u adapter.BookUpdate) bool {
	next := Book{Bids: Normalize(u.Bids), Asks: Normalize(u.Asks)}

	if e.primed && next.Equal(e.baseline) {
		metrics.SnapshotsUnchanged.Inc()
		return false
	}

	prev := e.baseline
	e.baseline = next
	e.primed = true

	if !e.throttle.Open() {
		metrics.SnapshotsAbsorbed.Inc()
		e.log.Debug().Str("topic", u.Topic).Msg("engine: window open, absorbed into baseline")
		return false
	}

	e.visible = next
	e.highlights = DiffBook(next, prev)
	e.publish()
	metrics.SnapshotsPublished.Inc()
	return true
}

// ApplyTrade records the trade price and publishes the new direction.
func (e *Engine) ApplyTrade(u adapter.TradeUpdate) {
	e.ticker.Push(parseNumber(u.Price))
	metrics.TradesApplied.Inc()
	e.publish()
}

// CloseWindow ends the throttle window and clears every highlight. The
// visible book is left as is.
func (e *Engine) CloseWindow() {
	e.throttle.Expire()
	e.highlights = Highlights{}
	metrics.HighlightDecays.Inc()
	e.publish()
}

// Run processes book updates, trade updates and window expiry one at a time
// until ctx is cancelled. A closed input channel is dropped from the loop.
// On return the window timer is stopped and subscribers are closed, so no
// state changes after Run exits.
func (e *Engine) Run(ctx context.Context, books <-chan adapter.BookUpdate, trades <-chan adapter.TradeUpdate) {
	defer e.notifier.close()
	defer e.throttle.Stop()

	e.log.Info().Msg("engine: running")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine: stopped")
			return
		case u, ok := <-books:
			if !ok {
				books = nil
				continue
			}
			e.ApplyBook(u)
		case u, ok := <-trades:
			if !ok {
				trades = nil
				continue
			}
			e.ApplyTrade(u)
		case <-e.throttle.C():
			e.CloseWindow()
		}
	}
}

func (e *Engine) publish() {
	e.seq++
	last, ok := e.ticker.Last()
	s := &Snapshot{
		Seq:  e.seq,
		Bids: e.visible.Bids,
		Asks: e.visible.Asks,
		RowHighlights: RowHighlights{
			Bids: e.highlights.Bids.Rows,
			Asks: e.highlights.Asks.Rows,
		},
		CellHighlights: CellHighlights{
			Bids: e.highlights.Bids.Cells,
			Asks: e.highlights.Asks.Cells,
		},
		LastPrice:    last,
		HasLastPrice: ok,
		Direction:    e.ticker.Direction(),
		UpdatedAt:    e.now(),
	}
	e.current.Store(s)
	e.notifier.send(*s)
}
