package engine

// Ticker keeps the two most recent trade prices.
type Ticker struct {
	prev  float64
	cur   float64
	ticks int
}

// Push shifts current into previous and records price. It shifts on every
// call, including repeats of the same price.
func (t *Ticker) Push(price float64) {
	t.prev = t.cur
	t.cur = price
	if t.ticks < 2 {
		t.ticks++
	}
}

// Last returns the most recent usable price.
func (t *Ticker) Last() (float64, bool) {
	if t.ticks == 0 || !usablePrice(t.cur) {
		return 0, false
	}
	return t.cur, true
}

// Direction compares the last two prices. It is flat until two usable
// prices have been seen.
func (t *Ticker) Direction() Direction {
	if t.ticks < 2 || !usablePrice(t.prev) || !usablePrice(t.cur) {
		return DirectionFlat
	}
	switch {
	case t.cur > t.prev:
		return DirectionUp
	case t.cur < t.prev:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// A zero or non-finite price counts as absent.
func usablePrice(p float64) bool {
	return p > 0 && finite(p)
}
