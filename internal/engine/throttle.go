package engine

import "time"

// Timer is the subset of *time.Timer the throttle uses.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock creates timers. Tests substitute a manual clock.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// ThrottleState is the publish gate state.
type ThrottleState uint8

const (
	ThrottleIdle ThrottleState = iota
	ThrottleCooling
)

func (s ThrottleState) String() string {
	if s == ThrottleCooling {
		return "cooling"
	}
	return "idle"
}

// Throttle is a leading-edge, non-queueing gate: the first change in a
// window is let through and opens the window; later changes inside it are
// not. Nothing is replayed when the window closes.
type Throttle struct {
	window time.Duration
	clock  Clock
	state  ThrottleState
	timer  Timer
}

// NewThrottle returns an idle throttle with the given window.
func NewThrottle(window time.Duration, clock Clock) *Throttle {
	if clock == nil {
		clock = realClock{}
	}
	return &Throttle{window: window, clock: clock}
}

// State returns the current state.
func (t *Throttle) State() ThrottleState { return t.state }

// Open admits a publish if idle, moving to Cooling and starting the window
// timer. It returns false while a window is already open.
func (t *Throttle) Open() bool {
	if t.state == ThrottleCooling {
		return false
	}
	t.state = ThrottleCooling
	t.timer = t.clock.NewTimer(t.window)
	return true
}

// C fires when the open window ends. It is nil while idle, so selecting on
// it blocks forever.
func (t *Throttle) C() <-chan time.Time {
	if t.timer == nil {
		return nil
	}
	return t.timer.C()
}

// Expire returns the throttle to Idle after the window timer fired.
func (t *Throttle) Expire() {
	t.state = ThrottleIdle
	t.timer = nil
}

// Stop cancels any pending window timer. The throttle is left idle.
func (t *Throttle) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.Expire()
}
