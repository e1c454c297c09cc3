package engine

import (
	"testing"
	"time"
)

func TestThrottle_LeadingEdge(t *testing.T) {
	clock := &manualClock{}
	th := NewThrottle(200*time.Millisecond, clock)

	if th.State() != ThrottleIdle || th.C() != nil {
		t.Fatal("new throttle should be idle with no timer")
	}

	if !th.Open() {
		t.Fatal("idle throttle should admit")
	}
	if th.State() != ThrottleCooling {
		t.Fatalf("expected cooling, got %s", th.State())
	}
	if th.Open() || th.Open() {
		t.Fatal("cooling throttle must not admit")
	}
	if clock.count() != 1 {
		t.Fatalf("only the admitting call should start a timer, got %d", clock.count())
	}

	clock.fire(t)
	select {
	case <-th.C():
	default:
		t.Fatal("window timer should be readable after firing")
	}

	th.Expire()
	if th.State() != ThrottleIdle || th.C() != nil {
		t.Fatal("expired throttle should be idle")
	}
	if !th.Open() {
		t.Fatal("throttle should admit again after expiry")
	}
}

func TestThrottle_StopCancelsTimer(t *testing.T) {
	clock := &manualClock{}
	th := NewThrottle(time.Second, clock)

	th.Stop()
	th.Open()
	th.Stop()

	if !clock.last().stopped {
		t.Fatal("Stop should cancel the pending timer")
	}
	if th.State() != ThrottleIdle {
		t.Fatal("Stop should leave the throttle idle")
	}
}

func TestThrottle_RealClock(t *testing.T) {
	th := NewThrottle(10*time.Millisecond, nil)
	th.Open()

	select {
	case <-th.C():
	case <-time.After(time.Second):
		t.Fatal("wall-clock window never closed")
	}
}
