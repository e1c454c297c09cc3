package engine

import "sync"

// notifier fans snapshots out to subscribers. Each subscriber channel holds
// at most one snapshot; a newer snapshot replaces an unread one so slow
// views skip intermediate states instead of blocking the engine.
type notifier struct {
	mu     sync.RWMutex
	subs   []chan Snapshot
	closed bool
}

func (n *notifier) subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch
	}
	n.subs = append(n.subs, ch)
	return ch
}

// send is called only from the engine loop, so a drained slot cannot be
// refilled by another sender between the two selects.
func (n *notifier) send(s Snapshot) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
