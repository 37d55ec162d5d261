// Package dispatcher implements the long-poll waiter registry: one
// broadcast notifier per channel, signalled whenever a message is
// appended, so sync_messages can block until new data or a deadline.
package dispatcher

import (
	"context"
	"sync"
)

// Hub holds one notifier per channel id.
type Hub struct {
	mu        sync.Mutex
	notifiers map[string]*notifier
}

// NewHub returns an empty dispatcher hub.
func NewHub() *Hub {
	return &Hub{notifiers: map[string]*notifier{}}
}

type notifier struct {
	mu   sync.Mutex
	cond *sync.Cond
	gen  uint64
}

func (h *Hub) get(channelID string) *notifier {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.notifiers[channelID]
	if !ok {
		n = &notifier{}
		n.cond = sync.NewCond(&n.mu)
		h.notifiers[channelID] = n
	}
	return n
}

// Notify wakes every waiter currently blocked on channelID. Called after
// every successful append to that channel's message log.
func (h *Hub) Notify(channelID string) {
	n := h.get(channelID)
	n.mu.Lock()
	n.gen++
	n.cond.Broadcast()
	n.mu.Unlock()
}

// Drop removes the notifier for a destroyed channel, waking any
// remaining waiters first so none leak.
func (h *Hub) Drop(channelID string) {
	h.mu.Lock()
	n, ok := h.notifiers[channelID]
	if ok {
		delete(h.notifiers, channelID)
	}
	h.mu.Unlock()
	if ok {
		n.mu.Lock()
		n.gen++
		n.cond.Broadcast()
		n.mu.Unlock()
	}
}

// Wait blocks on channelID's notifier until poll returns true (new data
// is available), ctx is cancelled, or the deadline elapses — whichever
// happens first. poll is invoked at least once before blocking, and
// again after every wake. It returns when poll returns true, or when
// ctx/deadline fire (in which case poll's last return value is ignored
// by the caller, which must treat it as "no new data").
func (h *Hub) Wait(ctx context.Context, channelID string, poll func() bool) {
	if poll() {
		return
	}
	if ctx.Err() != nil {
		return
	}

	n := h.get(channelID)

	// sync.Cond has no native context/deadline support, so a goroutine
	// bridges ctx.Done() into a Broadcast on the same notifier.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			n.mu.Lock()
			n.cond.Broadcast()
			n.mu.Unlock()
		case <-stop:
		}
	}()

	n.mu.Lock()
	defer n.mu.Unlock()
	for {
		if ctx.Err() != nil {
			return
		}
		startGen := n.gen
		n.mu.Unlock()
		if poll() {
			n.mu.Lock()
			return
		}
		n.mu.Lock()
		if ctx.Err() != nil {
			return
		}
		if n.gen == startGen {
			n.cond.Wait()
		}
	}
}
