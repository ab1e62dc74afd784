package session

import (
	"time"

	"github.com/cardroom/cardroom/internal/packet"
)

// longPoll coordinates at most one pending long poll request per session.
// A pending request is a buffered channel resolved exactly once, either by a
// flush of the outbound queue, an explicit return, or the timeout. The
// blocked gate suppresses flushes so a batch of packets produced by one
// distributed round trip becomes visible to the client atomically.
type longPoll struct {
	waiting chan []*packet.Packet
	timer   *time.Timer
	blocked bool
	// flushNext remembers that a flush was requested while no request was
	// waiting, so the next request resolves immediately even if the queue is
	// empty by then.
	flushNext bool
}

// requestLongPollLocked registers a new long poll request. A second request
// while one is pending is a protocol violation: the pending request is left
// untouched and a typed error packet is returned instead of a channel.
func (a *Avatar) requestLongPollLocked() (<-chan []*packet.Packet, *packet.Packet) {
	if a.longPoll.waiting != nil {
		a.log().Infof("user %d issued a long poll while one is already pending", a.user.Serial)
		return nil, packet.Error(packet.LongPollType, packet.CodeLongPollBusy, "long poll already pending")
	}

	ch := make(chan []*packet.Packet, 1)
	a.longPoll.waiting = ch
	if !a.tryFlushLongPollLocked() {
		a.longPoll.timer = time.AfterFunc(a.service.LongPollTimeout(), func() {
			a.longPollTimeout(ch)
		})
	}
	return ch, nil
}

// longPollTimeout resolves a still-pending request with whatever is queued,
// possibly nothing. A request that was already resolved by another path is
// left alone.
func (a *Avatar) longPollTimeout(ch chan []*packet.Packet) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.longPoll.waiting != ch {
		return
	}
	a.longPoll.waiting = nil
	a.longPoll.timer = nil
	pkts := a.queue.drain()
	a.log().Debugf("long poll timeout fired with %d queued packets", len(pkts))
	ch <- pkts
}

// tryFlushLongPollLocked resolves the pending long poll request with the
// drained queue when one is waiting and there is something to deliver (or a
// flush was armed). When no request is waiting, the flush is remembered for
// the next one. A no-op while the blocked gate is set.
func (a *Avatar) tryFlushLongPollLocked() bool {
	lp := &a.longPoll
	if lp.blocked {
		return false
	}
	if lp.waiting == nil {
		lp.flushNext = true
		return false
	}
	if a.queue.len() == 0 && !lp.flushNext {
		return false
	}

	lp.flushNext = false
	ch := lp.waiting
	lp.waiting = nil
	if lp.timer != nil {
		lp.timer.Stop()
		lp.timer = nil
	}
	ch <- a.queue.drain()
	return true
}

// longPollReturnLocked resolves the pending request immediately with the
// current queue contents, bypassing the blocked gate. With no pending
// request, the next one is armed to resolve immediately.
func (a *Avatar) longPollReturnLocked() {
	lp := &a.longPoll
	if lp.waiting == nil {
		lp.flushNext = true
		return
	}

	ch := lp.waiting
	lp.waiting = nil
	if lp.timer != nil {
		lp.timer.Stop()
		lp.timer = nil
	}
	ch <- a.queue.drain()
}

// BlockLongPoll suppresses long poll flushes until UnblockLongPoll is called.
// Used while a distributed round trip is being merged into the session so
// partial results never leak to the client.
func (a *Avatar) BlockLongPoll() {
	a.mu.Lock()
	a.longPoll.blocked = true
	a.mu.Unlock()
}

// UnblockLongPoll re-enables flushing and immediately attempts one, making
// everything queued since BlockLongPoll visible as a single batch.
func (a *Avatar) UnblockLongPoll() {
	a.mu.Lock()
	a.longPoll.blocked = false
	a.tryFlushLongPollLocked()
	a.mu.Unlock()
}
