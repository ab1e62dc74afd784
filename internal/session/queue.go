package session

import "github.com/cardroom/cardroom/internal/packet"

// outboundQueue is the per-session FIFO buffer of packets awaiting delivery.
// It is owned by the Avatar and only touched with the session mutex held.
type outboundQueue struct {
	packets []*packet.Packet
	// warned marks that the excess warning was already issued for the
	// current episode. Cleared when the queue is drained.
	warned bool
}

func (q *outboundQueue) append(pkts ...*packet.Packet) {
	q.packets = append(q.packets, pkts...)
}

func (q *outboundQueue) len() int { return len(q.packets) }

// drain returns the queued packets in FIFO order, leaving the queue empty and
// ending the current warning episode.
func (q *outboundQueue) drain() []*packet.Packet {
	pkts := q.packets
	q.packets = nil
	q.warned = false
	if pkts == nil {
		pkts = []*packet.Packet{}
	}
	return pkts
}

// removeForGame discards every queued packet addressed to the given game.
// Used when a session re-joins a table so stale state for it is not replayed.
func (q *outboundQueue) removeForGame(gameID uint32) {
	kept := q.packets[:0]
	for _, p := range q.packets {
		if p.GameID != gameID {
			kept = append(kept, p)
		}
	}
	q.packets = kept
}

// extendQueueLocked appends packets to the outbound queue, gives a waiting
// long poll a chance to flush, and enforces the queue capacity policy: one
// warning per excess episode at 75% of the configured maximum, and a forced
// session destroy request at the maximum. The destroy request is returned to
// the caller rather than issued here so the service is never called with the
// session mutex held. The queue keeps accepting packets until the session is
// actually torn down.
func (a *Avatar) extendQueueLocked(pkts []*packet.Packet) (destroy bool) {
	a.queue.append(pkts...)
	a.tryFlushLongPollLocked()

	max := a.service.QueuedPacketMax()
	warn := int(0.75 * float64(max))
	if a.queue.len() >= warn {
		if !a.queue.warned {
			a.queue.warned = true
			a.log().Warnf("user %d has more than %d packets queued; will force-disconnect when %d are queued",
				a.user.Serial, warn, max)
		}
		if a.queue.len() >= max {
			return true
		}
	}
	return false
}

// RemoveGamePackets discards queued packets for one game.
func (a *Avatar) RemoveGamePackets(gameID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue.removeForGame(gameID)
}

// QueuedPackets returns a snapshot of the queue without draining it.
func (a *Avatar) QueuedPackets() []*packet.Packet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*packet.Packet{}, a.queue.packets...)
}
