package session

import (
	"testing"
	"time"

	"github.com/cardroom/cardroom/internal/packet"
)

func requestLongPoll(t *testing.T, a *Avatar) <-chan []*packet.Packet {
	t.Helper()
	a.mu.Lock()
	ch, errPkt := a.requestLongPollLocked()
	a.mu.Unlock()
	if errPkt != nil {
		t.Fatalf("long poll request rejected: code %d", errPkt.Code)
	}
	return ch
}

func waitForBatch(t *testing.T, ch <-chan []*packet.Packet) []*packet.Packet {
	t.Helper()
	select {
	case pkts := <-ch:
		return pkts
	case <-time.After(time.Second):
		t.Fatal("long poll did not resolve")
		return nil
	}
}

func TestLongPollResolvesImmediatelyWhenQueued(t *testing.T) {
	a := testAvatar(&stubService{})
	a.SendPacket(&packet.Packet{Type: packet.SerialType, Serial: 3})

	pkts := waitForBatch(t, requestLongPoll(t, a))
	if len(pkts) != 1 || pkts[0].Type != packet.SerialType {
		t.Errorf("long poll resolved with %v, want the queued serial packet", pkts)
	}
	if got := len(a.QueuedPackets()); got != 0 {
		t.Errorf("queue holds %d packets after flush, want 0", got)
	}
}

func TestLongPollResolvesOnNextPacket(t *testing.T) {
	a := testAvatar(&stubService{})
	ch := requestLongPoll(t, a)

	select {
	case pkts := <-ch:
		t.Fatalf("long poll resolved early with %v", pkts)
	case <-time.After(10 * time.Millisecond):
	}

	a.SendPacket(&packet.Packet{Type: packet.AckType})
	pkts := waitForBatch(t, ch)
	if len(pkts) != 1 || pkts[0].Type != packet.AckType {
		t.Errorf("long poll resolved with %v, want the sent ack", pkts)
	}
}

func TestLongPollBlockedGate(t *testing.T) {
	a := testAvatar(&stubService{})
	ch := requestLongPoll(t, a)

	a.BlockLongPoll()
	a.SendPacket(&packet.Packet{Type: packet.AckType})
	a.SendPacket(&packet.Packet{Type: packet.PingType})
	select {
	case pkts := <-ch:
		t.Fatalf("long poll resolved through the blocked gate with %v", pkts)
	case <-time.After(10 * time.Millisecond):
	}

	a.UnblockLongPoll()
	if pkts := waitForBatch(t, ch); len(pkts) != 2 {
		t.Errorf("long poll resolved with %d packets, want the whole batch of 2", len(pkts))
	}
}

func TestSecondLongPollRejected(t *testing.T) {
	a := testAvatar(&stubService{})
	first := requestLongPoll(t, a)

	a.mu.Lock()
	ch, errPkt := a.requestLongPollLocked()
	a.mu.Unlock()
	if ch != nil || errPkt == nil {
		t.Fatal("second long poll request was not rejected")
	}
	if errPkt.Code != packet.CodeLongPollBusy || errPkt.OtherType != packet.LongPollType {
		t.Errorf("rejection packet = code %d other %d, want CodeLongPollBusy for LongPollType",
			errPkt.Code, errPkt.OtherType)
	}

	// The pending request is untouched and still resolves.
	a.SendPacket(&packet.Packet{Type: packet.AckType})
	if pkts := waitForBatch(t, first); len(pkts) != 1 {
		t.Errorf("pending long poll resolved with %d packets, want 1", len(pkts))
	}
}

func TestLongPollTimeout(t *testing.T) {
	a := testAvatar(&stubService{pollTimeout: 20 * time.Millisecond})
	pkts := waitForBatch(t, requestLongPoll(t, a))
	if len(pkts) != 0 {
		t.Errorf("timed out long poll resolved with %v, want empty batch", pkts)
	}
}

func TestLongPollReturnArmsNextRequest(t *testing.T) {
	a := testAvatar(&stubService{})

	// Return with no pending request: the next request must resolve
	// immediately even though the queue is empty.
	a.mu.Lock()
	a.longPollReturnLocked()
	a.mu.Unlock()

	if pkts := waitForBatch(t, requestLongPoll(t, a)); len(pkts) != 0 {
		t.Errorf("armed long poll resolved with %v, want empty batch", pkts)
	}
}

func TestLongPollReturnBypassesBlockedGate(t *testing.T) {
	a := testAvatar(&stubService{})
	ch := requestLongPoll(t, a)

	a.BlockLongPoll()
	a.SendPacket(&packet.Packet{Type: packet.AckType})
	a.mu.Lock()
	a.longPollReturnLocked()
	a.mu.Unlock()

	if pkts := waitForBatch(t, ch); len(pkts) != 1 {
		t.Errorf("explicit return resolved with %d packets, want 1", len(pkts))
	}
	a.UnblockLongPoll()
}
