package session

import (
	"github.com/cardroom/cardroom/internal/packet"
)

// InboundResult is the outcome of one inbound packet: the batch of outbound
// packets to return to the client, or a transport-level error.
type InboundResult struct {
	Packets []*packet.Packet
	Err     error
}

// HandleInbound processes one inbound packet and yields exactly one result on
// the returned channel. Packets addressing tables owned by a remote host are
// forwarded there; everything else is dispatched locally. The raw encoded
// form of the packet is passed along so forwarding does not re-encode.
func (a *Avatar) HandleInbound(pkt *packet.Packet, data []byte) <-chan InboundResult {
	out := make(chan InboundResult, 1)
	a.setQueueMode(true)

	if pkt.Type != packet.PingType {
		if a.debugPackets {
			a.log().Debugf("handleInbound: type %d game %d", pkt.Type, pkt.GameID)
		}
	}

	host, gameID := a.service.PacketToRemoteHost(pkt)
	a.routingStatePackets(pkt, host)
	switch {
	case host == nil:
		a.handleLocal(pkt, out)
	case pkt.Type != packet.TableJoinType && !a.hasGameInterest(gameID):
		// The table lives remotely but this session never joined it; a
		// round trip would only bounce off the remote ownership checks.
		// routingStatePackets already told explain sessions the same thing.
		a.mu.Lock()
		hasExplain := a.explain != nil
		a.mu.Unlock()
		if !hasExplain {
			a.SendPacket(packet.StateInformation(gameID, packet.CodeRemoteTableEphemeral, "table not joined"))
		}
		a.mu.Lock()
		pkts := a.queue.drain()
		a.mu.Unlock()
		out <- InboundResult{Packets: pkts}
	default:
		a.distribute(pkt, data, host, gameID, out)
	}
	return out
}

// hasGameInterest reports whether the session holds any state for a game:
// a joined table, a live remote handle, or tracked explain state.
func (a *Avatar) hasGameInterest(gameID uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tables[gameID] != nil ||
		a.remoteClients[gameID] != nil ||
		a.explainGameExistsLocked(gameID)
}

// handleLocal runs the packet through the dispatcher and resolves the result
// with whatever the dispatch queued.
func (a *Avatar) handleLocal(pkt *packet.Packet, out chan<- InboundResult) {
	switch pkt.Type {
	case packet.LongPollType:
		a.mu.Lock()
		ch, errPkt := a.requestLongPollLocked()
		a.mu.Unlock()
		if errPkt != nil {
			out <- InboundResult{Packets: []*packet.Packet{errPkt}}
			return
		}
		go func() {
			out <- InboundResult{Packets: <-ch}
		}()
		return

	case packet.LongPollReturnType:
		a.mu.Lock()
		a.longPollReturnLocked()
		a.mu.Unlock()
		out <- InboundResult{Packets: []*packet.Packet{}}
		return
	}

	a.dispatch(pkt)

	a.mu.Lock()
	pkts := a.queue.drain()
	a.mu.Unlock()
	out <- InboundResult{Packets: pkts}
}

// distribute forwards the packet to the remote host owning its table and
// merges the response into this session when it comes back.
func (a *Avatar) distribute(pkt *packet.Packet, data []byte, host *RemoteHost, gameID uint32, out chan<- InboundResult) {
	client := a.getOrCreateRemoteClient(host, gameID)

	go func() {
		res := <-client.Send(pkt, data)
		if res.Err != nil {
			a.log().Warnf("distributed request for game %d to %s:%d failed: %v",
				gameID, host.Host, host.Port, res.Err)
			a.dropRemoteClient(gameID, client)
			// The queue is stale either way; the round trip owns the next state.
			a.mu.Lock()
			a.queue.drain()
			a.mu.Unlock()
			out <- InboundResult{Err: res.Err}
			return
		}

		a.incomingDistributed(res.Packets, gameID)

		a.mu.Lock()
		pkts := a.queue.drain()
		a.mu.Unlock()
		out <- InboundResult{Packets: pkts}
	}()
}

// incomingDistributed merges a batch of packets produced by a remote host
// into the session as if they had been produced locally. The long poll gate
// is held closed for the duration so a concurrent long poll sees the whole
// batch or nothing.
func (a *Avatar) incomingDistributed(pkts []*packet.Packet, gameID uint32) {
	a.BlockLongPoll()
	for _, p := range pkts {
		a.SendPacket(p)
	}
	a.maybeRetireRemoteClient(gameID)
	a.UnblockLongPoll()
}

// maybeRetireRemoteClient releases the remote client handle for a game when
// no local interest remains: the table is not joined and the explain
// interceptor does not track the game. A handle with ordinary round trips
// still outstanding is kept, but a held long poll is not a reason to keep
// it; cancelling resolves the poll on the remote end.
func (a *Avatar) maybeRetireRemoteClient(gameID uint32) {
	if gameID == 0 {
		return
	}

	a.mu.Lock()
	client := a.remoteClients[gameID]
	retire := client != nil &&
		(client.Outstanding() == 0 || client.PendingLongPoll()) &&
		a.tables[gameID] == nil &&
		!a.explainGameExistsLocked(gameID)
	if retire {
		delete(a.remoteClients, gameID)
	}
	a.mu.Unlock()

	if retire {
		client.Cancel()
	}
}

// getOrCreateRemoteClient returns the remote client handle for a game,
// creating it on first use. Packets not tied to a game get a one-shot client
// that is never cached.
func (a *Avatar) getOrCreateRemoteClient(host *RemoteHost, gameID uint32) RemoteClient {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := host.Path + a.distributedArgs
	if gameID == 0 {
		return a.newRemoteClient(*host, path)
	}
	if client, ok := a.remoteClients[gameID]; ok {
		return client
	}
	client := a.newRemoteClient(*host, path)
	a.remoteClients[gameID] = client
	return client
}

// dropRemoteClient removes a failed client handle so the next packet for the
// game creates a fresh one.
func (a *Avatar) dropRemoteClient(gameID uint32, client RemoteClient) {
	if gameID == 0 {
		client.Cancel()
		return
	}
	a.mu.Lock()
	if a.remoteClients[gameID] == client {
		delete(a.remoteClients, gameID)
	}
	a.mu.Unlock()
	client.Cancel()
}

// routingStatePackets tells a session running the explain interceptor where
// the table state for a game lives, so the interceptor can mark its local
// model ephemeral. Sessions without the interceptor get nothing.
func (a *Avatar) routingStatePackets(pkt *packet.Packet, host *RemoteHost) {
	if !pkt.HasGame() {
		return
	}

	a.mu.Lock()
	hasExplain := a.explain != nil
	known := a.explainGameExistsLocked(pkt.GameID)
	a.mu.Unlock()
	if !hasExplain || known {
		return
	}

	if host != nil {
		a.SendPacket(packet.StateInformation(pkt.GameID, packet.CodeRemoteTableEphemeral, "table state held remotely"))
	} else if a.service.GetTable(pkt.GameID) == nil {
		a.SendPacket(packet.StateInformation(pkt.GameID, packet.CodeLocalTableEphemeral, "table state not held locally"))
	}
}
