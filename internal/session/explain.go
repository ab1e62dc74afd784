package session

import (
	"sync"

	"github.com/cardroom/cardroom/internal/packet"
)

// SetExplain enables or disables the explain interceptor for this session.
// Enabling is only allowed while the session is not connected to any table;
// the interceptor has to observe the table stream from the beginning to stay
// consistent.
func (a *Avatar) SetExplain(enable bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !enable {
		a.explain = nil
		return true
	}
	if a.explain != nil {
		return true
	}
	if len(a.tables) > 0 {
		a.log().Warn("SetExplain must be called when not connected to any table")
		return false
	}
	a.explain = a.newExplainer(a.user.Serial)
	a.explain.HandleSerial(a.user.Serial)
	return true
}

// explainPackets runs one outbound packet through the explain interceptor.
// Error packets bypass it. Any failure inside the interceptor is fatal: the
// interceptor may be in an inconsistent state and must never be applied to
// another packet, so it is dropped, the output is replaced with a generic
// error packet, and the session is scheduled for forced destruction.
func (a *Avatar) explainPackets(pkt *packet.Packet) []*packet.Packet {
	a.mu.Lock()
	ex := a.explain
	a.mu.Unlock()

	if ex == nil || pkt.Type == packet.ErrorType {
		return []*packet.Packet{pkt}
	}

	pkts, err := ex.Explain(pkt)
	if err != nil {
		a.log().Errorf("explain failed for packet type %d (game %d): %v", pkt.Type, pkt.GameID, err)
		a.mu.Lock()
		a.explain = nil
		a.mu.Unlock()
		a.service.ForceSessionDestroy(a)
		return []*packet.Packet{packet.Error(packet.NoneType, packet.CodeGeneralFailure, err.Error())}
	}
	return pkts
}

// explainGameExistsLocked reports whether the explain subsystem still tracks
// live state for a game. Caller holds a.mu.
func (a *Avatar) explainGameExistsLocked(gameID uint32) bool {
	return a.explain != nil && a.explain.GameExists(gameID)
}

// ExplainTracker is the default Explainer. It forwards packets unchanged and
// keeps track of which games the outbound stream references, which is what
// the distributed routing layer needs to know to retire remote client
// handles.
type ExplainTracker struct {
	mu     sync.Mutex
	serial uint32
	games  map[uint32]bool
}

// NewExplainTracker returns an ExplainTracker with no live games.
func NewExplainTracker() *ExplainTracker {
	return &ExplainTracker{games: make(map[uint32]bool)}
}

func (e *ExplainTracker) Explain(pkt *packet.Packet) ([]*packet.Packet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch pkt.Type {
	case packet.TableType:
		if pkt.HasGame() {
			e.games[pkt.GameID] = true
		}
	case packet.TableDestroyType:
		delete(e.games, pkt.GameID)
	}
	return []*packet.Packet{pkt}, nil
}

func (e *ExplainTracker) HandleSerial(serial uint32) {
	e.mu.Lock()
	e.serial = serial
	e.mu.Unlock()
}

func (e *ExplainTracker) GameExists(gameID uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.games[gameID]
}
