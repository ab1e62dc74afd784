package lobby

import (
	"sync"

	"github.com/cardroom/cardroom/internal/packet"
	"github.com/cardroom/cardroom/internal/session"
)

// tourney is the lobby's in-memory tournament record. It tracks registration
// and the registering/running/canceled state machine; seating registered
// players at tables when the tournament starts belongs to the rules engine.
type tourney struct {
	mu           sync.Mutex
	serial       uint32
	name         string
	description  string
	state        string
	bailorSerial uint32
	playersQuota int
	buyIn        int64
	players      []uint32
}

var _ session.Tourney = (*tourney)(nil)

func (t *tourney) Serial() uint32 { return t.serial }

func (t *tourney) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *tourney) ChangeState(state string) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *tourney) BailorSerial() uint32 { return t.bailorSerial }

func (t *tourney) Registered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.players)
}

func (t *tourney) ToPacket() *packet.Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &packet.Packet{
		Type:          packet.TourneyType,
		TourneySerial: t.serial,
		Name:          t.name,
		Message:       t.description,
		State:         t.state,
		BailorSerial:  t.bailorSerial,
		PlayersQuota:  t.playersQuota,
		Amount:        t.buyIn,
		Registered:    len(t.players),
		PlayerList:    append([]uint32{}, t.players...),
	}
}

// register adds a player while the tournament is still registering.
func (t *tourney) register(serial uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != packet.TourneyStateRegistering {
		return false
	}
	for _, s := range t.players {
		if s == serial {
			return false
		}
	}
	if t.playersQuota > 0 && len(t.players) >= t.playersQuota {
		return false
	}
	t.players = append(t.players, serial)
	return true
}

func (t *tourney) unregister(serial uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != packet.TourneyStateRegistering {
		return false
	}
	for i, s := range t.players {
		if s == serial {
			t.players = append(t.players[:i], t.players[i+1:]...)
			return true
		}
	}
	return false
}

func (t *tourney) isRegistered(serial uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.players {
		if s == serial {
			return true
		}
	}
	return false
}
