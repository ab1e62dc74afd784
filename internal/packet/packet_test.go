package packet

import (
	"encoding/json"
	"testing"
)

func TestValidRole(t *testing.T) {
	tests := map[string]struct {
		role string
		want bool
	}{
		"play":      {role: RolePlay, want: true},
		"edit":      {role: RoleEdit, want: true},
		"lowercase": {role: "play", want: false},
		"unknown":   {role: "SPECTATE", want: false},
		"empty":     {role: "", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ValidRole(tt.role); got != tt.want {
				t.Errorf("ValidRole(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestErrorHelper(t *testing.T) {
	pkt := Error(SeatType, CodeRolePlayRequired, "no PLAY role")
	if pkt.Type != ErrorType || pkt.OtherType != SeatType || pkt.Code != CodeRolePlayRequired {
		t.Errorf("Error() = %+v, want an ErrorType referencing SeatType", pkt)
	}
}

func TestIsZero(t *testing.T) {
	var nilPkt *Packet
	if !nilPkt.IsZero() {
		t.Error("nil packet is not zero")
	}
	if !(&Packet{}).IsZero() {
		t.Error("empty packet is not zero")
	}
	if (&Packet{Type: PingType}).IsZero() {
		t.Error("ping packet reported as zero")
	}
}

// Unknown packet types must survive a decode/encode round trip so newer
// clients can talk through older servers.
func TestUnknownTypeRoundTrip(t *testing.T) {
	raw := []byte(`{"type":60000,"game_id":7,"serial":5}`)

	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		t.Fatalf("error decoding packet: %s", err)
	}
	if pkt.Type != Type(60000) || pkt.GameID != 7 {
		t.Fatalf("decoded packet = %+v", pkt)
	}

	if _, err := json.Marshal(&pkt); err != nil {
		t.Errorf("error re-encoding packet: %s", err)
	}
}
