package data

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSaveAndLoadHand(t *testing.T) {
	db := setUpDatabase(t)
	hand := &Hand{
		Serial:           11,
		Variant:          "holdem",
		BettingStructure: "1-2_20-200_limit",
		PlayedAt:         time.Now(),
		Packets:          []byte(`[{"type":1}]`),
	}
	if err := SaveHand(db, hand, []uint64{5, 6}); err != nil {
		t.Fatalf("error saving hand: %s", err)
	}

	found, err := FindHandBySerial(db, 11)
	if err != nil {
		t.Fatalf("error loading hand: %s", err)
	}
	if found == nil || found.Variant != "holdem" {
		t.Fatalf("FindHandBySerial() = %v, want the stored holdem hand", found)
	}

	players, err := FindHandPlayers(db, 11)
	if err != nil {
		t.Fatalf("error loading hand players: %s", err)
	}
	if diff := cmp.Diff([]uint64{5, 6}, players); diff != "" {
		t.Errorf("hand players: %s", diff)
	}
}

func TestListHands(t *testing.T) {
	db := setUpDatabase(t)
	hands := []struct {
		serial  uint64
		players []uint64
	}{
		{serial: 1, players: []uint64{5}},
		{serial: 2, players: []uint64{5, 6}},
		{serial: 3, players: []uint64{6}},
	}
	for _, h := range hands {
		hand := &Hand{Serial: h.serial, Variant: "holdem", BettingStructure: "no-limit", PlayedAt: time.Now()}
		if err := SaveHand(db, hand, h.players); err != nil {
			t.Fatalf("error saving hand %d: %s", h.serial, err)
		}
	}

	tests := map[string]struct {
		playerSerial uint64
		wantTotal    int
		wantSerials  []uint64
	}{
		"all hands":        {playerSerial: 0, wantTotal: 3, wantSerials: []uint64{3, 2, 1}},
		"hands of player5": {playerSerial: 5, wantTotal: 2, wantSerials: []uint64{2, 1}},
		"hands of player6": {playerSerial: 6, wantTotal: 2, wantSerials: []uint64{3, 2}},
		"no hands":         {playerSerial: 7, wantTotal: 0, wantSerials: []uint64{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			total, serials, err := ListHands(db, tt.playerSerial, "", 0, 50)
			if err != nil {
				t.Fatalf("error listing hands: %s", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if serials == nil {
				serials = []uint64{}
			}
			if diff := cmp.Diff(tt.wantSerials, serials); diff != "" {
				t.Errorf("listed serials: %s", diff)
			}
		})
	}
}

func TestListHandsPaging(t *testing.T) {
	db := setUpDatabase(t)
	for serial := uint64(1); serial <= 5; serial++ {
		hand := &Hand{Serial: serial, Variant: "holdem", BettingStructure: "no-limit", PlayedAt: time.Now()}
		if err := SaveHand(db, hand, []uint64{9}); err != nil {
			t.Fatalf("error saving hand %d: %s", serial, err)
		}
	}

	total, serials, err := ListHands(db, 9, "", 1, 2)
	if err != nil {
		t.Fatalf("error listing hands: %s", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if diff := cmp.Diff([]uint64{4, 3}, serials); diff != "" {
		t.Errorf("page 2 serials: %s", diff)
	}
}
