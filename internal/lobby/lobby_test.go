package lobby

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cardroom/cardroom/internal/core"
	"github.com/cardroom/cardroom/internal/data"
	"github.com/cardroom/cardroom/internal/packet"
	"github.com/cardroom/cardroom/internal/session"
)

func testLobby(t *testing.T) (*Lobby, *gorm.DB) {
	t.Helper()
	db := setUpDatabase(t)
	config := &core.Config{}
	config.Session.QueuedPacketMax = 4000
	config.Session.LongPollTimeoutSeconds = 20
	config.Lobby.TableLocationTTLSeconds = 60

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(config, logger, db), db
}

func TestAuthenticate(t *testing.T) {
	l, db := testLobby(t)
	account, err := CreateAccount(db, "player", "secret", "player@test.com")
	if err != nil {
		t.Fatalf("error creating account: %s", err)
	}

	info, code, _ := l.Authenticate(&packet.Packet{Name: "player", Password: "secret"}, nil)
	if info == nil {
		t.Fatalf("authentication refused with code %d", code)
	}
	if info.Serial != uint32(account.ID) || info.Name != "player" {
		t.Errorf("LoginInfo = %+v, want serial %d name player", info, account.ID)
	}
	if info.Privilege != session.PrivilegeRegular {
		t.Errorf("privilege = %v, want regular", info.Privilege)
	}

	info, code, _ = l.Authenticate(&packet.Packet{Name: "player", Password: "wrong"}, nil)
	if info != nil || code != packet.CodeAuthRefused {
		t.Errorf("bad password accepted: info %v code %d", info, code)
	}
}

func TestAuthenticateAdminSerial(t *testing.T) {
	l, db := testLobby(t)
	account, err := CreateAccount(db, "admin", "secret", "admin@test.com")
	if err != nil {
		t.Fatalf("error creating account: %s", err)
	}
	l.config.Lobby.AdminSerial = uint32(account.ID)

	info, _, _ := l.Authenticate(&packet.Packet{Name: "admin", Password: "secret"}, nil)
	if info == nil || info.Privilege != session.PrivilegeAdmin {
		t.Errorf("configured admin serial did not get admin privilege: %+v", info)
	}
}

func TestAuthLevelPolicy(t *testing.T) {
	l, _ := testLobby(t)
	tests := map[string]struct {
		packetType packet.Type
		want       session.Privilege
	}{
		"login is anonymous":        {packet.LoginType, session.PrivilegeAnonymous},
		"table listing anonymous":   {packet.TableSelectType, session.PrivilegeAnonymous},
		"fold needs login":          {packet.FoldType, session.PrivilegeRegular},
		"hand listing needs login":  {packet.HandSelectType, session.PrivilegeRegular},
		"update money needs admin":  {packet.UpdateMoneyType, session.PrivilegeAdmin},
		"all-hands listing (admin)": {packet.HandSelectAllType, session.PrivilegeAdmin},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := l.AuthLevel(tt.packetType); got != tt.want {
				t.Errorf("AuthLevel(%d) = %v, want %v", tt.packetType, got, tt.want)
			}
		})
	}
}

func TestTourneyLifecycle(t *testing.T) {
	l, _ := testLobby(t)

	created := l.TourneyCreate(&packet.Packet{
		Type:         packet.CreateTourneyType,
		Serial:       5,
		Name:         "sit-and-go",
		PlayersQuota: 2,
	})
	if created.Type != packet.TourneyType || created.State != packet.TourneyStateRegistering {
		t.Fatalf("created tournament packet = %+v", created)
	}

	serial := created.TourneySerial
	if !l.TourneyRegister(&packet.Packet{TourneySerial: serial, Serial: 5}) {
		t.Fatal("bailor could not register")
	}
	if l.TourneyRegister(&packet.Packet{TourneySerial: serial, Serial: 5}) {
		t.Fatal("double registration accepted")
	}
	if !l.TourneyRegister(&packet.Packet{TourneySerial: serial, Serial: 6}) {
		t.Fatal("second player could not register")
	}
	if l.TourneyRegister(&packet.Packet{TourneySerial: serial, Serial: 7}) {
		t.Fatal("registration above the player quota accepted")
	}

	tourney, ok := l.TourneyByID(serial)
	if !ok {
		t.Fatal("created tournament not found")
	}
	started := l.TourneyStart(tourney)
	if started.Type == packet.ErrorType {
		t.Fatalf("start refused: %+v", started)
	}
	if tourney.State() != packet.TourneyStateRunning {
		t.Errorf("state after start = %s, want running", tourney.State())
	}

	// Registration is closed once running.
	if got := l.TourneyUnregister(&packet.Packet{TourneySerial: serial, Serial: 6}); got.Type != packet.ErrorType {
		t.Errorf("unregister after start = %+v, want error", got)
	}
}

func TestTourneyStartNeedsTwoPlayers(t *testing.T) {
	l, _ := testLobby(t)
	created := l.TourneyCreate(&packet.Packet{Serial: 5, Name: "lonely", PlayersQuota: 9})
	l.TourneyRegister(&packet.Packet{TourneySerial: created.TourneySerial, Serial: 5})

	tourney, _ := l.TourneyByID(created.TourneySerial)
	started := l.TourneyStart(tourney)
	if started.Type != packet.ErrorType || started.Code != packet.CodeNotEnoughUsers {
		t.Errorf("start with one player = %+v, want CodeNotEnoughUsers error", started)
	}
}

func TestLoadHandRoundTrip(t *testing.T) {
	l, db := testLobby(t)

	chips, _ := json.Marshal(map[uint32]int64{5: 1000, 6: 2000})
	pockets, _ := json.Marshal(map[uint32][]byte{5: {10, 24}})
	packets, _ := json.Marshal([]*packet.Packet{
		{Type: packet.FoldType, GameID: 42, Serial: 6},
	})
	hand := &data.Hand{
		Serial:           42,
		Variant:          "holdem",
		BettingStructure: "no-limit",
		PlayedAt:         time.Now(),
		Chips:            chips,
		Pockets:          pockets,
		Packets:          packets,
	}
	if err := data.SaveHand(db, hand, []uint64{5, 6}); err != nil {
		t.Fatalf("error saving hand: %s", err)
	}

	hist, ok := l.LoadHand(42)
	if !ok {
		t.Fatal("stored hand not found")
	}

	want := &session.HandHistory{
		HandSerial:       42,
		Variant:          "holdem",
		BettingStructure: "no-limit",
		PlayerList:       []uint32{5, 6},
		Chips:            map[uint32]int64{5: 1000, 6: 2000},
		Pockets:          map[uint32][]byte{5: {10, 24}},
		Packets:          []*packet.Packet{{Type: packet.FoldType, GameID: 42, Serial: 6}},
	}
	if diff := deep.Equal(want, hist); diff != nil {
		t.Errorf("loaded hand history differs: %v", diff)
	}
}

func TestPacketToRemoteHost(t *testing.T) {
	l, _ := testLobby(t)

	// Unknown game with no cached location: handled locally.
	if host, _ := l.PacketToRemoteHost(&packet.Packet{Type: packet.SitType, GameID: 7}); host != nil {
		t.Errorf("uncached game resolved to %+v, want local handling", host)
	}

	l.SetTableLocation(7, session.RemoteHost{Host: "other", Port: 19382, Path: "/cardroom"})
	host, gameID := l.PacketToRemoteHost(&packet.Packet{Type: packet.SitType, GameID: 7})
	if host == nil || host.Host != "other" || gameID != 7 {
		t.Errorf("cached location lookup = %+v game %d, want other:19382 game 7", host, gameID)
	}

	// The long poll pull never routes remotely.
	if host, _ := l.PacketToRemoteHost(&packet.Packet{Type: packet.LongPollType, GameID: 7}); host != nil {
		t.Error("long poll routed to a remote host")
	}
}

func TestListHands(t *testing.T) {
	l, db := testLobby(t)
	for serial := uint64(1); serial <= 3; serial++ {
		hand := &data.Hand{Serial: serial, Variant: "holdem", BettingStructure: "no-limit", PlayedAt: time.Now()}
		players := []uint64{5}
		if serial == 3 {
			players = []uint64{6}
		}
		if err := data.SaveHand(db, hand, players); err != nil {
			t.Fatalf("error saving hand %d: %s", serial, err)
		}
	}

	total, hands := l.ListHands(5, false, "", 0, 50)
	if total != 2 || len(hands) != 2 {
		t.Errorf("ListHands(5) = total %d hands %v, want 2 hands", total, hands)
	}

	total, hands = l.ListHands(5, true, "", 0, 50)
	if total != 3 || len(hands) != 3 {
		t.Errorf("ListHands(all) = total %d hands %v, want 3 hands", total, hands)
	}
}
