package session

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardroom/cardroom/internal/packet"
)

func testAvatar(svc *stubService) *Avatar {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a := New(svc, logger)
	a.setQueueMode(true)
	return a
}

// stubGame records the betting actions routed to it.
type stubGame struct {
	id        uint32
	endOrNull bool
	players   map[uint32]bool
	auto      bool
	actions   []string
}

func (g *stubGame) ID() uint32                 { return g.id }
func (g *stubGame) HandSerial() uint32         { return 1 }
func (g *stubGame) IsEndOrNull() bool          { return g.endOrNull }
func (g *stubGame) HasPlayer(s uint32) bool    { return g.players[s] }
func (g *stubGame) IsPlaying(s uint32) bool    { return g.players[s] }
func (g *stubGame) IsSit(s uint32) bool        { return g.players[s] }
func (g *stubGame) IsAuto(s uint32) bool       { return g.auto }
func (g *stubGame) Fold(s uint32)              { g.actions = append(g.actions, "fold") }
func (g *stubGame) Call(s uint32)              { g.actions = append(g.actions, "call") }
func (g *stubGame) CallNRaise(s uint32, amount int64) {
	g.actions = append(g.actions, "raise")
}
func (g *stubGame) Check(s uint32)        { g.actions = append(g.actions, "check") }
func (g *stubGame) Blind(s uint32)        { g.actions = append(g.actions, "blind") }
func (g *stubGame) Ante(s uint32)         { g.actions = append(g.actions, "ante") }
func (g *stubGame) WaitBigBlind(s uint32) { g.actions = append(g.actions, "waitBigBlind") }
func (g *stubGame) AutoMuck(s uint32, flags int64) {
	g.actions = append(g.actions, "autoMuck")
}
func (g *stubGame) AutoPlay(s uint32, enabled bool) {
	g.actions = append(g.actions, "autoPlay")
}
func (g *stubGame) IsBlindRequested(s uint32) bool { return false }
func (g *stubGame) IsAnteRequested(s uint32) bool  { return false }
func (g *stubGame) BlindAmount(s uint32) (int64, int64, string) {
	return 0, 0, ""
}
func (g *stubGame) AnteValue() int64              { return 0 }
func (g *stubGame) PlayerCards(s uint32) []byte   { return nil }
func (g *stubGame) BuyIn() int64                  { return 100 }
func (g *stubGame) MaxBuyIn() int64               { return 10000 }
func (g *stubGame) BestBuyIn() int64              { return 1000 }
func (g *stubGame) MinMoney() int64               { return 10 }

// stubTable records lifecycle calls and counts Update invocations.
type stubTable struct {
	game        *stubGame
	actions     []string
	updates     int
	refuseJoin  bool
	refuseSeat  bool
	refuseBuyIn bool
}

func newStubTable(gameID uint32) *stubTable {
	return &stubTable{game: &stubGame{id: gameID, endOrNull: true, players: map[uint32]bool{}}}
}

func (t *stubTable) GameID() uint32           { return t.game.id }
func (t *stubTable) Game() Game               { return t.game }
func (t *stubTable) Tourney() Tourney         { return nil }
func (t *stubTable) ToPacket() *packet.Packet {
	return &packet.Packet{Type: packet.TableType, GameID: t.game.id}
}
func (t *stubTable) JoinPlayer(a *Avatar, reason string) bool {
	t.actions = append(t.actions, "join")
	if t.refuseJoin {
		return false
	}
	a.Join(t, reason)
	return true
}
func (t *stubTable) SeatPlayer(a *Avatar, seat int) bool {
	t.actions = append(t.actions, "seat")
	return !t.refuseSeat
}
func (t *stubTable) BuyInPlayer(a *Avatar, amount int64) bool {
	t.actions = append(t.actions, "buyIn")
	return !t.refuseBuyIn
}
func (t *stubTable) RebuyPlayerRequest(s uint32, amount int64) {
	t.actions = append(t.actions, "rebuy")
}
func (t *stubTable) SitPlayer(a *Avatar)    { t.actions = append(t.actions, "sit") }
func (t *stubTable) SitOutPlayer(a *Avatar) { t.actions = append(t.actions, "sitOut") }
func (t *stubTable) LeavePlayer(a *Avatar)  { t.actions = append(t.actions, "leave") }
func (t *stubTable) QuitPlayer(a *Avatar) {
	t.actions = append(t.actions, "quit")
	a.LeaveTable(t.game.id)
}
func (t *stubTable) DisconnectPlayer(a *Avatar) {
	t.actions = append(t.actions, "disconnect")
	a.LeaveTable(t.game.id)
}
func (t *stubTable) ChatPlayer(a *Avatar, message string) {
	t.actions = append(t.actions, "chat")
}
func (t *stubTable) AutoBlindAnte(a *Avatar, enabled bool) {
	t.actions = append(t.actions, "autoBlindAnte")
}
func (t *stubTable) MuckAccept(a *Avatar) { t.actions = append(t.actions, "muckAccept") }
func (t *stubTable) MuckDeny(a *Avatar)   { t.actions = append(t.actions, "muckDeny") }
func (t *stubTable) ReadyToPlay(s uint32) *packet.Packet {
	return &packet.Packet{Type: packet.ReadyToPlayType, GameID: t.game.id, Serial: s}
}
func (t *stubTable) ProcessingHand(s uint32) *packet.Packet {
	return &packet.Packet{Type: packet.ProcessingHandType, GameID: t.game.id, Serial: s}
}
func (t *stubTable) AutoRefill(s uint32, v int64) { t.actions = append(t.actions, "autoRefill") }
func (t *stubTable) AutoRebuy(s uint32, v int64)  { t.actions = append(t.actions, "autoRebuy") }
func (t *stubTable) UpdatePlayersMoney(serials []uint32, chips []int64, absolute bool) bool {
	t.actions = append(t.actions, "updateMoney")
	return true
}
func (t *stubTable) ListPlayers() []*packet.Packet            { return nil }
func (t *stubTable) PossibleObserverLoggedIn(a *Avatar) bool  { return false }
func (t *stubTable) PlayerStates() []*packet.Packet           { return nil }
func (t *stubTable) RunningHandPackets(viewer uint32) []*packet.Packet {
	return nil
}
func (t *stubTable) SeatsPacket() *packet.Packet {
	return &packet.Packet{Type: packet.SeatsType, GameID: t.game.id}
}
func (t *stubTable) BetLimitsPacket() *packet.Packet       { return nil }
func (t *stubTable) CurrentTimeoutWarning() *packet.Packet { return nil }
func (t *stubTable) Update()                               { t.updates++ }
func (t *stubTable) Broadcast(pkt *packet.Packet)          {}

// stubService implements Service with overridable behavior. The zero value
// authorizes everything for anonymous sessions and hosts no tables.
type stubService struct {
	authLevel   func(t packet.Type) Privilege
	loginInfo   *LoginInfo
	refuseCode  uint32
	refusal     string
	tables      map[uint32]Table
	remoteHosts map[uint32]*RemoteHost
	hands       map[uint32]*HandHistory

	destroyed    int
	registered   int
	unregistered int
	refills      []uint32
	queuedMax    int
	pollTimeout  time.Duration
}

func (s *stubService) AuthLevel(t packet.Type) Privilege {
	if s.authLevel != nil {
		return s.authLevel(t)
	}
	return PrivilegeAnonymous
}

func (s *stubService) Authenticate(pkt *packet.Packet, roles map[string]bool) (*LoginInfo, uint32, string) {
	if s.loginInfo == nil {
		return nil, s.refuseCode, s.refusal
	}
	return s.loginInfo, 0, ""
}

func (s *stubService) GetPlayerInfo(serial uint32) (PlayerInfo, error) {
	return PlayerInfo{Serial: serial, Name: "player"}, nil
}
func (s *stubService) AccountPrivilege(serial uint32) Privilege { return PrivilegeRegular }
func (s *stubService) GetUserInfo(serial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.UserInfoType, Serial: serial}
}
func (s *stubService) GetPersonalInfo(serial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.PersonalInfoType, Serial: serial}
}
func (s *stubService) SetPlayerInfo(pkt *packet.Packet) bool { return true }
func (s *stubService) SetPersonalInfo(pkt *packet.Packet)    {}
func (s *stubService) SetAccount(pkt *packet.Packet) *packet.Packet {
	return packet.Ack()
}
func (s *stubService) GetPlayerPlaces(serial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.PlayerPlacesType, Serial: serial}
}
func (s *stubService) GetPlayerPlacesByName(name string) *packet.Packet {
	return &packet.Packet{Type: packet.PlayerPlacesType, Name: name}
}
func (s *stubService) AutoRefill(serial uint32)                        { s.refills = append(s.refills, serial) }
func (s *stubService) Locale2Printer(locale string) TranslateFunc      { return nil }
func (s *stubService) RegisterSession(a *Avatar)                       { s.registered++ }
func (s *stubService) UnregisterSession(a *Avatar)                     { s.unregistered++ }
func (s *stubService) ForceSessionDestroy(a *Avatar)                   { s.destroyed++ }

func (s *stubService) QueuedPacketMax() int {
	if s.queuedMax == 0 {
		return 4000
	}
	return s.queuedMax
}

func (s *stubService) LongPollTimeout() time.Duration {
	if s.pollTimeout == 0 {
		return 20 * time.Second
	}
	return s.pollTimeout
}

func (s *stubService) ShuttingDown() bool { return false }

func (s *stubService) GetTable(gameID uint32) Table {
	if t, ok := s.tables[gameID]; ok {
		return t
	}
	return nil
}
func (s *stubService) Tables() map[uint32]Table { return s.tables }
func (s *stubService) LoadTableConfig(gameID uint32) (*TableConfig, bool) {
	return nil, false
}
func (s *stubService) SpawnTable(gameID uint32, cfg *TableConfig) Table { return nil }
func (s *stubService) CreateTable(serial uint32, cfg *TableConfig) Table {
	return nil
}
func (s *stubService) ListTables(query string, serial uint32) []*packet.Packet {
	return nil
}
func (s *stubService) StatsTables() (int, int) { return 0, len(s.tables) }

func (s *stubService) TourneyByID(tourneySerial uint32) (Tourney, bool) { return nil, false }
func (s *stubService) TourneySelect(query string) []*packet.Packet      { return nil }
func (s *stubService) TourneySelectInfo(pkt *packet.Packet, tourneys []*packet.Packet) *packet.Packet {
	return nil
}
func (s *stubService) TourneyPlayersList(tourneySerial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.TourneyPlayersListType, TourneySerial: tourneySerial}
}
func (s *stubService) TourneyManager(tourneySerial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.TourneyManagerType, TourneySerial: tourneySerial}
}
func (s *stubService) TourneyPlayerStats(tourneySerial, serial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.TourneyPlayerStatsType, TourneySerial: tourneySerial, Serial: serial}
}
func (s *stubService) TourneyCreate(pkt *packet.Packet) *packet.Packet  { return packet.Ack() }
func (s *stubService) TourneyRegister(pkt *packet.Packet) bool          { return false }
func (s *stubService) TourneyUnregister(pkt *packet.Packet) *packet.Packet {
	return packet.Ack()
}
func (s *stubService) TourneyStart(t Tourney) *packet.Packet { return packet.Ack() }
func (s *stubService) TourneyRebuyRequest(tourneySerial, serial uint32) (bool, uint32) {
	return false, packet.CodeTourneyDoesNotExist
}

func (s *stubService) CashIn(pkt *packet.Packet) *packet.Packet        { return packet.Ack() }
func (s *stubService) CashOut(pkt *packet.Packet) *packet.Packet       { return packet.Ack() }
func (s *stubService) CashQuery(pkt *packet.Packet) *packet.Packet     { return packet.Ack() }
func (s *stubService) CashOutCommit(pkt *packet.Packet) *packet.Packet { return packet.Ack() }

func (s *stubService) Stats(query string) *packet.Packet {
	return &packet.Packet{Type: packet.StatsType}
}
func (s *stubService) Monitor(a *Avatar) *packet.Packet {
	return &packet.Packet{Type: packet.MonitorType}
}

func (s *stubService) ListHands(serial uint32, all bool, query string, start, count int) (int, []uint32) {
	return 0, nil
}
func (s *stubService) GetHandHistory(gameID, serial uint32) *packet.Packet {
	return &packet.Packet{Type: packet.HandHistoryType, GameID: gameID}
}
func (s *stubService) LoadHand(handSerial uint32) (*HandHistory, bool) {
	h, ok := s.hands[handSerial]
	return h, ok
}
func (s *stubService) GetNames(serials []uint32) map[uint32]string {
	names := make(map[uint32]string, len(serials))
	for _, serial := range serials {
		names[serial] = "player"
	}
	return names
}

func (s *stubService) PacketToRemoteHost(pkt *packet.Packet) (*RemoteHost, uint32) {
	if host, ok := s.remoteHosts[pkt.GameID]; ok {
		return host, pkt.GameID
	}
	return nil, 0
}

// stubRemoteClient yields canned results.
type stubRemoteClient struct {
	results     chan RemoteResult
	sent        []*packet.Packet
	cancelled   bool
	pending     bool
	outstanding int
}

func newStubRemoteClient() *stubRemoteClient {
	return &stubRemoteClient{results: make(chan RemoteResult, 8)}
}

func (c *stubRemoteClient) Send(pkt *packet.Packet, data []byte) <-chan RemoteResult {
	c.sent = append(c.sent, pkt)
	out := make(chan RemoteResult, 1)
	out <- <-c.results
	return out
}

func (c *stubRemoteClient) Outstanding() int      { return c.outstanding }
func (c *stubRemoteClient) PendingLongPoll() bool { return c.pending }
func (c *stubRemoteClient) Cancel()               { c.cancelled = true }
