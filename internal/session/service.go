package session

import (
	"time"

	"github.com/cardroom/cardroom/internal/packet"
)

// TranslateFunc localizes a message for the session's locale.
type TranslateFunc func(string) string

// PlayerInfo is the stored profile of a player.
type PlayerInfo struct {
	Serial uint32
	Name   string
	URL    string
	Outfit string
	Locale string
}

// LoginInfo is the identity returned by a successful authentication.
type LoginInfo struct {
	Serial    uint32
	Name      string
	Privilege Privilege
}

// RemoteHost locates the host owning a table's authoritative state.
type RemoteHost struct {
	Host string
	Port int
	Path string
}

// TableConfig describes a table to be spawned or created.
type TableConfig struct {
	Name             string
	Variant          string
	BettingStructure string
	Seats            int
	PlayerTimeout    int
	MuckTimeout      int
	CurrencySerial   uint32
	Skin             string
	Reason           string
}

// HandHistory is a finished hand as stored by the persistence layer, already
// expressed as the packet stream that replays it.
type HandHistory struct {
	HandSerial       uint32
	Variant          string
	BettingStructure string
	PlayerList       []uint32
	Chips            map[uint32]int64
	Pockets          map[uint32][]byte
	Packets          []*packet.Packet
}

// Service is the shared cardroom collaborator a session mutates and queries
// game, tournament and account state through. Implementations are externally
// synchronized; sessions call into them freely.
type Service interface {
	// Authorization policy: minimum privilege required for a packet type.
	AuthLevel(t packet.Type) Privilege
	// Authenticate validates the credentials carried by a login or auth
	// packet. On failure info is nil and code/reason describe why.
	Authenticate(pkt *packet.Packet, roles map[string]bool) (info *LoginInfo, code uint32, reason string)

	GetPlayerInfo(serial uint32) (PlayerInfo, error)
	// AccountPrivilege returns the stored privilege level of an account,
	// used when a session identity is re-established without credentials.
	AccountPrivilege(serial uint32) Privilege
	GetUserInfo(serial uint32) *packet.Packet
	GetPersonalInfo(serial uint32) *packet.Packet
	SetPlayerInfo(pkt *packet.Packet) bool
	SetPersonalInfo(pkt *packet.Packet)
	SetAccount(pkt *packet.Packet) *packet.Packet
	GetPlayerPlaces(serial uint32) *packet.Packet
	GetPlayerPlacesByName(name string) *packet.Packet
	AutoRefill(serial uint32)
	Locale2Printer(locale string) TranslateFunc

	// Active session registry. A session registers when it logs in with the
	// PLAY role and unregisters on logout.
	RegisterSession(a *Avatar)
	UnregisterSession(a *Avatar)
	// ForceSessionDestroy tears a session down after a fatal internal error
	// (queue overflow, explain fault).
	ForceSessionDestroy(a *Avatar)

	QueuedPacketMax() int
	LongPollTimeout() time.Duration
	ShuttingDown() bool

	// Tables hosted locally.
	GetTable(gameID uint32) Table
	Tables() map[uint32]Table
	LoadTableConfig(gameID uint32) (*TableConfig, bool)
	SpawnTable(gameID uint32, cfg *TableConfig) Table
	CreateTable(serial uint32, cfg *TableConfig) Table
	ListTables(query string, serial uint32) []*packet.Packet
	StatsTables() (players, tables int)

	// Tournaments.
	TourneyByID(tourneySerial uint32) (Tourney, bool)
	TourneySelect(query string) []*packet.Packet
	TourneySelectInfo(pkt *packet.Packet, tourneys []*packet.Packet) *packet.Packet
	TourneyPlayersList(tourneySerial uint32) *packet.Packet
	TourneyManager(tourneySerial uint32) *packet.Packet
	TourneyPlayerStats(tourneySerial, serial uint32) *packet.Packet
	TourneyCreate(pkt *packet.Packet) *packet.Packet
	TourneyRegister(pkt *packet.Packet) bool
	TourneyUnregister(pkt *packet.Packet) *packet.Packet
	TourneyStart(t Tourney) *packet.Packet
	TourneyRebuyRequest(tourneySerial, serial uint32) (ok bool, code uint32)

	// Cash operations.
	CashIn(pkt *packet.Packet) *packet.Packet
	CashOut(pkt *packet.Packet) *packet.Packet
	CashQuery(pkt *packet.Packet) *packet.Packet
	CashOutCommit(pkt *packet.Packet) *packet.Packet

	Stats(query string) *packet.Packet
	Monitor(a *Avatar) *packet.Packet

	// Hand history.
	ListHands(serial uint32, all bool, query string, start, count int) (total int, hands []uint32)
	GetHandHistory(gameID, serial uint32) *packet.Packet
	LoadHand(handSerial uint32) (*HandHistory, bool)
	GetNames(serials []uint32) map[uint32]string

	// Distributed routing: resolve the remote host owning the table the
	// packet targets. A nil host means handle locally.
	PacketToRemoteHost(pkt *packet.Packet) (*RemoteHost, uint32)
}

// Table is a game table shared by every session seated at or observing it.
// All table-mutating dispatches end with Update so the table's own state
// machine can progress.
type Table interface {
	GameID() uint32
	Game() Game
	Tourney() Tourney
	ToPacket() *packet.Packet

	JoinPlayer(a *Avatar, reason string) bool
	SeatPlayer(a *Avatar, seat int) bool
	BuyInPlayer(a *Avatar, amount int64) bool
	RebuyPlayerRequest(serial uint32, amount int64)
	SitPlayer(a *Avatar)
	SitOutPlayer(a *Avatar)
	LeavePlayer(a *Avatar)
	QuitPlayer(a *Avatar)
	DisconnectPlayer(a *Avatar)
	ChatPlayer(a *Avatar, message string)
	AutoBlindAnte(a *Avatar, enabled bool)
	MuckAccept(a *Avatar)
	MuckDeny(a *Avatar)
	ReadyToPlay(serial uint32) *packet.Packet
	ProcessingHand(serial uint32) *packet.Packet
	AutoRefill(serial uint32, value int64)
	AutoRebuy(serial uint32, value int64)
	UpdatePlayersMoney(serials []uint32, chips []int64, absolute bool) bool
	ListPlayers() []*packet.Packet

	// PossibleObserverLoggedIn promotes an observer to their seat when the
	// session that just authenticated matches a seated player. Returns true
	// when a promotion happened.
	PossibleObserverLoggedIn(a *Avatar) bool
	// PlayerStates yields the arrive/chips/sit packets describing every
	// seated player, used to replay table state to a joining session.
	PlayerStates() []*packet.Packet
	// RunningHandPackets replays the hand in progress from the viewer's
	// perspective: other players' pockets are masked.
	RunningHandPackets(viewer uint32) []*packet.Packet
	// SeatsPacket describes the current seat assignment.
	SeatsPacket() *packet.Packet
	// BetLimitsPacket describes the betting limits of the current hand, nil
	// when no hand is running.
	BetLimitsPacket() *packet.Packet
	// CurrentTimeoutWarning returns the pending timeout warning for the
	// player in position, nil when none is pending.
	CurrentTimeoutWarning() *packet.Packet

	Update()
	Broadcast(pkt *packet.Packet)
}

// Game is the rules-engine view of a table's current hand. Operations report
// success or failure implicitly through subsequent state, not errors.
type Game interface {
	ID() uint32
	HandSerial() uint32
	IsEndOrNull() bool
	HasPlayer(serial uint32) bool
	IsPlaying(serial uint32) bool
	IsSit(serial uint32) bool
	// IsAuto reports whether the player is being auto-played, for example
	// after a timeout while still seated.
	IsAuto(serial uint32) bool

	Fold(serial uint32)
	Call(serial uint32)
	CallNRaise(serial uint32, amount int64)
	Check(serial uint32)
	Blind(serial uint32)
	Ante(serial uint32)
	WaitBigBlind(serial uint32)
	AutoMuck(serial uint32, flags int64)
	AutoPlay(serial uint32, enabled bool)

	IsBlindRequested(serial uint32) bool
	IsAnteRequested(serial uint32) bool
	BlindAmount(serial uint32) (amount, dead int64, state string)
	AnteValue() int64
	PlayerCards(serial uint32) []byte

	BuyIn() int64
	MaxBuyIn() int64
	BestBuyIn() int64
	MinMoney() int64
}

// Tourney is the tournament collaborator used by start/cancel/register flows.
type Tourney interface {
	Serial() uint32
	State() string
	ChangeState(state string)
	BailorSerial() uint32
	Registered() int
	ToPacket() *packet.Packet
}

// Explainer is the optional diagnostic interceptor applied to outbound
// packets. Any error it returns is fatal to the session.
type Explainer interface {
	// Explain transforms one outbound packet into the sequence of packets to
	// actually send.
	Explain(pkt *packet.Packet) ([]*packet.Packet, error)
	// HandleSerial informs the interceptor of the session's authenticated serial.
	HandleSerial(serial uint32)
	// GameExists reports whether the interceptor still tracks live state for
	// a game.
	GameExists(gameID uint32) bool
}

// RemoteResult is the outcome of one distributed round trip.
type RemoteResult struct {
	Packets []*packet.Packet
	Err     error
}

// RemoteClient forwards packets to the remote host owning a table. At most
// one client exists per (session, game) pair; the router retires it when no
// local interest remains and either nothing is outstanding or only a long
// poll is being held.
type RemoteClient interface {
	// Send forwards the packet asynchronously. The returned channel yields
	// exactly one result.
	Send(pkt *packet.Packet, data []byte) <-chan RemoteResult
	// Outstanding returns the number of round trips still awaiting a response.
	Outstanding() int
	// PendingLongPoll reports whether a long poll pull is being held remotely.
	PendingLongPoll() bool
	// Cancel aborts any outstanding round trips and releases the client.
	Cancel()
}

// PacketWriter is the push side of a transport: it delivers one packet to the
// client immediately.
type PacketWriter interface {
	WritePacket(pkt *packet.Packet) error
}
