// Package session implements the per-connection avatar at the heart of the
// cardroom server: it receives inbound protocol packets from one client,
// authorizes and dispatches them against the shared service, table and game
// collaborators, and returns outbound packets either directly, queued, or
// through a long poll hold.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/cardroom/internal/packet"
)

// Avatar is the server side state for one connected client, authenticated or
// anonymous. It is created when a transport connection is accepted and
// destroyed when the transport disconnects or a fatal internal error forces
// termination.
//
// The dispatcher runs on the transport goroutine, one packet at a time.
// Long poll timers and distributed round trip responses arrive on other
// goroutines; the session mutex guards the state they share with dispatch
// (queue, long poll coordination, joined tables, remote client handles).
type Avatar struct {
	service Service
	// logEntry holds a *logrus.Entry. Entries are immutable; the pointer is
	// swapped when the session authenticates, and may be read by the long
	// poll timer and distribute goroutines concurrently.
	logEntry atomic.Value

	mu            sync.Mutex
	user          User
	roles         map[string]bool
	tables        map[uint32]Table
	tourneys      []uint32
	queueMode     bool
	queue         outboundQueue
	longPoll      longPoll
	remoteClients map[uint32]RemoteClient
	explain       Explainer
	translate     TranslateFunc
	personalInfo  *packet.Packet
	writer        PacketWriter

	distributedUID  string
	distributedAuth string
	distributedArgs string

	// Factories, replaceable by tests.
	newExplainer    func(serial uint32) Explainer
	newRemoteClient func(host RemoteHost, path string) RemoteClient

	debugPackets bool
}

// New returns an Avatar bound to the shared service.
func New(service Service, logger *logrus.Logger) *Avatar {
	a := &Avatar{
		service:         service,
		roles:           make(map[string]bool),
		tables:          make(map[uint32]Table),
		remoteClients:   make(map[uint32]RemoteClient),
		distributedArgs: "?explain=no",
	}
	a.logEntry.Store(logger.WithField("session", "anonymous"))
	a.newExplainer = func(serial uint32) Explainer { return NewExplainTracker() }
	a.newRemoteClient = func(host RemoteHost, path string) RemoteClient {
		return NewRestClient(host.Host, host.Port, path, logger)
	}
	return a
}

func (a *Avatar) log() *logrus.Entry {
	return a.logEntry.Load().(*logrus.Entry)
}

func (a *Avatar) String() string {
	return fmt.Sprintf("Avatar serial = %d, name = %s", a.Serial(), a.Name())
}

// Serial returns the authenticated subject serial, 0 for anonymous sessions.
func (a *Avatar) Serial() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Serial
}

// Name returns the authenticated subject name.
func (a *Avatar) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Name
}

// User returns a copy of the session's identity.
func (a *Avatar) User() User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// IsLogged reports whether the session has authenticated.
func (a *Avatar) IsLogged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.IsLogged()
}

// HasRole reports whether the session claimed the given role tag.
func (a *Avatar) HasRole(role string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roles[role]
}

// SetWriter installs the push side of the transport. Sessions without a
// writer run in queue mode permanently and rely on the long poll protocol.
func (a *Avatar) SetWriter(w PacketWriter) {
	a.mu.Lock()
	a.writer = w
	a.mu.Unlock()
}

// SetDebugPackets toggles verbose packet dumps on the debug log.
func (a *Avatar) SetDebugPackets(enabled bool) {
	a.debugPackets = enabled
}

// SetDistributedArgs records the credentials appended as query arguments to
// every forwarded distributed request.
func (a *Avatar) SetDistributedArgs(uid, auth string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.distributedUID = uid
	a.distributedAuth = auth
	a.distributedArgs = fmt.Sprintf("?explain=no&uid=%s&auth=%s", uid, auth)
}

// SetLocale installs a translation function for the given locale. Returns
// false when the service has no translations for it.
func (a *Avatar) SetLocale(locale string) bool {
	if locale == "" {
		return a.translate != nil
	}
	fn := a.service.Locale2Printer(locale)
	if fn == nil {
		return false
	}
	a.mu.Lock()
	a.translate = fn
	a.mu.Unlock()
	return true
}

// setDefaultLocale installs the locale found for the user in the database,
// unless the client already picked one explicitly.
func (a *Avatar) setDefaultLocale(locale string) {
	a.mu.Lock()
	installed := a.translate != nil
	a.mu.Unlock()
	if !installed {
		a.SetLocale(locale)
	}
}

// Translate localizes a message for the session, falling back to the input.
func (a *Avatar) Translate(message string) string {
	a.mu.Lock()
	fn := a.translate
	a.mu.Unlock()
	if fn == nil {
		return message
	}
	return fn(message)
}

func (a *Avatar) setQueueMode(enabled bool) {
	a.mu.Lock()
	a.queueMode = enabled
	a.mu.Unlock()
}

// SendPacket delivers one packet to the client: through the explain
// interceptor when active, then either onto the outbound queue or directly
// to the push transport.
func (a *Avatar) SendPacket(pkt *packet.Packet) {
	pkts := a.explainPackets(pkt)

	a.mu.Lock()
	if a.queueMode || a.writer == nil {
		destroy := a.extendQueueLocked(pkts)
		a.mu.Unlock()
		if destroy {
			a.service.ForceSessionDestroy(a)
		}
		return
	}
	w := a.writer
	a.mu.Unlock()

	for _, p := range pkts {
		if err := w.WritePacket(p); err != nil {
			a.log().Warnf("error writing packet type %d: %v", p.Type, err)
		}
	}
}

// sendPacketVerbose logs the packet on the debug log before sending it.
// Pings are not logged.
func (a *Avatar) sendPacketVerbose(pkt *packet.Packet) {
	if pkt.Type != packet.PingType {
		if a.debugPackets {
			a.log().Debugf("sendPacket: %s", spew.Sdump(pkt))
		} else {
			a.log().Debugf("sendPacket: type %d game %d serial %d", pkt.Type, pkt.GameID, pkt.Serial)
		}
	}
	a.SendPacket(pkt)
}

// packetTable resolves the joined table a packet addresses, nil when the
// session has not joined it.
func (a *Avatar) packetTable(pkt *packet.Packet) Table {
	if !pkt.HasGame() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tables[pkt.GameID]
}

// Tables returns a snapshot of the tables this session has joined.
func (a *Avatar) Tables() map[uint32]Table {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := make(map[uint32]Table, len(a.tables))
	for id, t := range a.tables {
		snapshot[id] = t
	}
	return snapshot
}

func (a *Avatar) isAuthorized(t packet.Type) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.HasPrivilege(a.service.AuthLevel(t))
}

// login transitions the session to the authenticated state and replays the
// state a reconnecting player needs.
func (a *Avatar) login(info *LoginInfo) {
	a.mu.Lock()
	a.user.Serial = info.Serial
	a.user.Name = info.Name
	a.user.Privilege = info.Privilege
	a.mu.Unlock()
	a.logEntry.Store(a.log().WithField("serial", info.Serial))

	if pi, err := a.service.GetPlayerInfo(info.Serial); err == nil {
		a.mu.Lock()
		a.user.URL = pi.URL
		a.user.Outfit = pi.Outfit
		a.mu.Unlock()
		if pi.Locale != "" {
			a.setDefaultLocale(pi.Locale)
		}
	}

	a.sendPacketVerbose(&packet.Packet{Type: packet.SerialType, Serial: info.Serial})
	if a.HasRole(packet.RolePlay) {
		a.service.RegisterSession(a)
	}
	a.log().Debugf("user %s/%d logged in", info.Name, info.Serial)

	a.mu.Lock()
	ex := a.explain
	a.mu.Unlock()
	if ex != nil {
		ex.HandleSerial(info.Serial)
	}

	a.tourneyUpdates(info.Serial)
	a.loginTableUpdates(info.Serial)
}

// Relogin re-establishes the identity of a player whose session is being
// re-created, for example after a transport reconnect while the player still
// occupies a seat.
func (a *Avatar) Relogin(serial uint32) {
	pi, err := a.service.GetPlayerInfo(serial)
	if err != nil {
		a.log().Warnf("relogin of unknown player %d: %v", serial, err)
		return
	}

	a.mu.Lock()
	a.user.Serial = serial
	a.user.Name = pi.Name
	a.user.Privilege = a.service.AccountPrivilege(serial)
	a.user.URL = pi.URL
	a.user.Outfit = pi.Outfit
	ex := a.explain
	a.mu.Unlock()
	a.logEntry.Store(a.log().WithField("serial", serial))
	if pi.Locale != "" {
		a.setDefaultLocale(pi.Locale)
	}

	if ex != nil {
		ex.HandleSerial(serial)
	}
	a.service.RegisterSession(a)
	a.tourneyUpdates(serial)
	a.loginTableUpdates(serial)
}

func (a *Avatar) tourneyUpdates(serial uint32) {
	places := a.service.GetPlayerPlaces(serial)
	a.mu.Lock()
	a.tourneys = append([]uint32{}, places.Serials...)
	a.mu.Unlock()
}

// loginTableUpdates sends player updates for any table where it turns out
// the player was already seated: their cards, their self marker, and any
// pending blind or ante request, so a reconnecting client can resynchronize
// without a full hand replay.
func (a *Avatar) loginTableUpdates(serial uint32) {
	for _, t := range a.Tables() {
		if !t.PossibleObserverLoggedIn(a) {
			continue
		}
		g := t.Game()
		a.sendPacketVerbose(&packet.Packet{
			Type:   packet.PlayerCardsType,
			GameID: g.ID(),
			Serial: serial,
			Cards:  g.PlayerCards(serial),
		})
		a.sendPacketVerbose(&packet.Packet{Type: packet.PlayerSelfType, GameID: g.ID(), Serial: serial})

		if g.IsBlindRequested(serial) {
			amount, dead, state := g.BlindAmount(serial)
			a.sendPacketVerbose(&packet.Packet{
				Type:   packet.BlindRequestType,
				GameID: g.ID(),
				Serial: serial,
				Amount: amount,
				Dead:   dead,
				State:  state,
			})
		}
		if g.IsAnteRequested(serial) {
			a.sendPacketVerbose(&packet.Packet{
				Type:   packet.AnteRequestType,
				GameID: g.ID(),
				Serial: serial,
				Amount: g.AnteValue(),
			})
		}
	}
}

// Logout removes the session from the active registry and resets identity.
func (a *Avatar) Logout() {
	a.mu.Lock()
	logged := a.user.IsLogged()
	play := a.roles[packet.RolePlay]
	a.mu.Unlock()

	if !logged {
		return
	}
	if play {
		a.service.UnregisterSession(a)
	}
	a.mu.Lock()
	a.user.Logout()
	a.mu.Unlock()
}

// Join records the table as joined and replays its current state to the
// client: snapshot, buy-in limits, tournament info, every seated player, and
// the running hand if one is in progress. Called by table implementations
// from JoinPlayer.
func (a *Avatar) Join(t Table, reason string) {
	g := t.Game()
	a.mu.Lock()
	a.tables[g.ID()] = t
	a.mu.Unlock()

	snapshot := t.ToPacket()
	snapshot.Reason = reason
	a.sendPacketVerbose(snapshot)
	a.sendPacketVerbose(&packet.Packet{
		Type:     packet.BuyInLimitsType,
		GameID:   g.ID(),
		Min:      g.BuyIn(),
		Max:      g.MaxBuyIn(),
		Best:     g.BestBuyIn(),
		RebuyMin: g.MinMoney(),
	})

	if tourney := t.Tourney(); tourney != nil {
		a.sendPacketVerbose(tourney.ToPacket())
	}

	a.sendPacketVerbose(&packet.Packet{Type: packet.BatchModeType, GameID: g.ID()})
	for _, p := range t.PlayerStates() {
		a.sendPacketVerbose(p)
	}
	a.sendPacketVerbose(t.SeatsPacket())
	if limits := t.BetLimitsPacket(); limits != nil {
		a.sendPacketVerbose(limits)
	}

	if !g.IsEndOrNull() {
		// A hand is running: replay it. Cards belonging to other players
		// come back as placeholders.
		for _, p := range t.RunningHandPackets(a.Serial()) {
			a.sendPacketVerbose(p)
		}
		if warning := t.CurrentTimeoutWarning(); warning != nil {
			a.sendPacketVerbose(warning)
		}
	}

	a.sendPacketVerbose(&packet.Packet{Type: packet.StreamModeType, GameID: g.ID()})
}

// LeaveTable drops a table from the joined set. Called by table
// implementations when the player quits or is removed.
func (a *Avatar) LeaveTable(gameID uint32) {
	a.mu.Lock()
	delete(a.tables, gameID)
	a.mu.Unlock()
}

// ConnectionLost tears the session down after the transport disconnected:
// every joined table is told the player is gone, the subject is logged out,
// and every remote client handle is cancelled. The long poll gate is held
// closed for the duration so no partial flush happens mid-teardown.
func (a *Avatar) ConnectionLost() {
	a.log().Debugf("connection lost for %s/%d", a.Name(), a.Serial())
	a.BlockLongPoll()

	for _, t := range a.Tables() {
		t.DisconnectPlayer(a)
	}
	a.Logout()

	a.mu.Lock()
	clients := a.remoteClients
	a.remoteClients = make(map[uint32]RemoteClient)
	serial := a.user.Serial
	a.mu.Unlock()

	for gameID, client := range clients {
		client.Cancel()
		// Inert after disconnect, but useful for diagnostics when the
		// session buffer is inspected.
		a.SendPacket(&packet.Packet{
			Type:    packet.StateInformationType,
			GameID:  gameID,
			Serial:  serial,
			Code:    packet.CodeRemoteConnectionLost,
			Message: "connection closed",
		})
	}

	a.mu.Lock()
	a.longPoll.flushNext = true
	a.mu.Unlock()
	a.UnblockLongPoll()
}
