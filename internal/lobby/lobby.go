// Package lobby implements the shared cardroom service sessions dispatch
// against: account authentication, the active session registry, local table
// and tournament registries, hand history access, and the table-location
// cache behind distributed routing.
package lobby

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cardroom/cardroom/internal/core"
	"github.com/cardroom/cardroom/internal/data"
	"github.com/cardroom/cardroom/internal/packet"
	"github.com/cardroom/cardroom/internal/session"
)

// adminPrivilegeLevel is the stored account privilege level at or above
// which a player holds administrator rights.
const adminPrivilegeLevel = 10

// TableFactory builds a table bound to a rules engine for a game id and
// configuration. The lobby itself knows nothing about game rules.
type TableFactory func(gameID uint32, cfg *session.TableConfig) session.Table

// Lobby implements session.Service.
type Lobby struct {
	config *core.Config
	log    *logrus.Logger
	db     *gorm.DB

	// tableFactory is consulted by SpawnTable and CreateTable. Without one
	// the lobby refuses table creation.
	tableFactory TableFactory

	// locations caches gameID -> RemoteHost entries for tables owned by
	// other cardroom processes, expiring after the configured TTL.
	locations *cache.Cache

	mu           sync.Mutex
	sessions     map[uint32]*session.Avatar
	tables       map[uint32]session.Table
	tourneys     map[uint32]*tourney
	nextGameID   uint32
	nextTourney  uint32
	shuttingDown bool
}

var _ session.Service = (*Lobby)(nil)

func New(config *core.Config, logger *logrus.Logger, db *gorm.DB) *Lobby {
	ttl := config.TableLocationTTL()
	return &Lobby{
		config:      config,
		log:         logger,
		db:          db,
		locations:   cache.New(ttl, 2*ttl),
		sessions:    make(map[uint32]*session.Avatar),
		tables:      make(map[uint32]session.Table),
		tourneys:    make(map[uint32]*tourney),
		nextGameID:  100,
		nextTourney: 1,
	}
}

// SetTableFactory installs the rules-engine binding used to instantiate
// tables.
func (l *Lobby) SetTableFactory(factory TableFactory) {
	l.tableFactory = factory
}

// Shutdown marks the lobby as draining; sessions observe it through
// ShuttingDown.
func (l *Lobby) Shutdown() {
	l.mu.Lock()
	l.shuttingDown = true
	l.mu.Unlock()
}

func (l *Lobby) ShuttingDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shuttingDown
}

// AuthLevel is the authorization policy: the minimum privilege a session
// needs before the dispatcher hands a packet type to its handler.
func (l *Lobby) AuthLevel(t packet.Type) session.Privilege {
	switch t {
	case packet.UpdateMoneyType, packet.HandSelectAllType:
		return session.PrivilegeAdmin
	case packet.PingType, packet.ExplainType, packet.SetLocaleType,
		packet.StatsQueryType, packet.MonitorType,
		packet.LoginType, packet.AuthType, packet.SetRoleType,
		packet.CreateAccountType, packet.QuitType, packet.LogoutType,
		packet.TableSelectType, packet.TourneySelectType,
		packet.TableRequestPlayersListType, packet.TourneyRequestPlayersListType:
		return session.PrivilegeAnonymous
	default:
		return session.PrivilegeRegular
	}
}

func privilegeFor(account *data.Account) session.Privilege {
	if account.PrivilegeLevel >= adminPrivilegeLevel {
		return session.PrivilegeAdmin
	}
	return session.PrivilegeRegular
}

func (l *Lobby) Authenticate(pkt *packet.Packet, roles map[string]bool) (*session.LoginInfo, uint32, string) {
	account, err := VerifyAccount(l.db, pkt.Name, pkt.Password)
	if err != nil {
		l.log.Infof("authentication failed for %s: %v", pkt.Name, err)
		return nil, packet.CodeAuthRefused, err.Error()
	}

	info := &session.LoginInfo{
		Serial:    uint32(account.ID),
		Name:      account.Name,
		Privilege: privilegeFor(account),
	}
	if uint32(account.ID) == l.config.Lobby.AdminSerial {
		info.Privilege = session.PrivilegeAdmin
	}
	return info, 0, ""
}

func (l *Lobby) GetPlayerInfo(serial uint32) (session.PlayerInfo, error) {
	account, err := data.FindAccountByID(l.db, uint64(serial))
	if err != nil {
		return session.PlayerInfo{}, fmt.Errorf("error loading account %d: %w", serial, err)
	}
	if account == nil {
		return session.PlayerInfo{}, fmt.Errorf("no account with serial %d", serial)
	}
	return session.PlayerInfo{
		Serial: serial,
		Name:   account.Name,
		URL:    account.URL,
		Outfit: account.Outfit,
		Locale: account.Locale,
	}, nil
}

func (l *Lobby) AccountPrivilege(serial uint32) session.Privilege {
	if serial == l.config.Lobby.AdminSerial {
		return session.PrivilegeAdmin
	}
	account, err := data.FindAccountByID(l.db, uint64(serial))
	if err != nil || account == nil {
		return session.PrivilegeRegular
	}
	return privilegeFor(account)
}

func (l *Lobby) GetUserInfo(serial uint32) *packet.Packet {
	account, err := data.FindAccountByID(l.db, uint64(serial))
	if err != nil || account == nil {
		return packet.Error(packet.GetUserInfoType, packet.CodeGeneralFailure, "no such user")
	}
	return &packet.Packet{
		Type:   packet.UserInfoType,
		Serial: serial,
		Name:   account.Name,
		URL:    account.URL,
		Outfit: account.Outfit,
	}
}

func (l *Lobby) GetPersonalInfo(serial uint32) *packet.Packet {
	account, err := data.FindAccountByID(l.db, uint64(serial))
	if err != nil || account == nil {
		return packet.Error(packet.GetPersonalInfoType, packet.CodeGeneralFailure, "no such user")
	}
	return &packet.Packet{
		Type:    packet.PersonalInfoType,
		Serial:  serial,
		Name:    account.Name,
		Message: account.Email,
		Locale:  account.Locale,
	}
}

func (l *Lobby) SetPlayerInfo(pkt *packet.Packet) bool {
	account, err := data.FindAccountByID(l.db, uint64(pkt.Serial))
	if err != nil || account == nil {
		return false
	}
	account.URL = pkt.URL
	account.Outfit = pkt.Outfit
	if pkt.Locale != "" {
		account.Locale = pkt.Locale
	}
	if err := data.UpdateAccount(l.db, account); err != nil {
		l.log.Warnf("error saving player info for %d: %v", pkt.Serial, err)
		return false
	}
	return true
}

func (l *Lobby) SetPersonalInfo(pkt *packet.Packet) {
	account, err := data.FindAccountByID(l.db, uint64(pkt.Serial))
	if err != nil || account == nil {
		return
	}
	if pkt.Message != "" {
		account.Email = pkt.Message
	}
	if pkt.Locale != "" {
		account.Locale = pkt.Locale
	}
	if err := data.UpdateAccount(l.db, account); err != nil {
		l.log.Warnf("error saving personal info for %d: %v", pkt.Serial, err)
	}
}

// SetAccount creates an account when the packet carries no serial, and
// updates the profile of an existing one otherwise.
func (l *Lobby) SetAccount(pkt *packet.Packet) *packet.Packet {
	if pkt.Serial == 0 {
		account, err := CreateAccount(l.db, pkt.Name, pkt.Password, pkt.Message)
		if err != nil {
			return packet.Error(packet.SetAccountType, packet.CodeGeneralFailure, "account creation failed")
		}
		return &packet.Packet{Type: packet.PersonalInfoType, Serial: uint32(account.ID), Name: account.Name}
	}

	if !l.SetPlayerInfo(pkt) {
		return packet.Error(packet.SetAccountType, packet.CodeSavePlayerInfoFailed, "failed to save account")
	}
	return l.GetPersonalInfo(pkt.Serial)
}

// GetPlayerPlaces reports where a player currently is: the tables they are
// seated at and the tournaments they registered in.
func (l *Lobby) GetPlayerPlaces(serial uint32) *packet.Packet {
	l.mu.Lock()
	defer l.mu.Unlock()

	places := &packet.Packet{Type: packet.PlayerPlacesType, Serial: serial}
	for gameID, t := range l.tables {
		if t.Game().HasPlayer(serial) {
			places.Serials = append(places.Serials, gameID)
		}
	}
	for _, t := range l.tourneys {
		if t.isRegistered(serial) {
			places.PlayerList = append(places.PlayerList, t.serial)
		}
	}
	return places
}

func (l *Lobby) GetPlayerPlacesByName(name string) *packet.Packet {
	account, err := data.FindAccountByName(l.db, name)
	if err != nil || account == nil {
		return packet.Error(packet.GetPlayerPlacesType, packet.CodeGeneralFailure, "no such player")
	}
	places := l.GetPlayerPlaces(uint32(account.ID))
	places.Name = name
	return places
}

func (l *Lobby) AutoRefill(serial uint32) {
	for _, t := range l.Tables() {
		if t.Game().HasPlayer(serial) {
			t.AutoRefill(serial, t.Game().BestBuyIn())
		}
	}
}

func (l *Lobby) RegisterSession(a *session.Avatar) {
	l.mu.Lock()
	l.sessions[a.Serial()] = a
	l.mu.Unlock()
}

func (l *Lobby) UnregisterSession(a *session.Avatar) {
	l.mu.Lock()
	if l.sessions[a.Serial()] == a {
		delete(l.sessions, a.Serial())
	}
	l.mu.Unlock()
}

// ForceSessionDestroy tears a session down after a fatal internal error. The
// session is disconnected exactly as if its transport had dropped.
func (l *Lobby) ForceSessionDestroy(a *session.Avatar) {
	l.log.Warnf("forcing destruction of session for player %d", a.Serial())
	l.UnregisterSession(a)
	a.ConnectionLost()
}

func (l *Lobby) QueuedPacketMax() int { return l.config.Session.QueuedPacketMax }

func (l *Lobby) LongPollTimeout() time.Duration { return l.config.LongPollTimeout() }

func (l *Lobby) GetTable(gameID uint32) session.Table {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tables[gameID]
}

func (l *Lobby) Tables() map[uint32]session.Table {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := make(map[uint32]session.Table, len(l.tables))
	for id, t := range l.tables {
		snapshot[id] = t
	}
	return snapshot
}

func (l *Lobby) LoadTableConfig(gameID uint32) (*session.TableConfig, bool) {
	stored, err := data.FindTableConfig(l.db, uint64(gameID))
	if err != nil {
		l.log.Warnf("error loading table config %d: %v", gameID, err)
		return nil, false
	}
	if stored == nil {
		return nil, false
	}
	return &session.TableConfig{
		Name:             stored.Name,
		Variant:          stored.Variant,
		BettingStructure: stored.BettingStructure,
		Seats:            stored.Seats,
		PlayerTimeout:    stored.PlayerTimeout,
		MuckTimeout:      stored.MuckTimeout,
		CurrencySerial:   uint32(stored.CurrencySerial),
		Skin:             stored.Skin,
	}, true
}

func (l *Lobby) SpawnTable(gameID uint32, cfg *session.TableConfig) session.Table {
	if l.tableFactory == nil {
		l.log.Warn("cannot spawn table: no table factory installed")
		return nil
	}
	t := l.tableFactory(gameID, cfg)
	if t == nil {
		return nil
	}

	l.mu.Lock()
	l.tables[gameID] = t
	l.mu.Unlock()
	l.log.Infof("spawned table %d (%s/%s)", gameID, cfg.Variant, cfg.BettingStructure)
	return t
}

func (l *Lobby) CreateTable(serial uint32, cfg *session.TableConfig) session.Table {
	if l.tableFactory == nil {
		return nil
	}

	l.mu.Lock()
	gameID := l.nextGameID
	l.nextGameID++
	l.mu.Unlock()

	t := l.SpawnTable(gameID, cfg)
	if t != nil {
		l.log.Infof("player %d created table %d (%s)", serial, gameID, cfg.Name)
	}
	return t
}

// ListTables supports the query forms the table listing understands: empty
// for every table, "my" for tables the player is seated at, and anything
// else as a variant filter.
func (l *Lobby) ListTables(query string, serial uint32) []*packet.Packet {
	var listed []*packet.Packet
	for _, t := range l.Tables() {
		switch {
		case query == "":
		case query == "my":
			if !t.Game().HasPlayer(serial) {
				continue
			}
		default:
			if t.ToPacket().Variant != query {
				continue
			}
		}
		snapshot := t.ToPacket()
		snapshot.Reason = packet.ReasonTableList
		listed = append(listed, snapshot)
	}
	return listed
}

func (l *Lobby) StatsTables() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions), len(l.tables)
}

// RegisterTable exposes an externally constructed table through the lobby.
func (l *Lobby) RegisterTable(t session.Table) {
	l.mu.Lock()
	l.tables[t.GameID()] = t
	l.mu.Unlock()
}

// UnregisterTable drops a table, typically after its destroy broadcast.
func (l *Lobby) UnregisterTable(gameID uint32) {
	l.mu.Lock()
	delete(l.tables, gameID)
	l.mu.Unlock()
}

func (l *Lobby) TourneyByID(tourneySerial uint32) (session.Tourney, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tourneys[tourneySerial]
	if !ok {
		return nil, false
	}
	return t, true
}

func (l *Lobby) TourneySelect(query string) []*packet.Packet {
	l.mu.Lock()
	defer l.mu.Unlock()

	var listed []*packet.Packet
	for _, t := range l.tourneys {
		if query != "" && t.State() != query {
			continue
		}
		listed = append(listed, t.ToPacket())
	}
	return listed
}

func (l *Lobby) TourneySelectInfo(pkt *packet.Packet, tourneys []*packet.Packet) *packet.Packet {
	return nil
}

func (l *Lobby) TourneyPlayersList(tourneySerial uint32) *packet.Packet {
	t, ok := l.TourneyByID(tourneySerial)
	if !ok {
		return packet.Error(packet.TourneyRequestPlayersListType, packet.CodeTourneyDoesNotExist, "tournament does not exist")
	}
	info := t.ToPacket()
	return &packet.Packet{
		Type:          packet.TourneyPlayersListType,
		TourneySerial: tourneySerial,
		PlayerList:    info.PlayerList,
		Registered:    info.Registered,
	}
}

func (l *Lobby) TourneyManager(tourneySerial uint32) *packet.Packet {
	t, ok := l.TourneyByID(tourneySerial)
	if !ok {
		return packet.Error(packet.GetTourneyManagerType, packet.CodeTourneyDoesNotExist, "tournament does not exist")
	}
	info := t.ToPacket()
	info.Type = packet.TourneyManagerType
	return info
}

func (l *Lobby) TourneyPlayerStats(tourneySerial, serial uint32) *packet.Packet {
	l.mu.Lock()
	t, ok := l.tourneys[tourneySerial]
	l.mu.Unlock()
	if !ok {
		return packet.Error(packet.GetTourneyPlayerStatsType, packet.CodeTourneyDoesNotExist, "tournament does not exist")
	}
	pkt := &packet.Packet{
		Type:          packet.TourneyPlayerStatsType,
		TourneySerial: tourneySerial,
		Serial:        serial,
	}
	if !t.isRegistered(serial) {
		pkt.Message = "not registered"
	}
	return pkt
}

func (l *Lobby) TourneyCreate(pkt *packet.Packet) *packet.Packet {
	l.mu.Lock()
	serial := l.nextTourney
	l.nextTourney++
	t := &tourney{
		serial:       serial,
		name:         pkt.Name,
		description:  pkt.Message,
		state:        packet.TourneyStateRegistering,
		bailorSerial: pkt.Serial,
		playersQuota: pkt.PlayersQuota,
		buyIn:        pkt.Amount,
	}
	l.tourneys[serial] = t
	l.mu.Unlock()

	l.log.Infof("player %d created tournament %d (%s)", pkt.Serial, serial, pkt.Name)
	return t.ToPacket()
}

func (l *Lobby) TourneyRegister(pkt *packet.Packet) bool {
	l.mu.Lock()
	t, ok := l.tourneys[pkt.TourneySerial]
	l.mu.Unlock()
	if !ok {
		return false
	}
	return t.register(pkt.Serial)
}

func (l *Lobby) TourneyUnregister(pkt *packet.Packet) *packet.Packet {
	l.mu.Lock()
	t, ok := l.tourneys[pkt.TourneySerial]
	l.mu.Unlock()
	if !ok {
		return packet.Error(packet.TourneyUnregisterType, packet.CodeTourneyDoesNotExist, "tournament does not exist")
	}
	if !t.unregister(pkt.Serial) {
		return packet.Error(packet.TourneyUnregisterType, packet.CodeTourneyWrongState, "registration is closed")
	}
	return pkt
}

func (l *Lobby) TourneyStart(t session.Tourney) *packet.Packet {
	if t.Registered() < 2 {
		return packet.Error(packet.TourneyStartType, packet.CodeNotEnoughUsers, "not enough registered players")
	}
	t.ChangeState(packet.TourneyStateRunning)
	return t.ToPacket()
}

func (l *Lobby) TourneyRebuyRequest(tourneySerial, serial uint32) (bool, uint32) {
	l.mu.Lock()
	t, ok := l.tourneys[tourneySerial]
	l.mu.Unlock()
	if !ok {
		return false, packet.CodeTourneyDoesNotExist
	}
	if t.State() != packet.TourneyStateRunning || !t.isRegistered(serial) {
		return false, packet.CodeTourneyWrongState
	}
	return true, 0
}

// Cash operations acknowledge and log. Money accounting lives outside the
// session core; a deployment wires a real cashier behind these.
func (l *Lobby) CashIn(pkt *packet.Packet) *packet.Packet {
	l.log.Infof("cash in of %d for player %d", pkt.Amount, pkt.Serial)
	return packet.Ack()
}

func (l *Lobby) CashOut(pkt *packet.Packet) *packet.Packet {
	l.log.Infof("cash out of %d for player %d", pkt.Amount, pkt.Serial)
	return packet.Ack()
}

func (l *Lobby) CashQuery(pkt *packet.Packet) *packet.Packet { return packet.Ack() }

func (l *Lobby) CashOutCommit(pkt *packet.Packet) *packet.Packet { return packet.Ack() }

func (l *Lobby) Stats(query string) *packet.Packet {
	players, tables := l.StatsTables()
	return &packet.Packet{Type: packet.StatsType, Players: players, Tables: tables}
}

func (l *Lobby) Monitor(a *session.Avatar) *packet.Packet {
	players, tables := l.StatsTables()
	return &packet.Packet{
		Type:    packet.MonitorEventType,
		Serial:  a.Serial(),
		Players: players,
		Tables:  tables,
	}
}

func (l *Lobby) ListHands(serial uint32, all bool, query string, start, count int) (int, []uint32) {
	player := uint64(serial)
	if all {
		player = 0
	}
	total, serials, err := data.ListHands(l.db, player, query, start, count)
	if err != nil {
		l.log.Warnf("error listing hands for %d: %v", serial, err)
		return 0, nil
	}

	hands := make([]uint32, 0, len(serials))
	for _, s := range serials {
		hands = append(hands, uint32(s))
	}
	return total, hands
}

func (l *Lobby) GetHandHistory(gameID, serial uint32) *packet.Packet {
	hist, ok := l.LoadHand(gameID)
	if !ok {
		return packet.Error(packet.HandHistoryType, packet.CodeHandNotFound, "hand not found")
	}
	return &packet.Packet{
		Type:             packet.HandHistoryType,
		GameID:           gameID,
		Serial:           serial,
		Variant:          hist.Variant,
		BettingStructure: hist.BettingStructure,
		PlayerList:       hist.PlayerList,
		Packets:          hist.Packets,
	}
}

func (l *Lobby) LoadHand(handSerial uint32) (*session.HandHistory, bool) {
	hand, err := data.FindHandBySerial(l.db, uint64(handSerial))
	if err != nil {
		l.log.Warnf("error loading hand %d: %v", handSerial, err)
		return nil, false
	}
	if hand == nil {
		return nil, false
	}

	players, err := data.FindHandPlayers(l.db, hand.Serial)
	if err != nil {
		l.log.Warnf("error loading players of hand %d: %v", handSerial, err)
		return nil, false
	}

	hist := &session.HandHistory{
		HandSerial:       handSerial,
		Variant:          hand.Variant,
		BettingStructure: hand.BettingStructure,
	}
	for _, p := range players {
		hist.PlayerList = append(hist.PlayerList, uint32(p))
	}
	if len(hand.Chips) > 0 {
		if err := json.Unmarshal(hand.Chips, &hist.Chips); err != nil {
			l.log.Warnf("malformed chips blob in hand %d: %v", handSerial, err)
			return nil, false
		}
	}
	if len(hand.Pockets) > 0 {
		if err := json.Unmarshal(hand.Pockets, &hist.Pockets); err != nil {
			l.log.Warnf("malformed pockets blob in hand %d: %v", handSerial, err)
			return nil, false
		}
	}
	if len(hand.Packets) > 0 {
		if err := json.Unmarshal(hand.Packets, &hist.Packets); err != nil {
			l.log.Warnf("malformed packet blob in hand %d: %v", handSerial, err)
			return nil, false
		}
	}
	return hist, true
}

func (l *Lobby) GetNames(serials []uint32) map[uint32]string {
	ids := make([]uint64, 0, len(serials))
	for _, s := range serials {
		ids = append(ids, uint64(s))
	}

	accounts, err := data.FindAccountsByID(l.db, ids)
	if err != nil {
		l.log.Warnf("error loading account names: %v", err)
		return map[uint32]string{}
	}

	names := make(map[uint32]string, len(accounts))
	for id, account := range accounts {
		names[uint32(id)] = account.Name
	}
	return names
}

// PacketToRemoteHost resolves the process owning the table a packet
// addresses. Locally hosted tables, packets without a game, and the
// long-poll pull are always handled locally.
func (l *Lobby) PacketToRemoteHost(pkt *packet.Packet) (*session.RemoteHost, uint32) {
	if !pkt.HasGame() || pkt.Type == packet.LongPollType || pkt.Type == packet.LongPollReturnType {
		return nil, 0
	}
	if l.GetTable(pkt.GameID) != nil {
		return nil, 0
	}

	if cached, ok := l.locations.Get(locationKey(pkt.GameID)); ok {
		host := cached.(session.RemoteHost)
		return &host, pkt.GameID
	}
	return nil, 0
}

// SetTableLocation records which remote process owns a table. Entries expire
// after the configured TTL so moved tables are re-resolved.
func (l *Lobby) SetTableLocation(gameID uint32, host session.RemoteHost) {
	l.locations.Set(locationKey(gameID), host, cache.DefaultExpiration)
}

func locationKey(gameID uint32) string {
	return fmt.Sprintf("table-%d", gameID)
}
