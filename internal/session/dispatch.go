package session

import (
	"sort"
	"strings"

	"github.com/cardroom/cardroom/internal/packet"
)

// handlerEntry describes how the dispatcher treats one packet type.
type handlerEntry struct {
	// skipAuth exempts the packet from the privilege check; the handler is
	// reachable by anonymous sessions regardless of policy.
	skipAuth bool
	// checkOwner requires the packet's Serial to match the session's. A
	// serial of zero means "self" and is filled in before the check.
	checkOwner bool
	// onOwnerReject, when set, produces a reply for a failed ownership
	// check. The default is to log and drop.
	onOwnerReject func(a *Avatar, pkt *packet.Packet)
	// needsTable resolves the joined table the packet addresses before
	// calling handleTable, and runs the table's state machine afterwards.
	needsTable  bool
	handle      func(a *Avatar, pkt *packet.Packet)
	handleTable func(a *Avatar, t Table, pkt *packet.Packet)
}

var dispatchTable map[packet.Type]handlerEntry

func init() {
	dispatchTable = map[packet.Type]handlerEntry{
		packet.PingType:    {skipAuth: true, handle: func(a *Avatar, pkt *packet.Packet) {}},
		packet.LoginType:   {skipAuth: true, handle: (*Avatar).handleAuth},
		packet.AuthType:    {skipAuth: true, handle: (*Avatar).handleAuth},
		packet.SetRoleType: {skipAuth: true, handle: (*Avatar).handleSetRole},
		packet.ExplainType: {skipAuth: true, handle: (*Avatar).handleExplain},
		packet.SetLocaleType: {skipAuth: true, handle: func(a *Avatar, pkt *packet.Packet) {
			if !a.SetLocale(pkt.Locale) {
				a.sendPacketVerbose(packet.Error(packet.SetLocaleType, packet.CodeNotAvailable, "no such locale"))
				return
			}
			a.sendPacketVerbose(packet.Ack())
		}},
		packet.QuitType:   {skipAuth: true, handle: (*Avatar).handleQuit},
		packet.LogoutType: {skipAuth: true, handle: (*Avatar).handleLogout},

		packet.StatsQueryType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.Stats(pkt.Query))
		}},
		packet.MonitorType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.Monitor(a))
		}},

		// Player and account state.
		packet.GetPlayerInfoType: {handle: (*Avatar).handleGetPlayerInfo},
		packet.PlayerInfoType:    {checkOwner: true, handle: (*Avatar).handleSetPlayerInfo},
		packet.GetUserInfoType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendUserInfo(pkt.Serial)
		}},
		packet.GetPersonalInfoType: {
			checkOwner: true,
			onOwnerReject: func(a *Avatar, pkt *packet.Packet) {
				a.sendPacketVerbose(packet.Error(packet.GetPersonalInfoType, packet.CodeGeneralFailure, "not your personal information"))
			},
			handle: (*Avatar).handleGetPersonalInfo,
		},
		packet.PersonalInfoType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.service.SetPersonalInfo(pkt)
			a.sendPacketVerbose(packet.Ack())
		}},
		packet.SetAccountType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.SetAccount(pkt))
		}},
		packet.CreateAccountType: {skipAuth: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.SetAccount(pkt))
		}},
		packet.GetPlayerPlacesType: {handle: (*Avatar).handleGetPlayerPlaces},

		// Cash operations are pass-throughs to the service.
		packet.CashInType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.CashIn(pkt))
		}},
		packet.CashOutType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.CashOut(pkt))
		}},
		packet.CashQueryType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.CashQuery(pkt))
		}},
		packet.CashOutCommitType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.CashOutCommit(pkt))
		}},

		// Tournaments.
		packet.TourneySelectType: {handle: (*Avatar).handleTourneySelect},
		packet.TourneyRequestPlayersListType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.TourneyPlayersList(pkt.TourneySerial))
		}},
		packet.GetTourneyManagerType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.TourneyManager(pkt.TourneySerial))
		}},
		packet.GetTourneyPlayerStatsType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.TourneyPlayerStats(pkt.TourneySerial, pkt.Serial))
		}},
		packet.TourneyRegisterType:   {checkOwner: true, handle: (*Avatar).handleTourneyRegister},
		packet.TourneyUnregisterType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.TourneyUnregister(pkt))
		}},
		packet.TourneyRebuyType:  {checkOwner: true, handle: (*Avatar).handleTourneyRebuy},
		packet.CreateTourneyType: {handle: (*Avatar).handleTourneyCreate},
		packet.TourneyStartType:  {handle: (*Avatar).handleTourneyStart},
		packet.TourneyCancelType: {handle: (*Avatar).handleTourneyCancel},

		// Table lifecycle.
		packet.TableSelectType: {handle: (*Avatar).handleTableSelect},
		packet.TableJoinType:   {handle: (*Avatar).handleTableJoin},
		packet.TableMoveType:   {checkOwner: true, handle: (*Avatar).handleTableMove},
		packet.TableType:       {handle: (*Avatar).handleTableCreate},
		packet.TablePickerType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(packet.Error(packet.TablePickerType, packet.CodeNotAvailable, "table picker not available"))
		}},
		packet.TableRequestPlayersListType: {handle: (*Avatar).handleTablePlayersList},
		packet.TableQuitType: {needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.QuitPlayer(a)
		}},

		// Hand history.
		packet.HandSelectType:    {handle: (*Avatar).handleHandSelect},
		packet.HandSelectAllType: {handle: (*Avatar).handleHandSelectAll},
		packet.HandHistoryType: {checkOwner: true, handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(a.service.GetHandHistory(pkt.GameID, pkt.Serial))
		}},
		packet.HandReplayType: {handle: (*Avatar).handleHandReplay},

		packet.UpdateMoneyType: {handle: (*Avatar).handleUpdateMoney},
		packet.SetOptionType:   {checkOwner: true, needsTable: true, handleTable: (*Avatar).handleSetOption},

		packet.StartType: {handle: func(a *Avatar, pkt *packet.Packet) {
			a.sendPacketVerbose(packet.Error(packet.StartType, packet.CodeNotAvailable, "hands are started by the server"))
		}},

		// Table-scoped player actions.
		packet.SeatType:  {checkOwner: true, needsTable: true, handleTable: (*Avatar).handleSeat},
		packet.BuyInType: {checkOwner: true, needsTable: true, handleTable: (*Avatar).handleBuyIn},
		packet.RebuyType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			a.service.AutoRefill(pkt.Serial)
			t.RebuyPlayerRequest(pkt.Serial, pkt.Amount)
			a.sendPacketVerbose(packet.Ack())
		}},
		packet.SitType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.SitPlayer(a)
		}},
		packet.SitOutType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.SitOutPlayer(a)
		}},
		packet.PlayerLeaveType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.LeavePlayer(a)
		}},
		packet.ChatType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.ChatPlayer(a, pkt.Message)
		}},
		packet.AutoBlindAnteType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.AutoBlindAnte(a, true)
		}},
		packet.NoautoBlindAnteType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.AutoBlindAnte(a, false)
		}},
		packet.AutoMuckType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().AutoMuck(pkt.Serial, pkt.Value)
		}},
		packet.MuckAcceptType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.MuckAccept(a)
		}},
		packet.MuckDenyType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.MuckDeny(a)
		}},
		packet.AutoPlayType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().AutoPlay(pkt.Serial, pkt.Value != 0)
		}},
		packet.ReadyToPlayType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			a.sendPacketVerbose(t.ReadyToPlay(pkt.Serial))
		}},
		packet.ProcessingHandType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			a.sendPacketVerbose(t.ProcessingHand(pkt.Serial))
		}},
		packet.LookCardsType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Broadcast(pkt)
		}},

		// Betting round actions.
		packet.FoldType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().Fold(pkt.Serial)
		}},
		packet.CallType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().Call(pkt.Serial)
		}},
		packet.RaiseType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().CallNRaise(pkt.Serial, pkt.Amount)
		}},
		packet.CheckType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().Check(pkt.Serial)
		}},
		packet.BlindType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().Blind(pkt.Serial)
		}},
		packet.AnteType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().Ante(pkt.Serial)
		}},
		packet.WaitBigBlindType: {checkOwner: true, needsTable: true, handleTable: func(a *Avatar, t Table, pkt *packet.Packet) {
			t.Game().WaitBigBlind(pkt.Serial)
		}},
	}
}

// dispatch routes one inbound packet to its handler. Unknown packet types are
// logged and dropped so protocol extensions never break older servers.
func (a *Avatar) dispatch(pkt *packet.Packet) {
	entry, known := dispatchTable[pkt.Type]
	if !known {
		a.log().Debugf("ignoring unknown packet type %d", pkt.Type)
		return
	}

	if !entry.skipAuth && !a.isAuthorized(pkt.Type) {
		a.sendPacketVerbose(packet.AuthRequest())
		return
	}

	if entry.checkOwner {
		serial := a.Serial()
		if pkt.Serial == 0 {
			pkt.Serial = serial
		}
		if pkt.Serial != serial {
			a.log().Infof("attempt to act on behalf of player %d by player %d (packet type %d)",
				pkt.Serial, serial, pkt.Type)
			if entry.onOwnerReject != nil {
				entry.onOwnerReject(a, pkt)
			}
			return
		}
	}

	if entry.needsTable {
		t := a.packetTable(pkt)
		if t == nil {
			a.log().Infof("packet type %d for game %d ignored: table not joined", pkt.Type, pkt.GameID)
			return
		}
		entry.handleTable(a, t, pkt)
		t.Update()
		return
	}

	entry.handle(a, pkt)
}

func (a *Avatar) handleAuth(pkt *packet.Packet) {
	if a.IsLogged() {
		a.sendPacketVerbose(packet.Error(pkt.Type, packet.CodeAlreadyLogged, "already logged in"))
		return
	}

	a.mu.Lock()
	roles := make(map[string]bool, len(a.roles))
	for r, v := range a.roles {
		roles[r] = v
	}
	a.mu.Unlock()

	info, code, reason := a.service.Authenticate(pkt, roles)
	if info == nil {
		a.sendPacketVerbose(&packet.Packet{Type: packet.AuthRefusedType, Code: code, Message: reason})
		return
	}
	a.login(info)
	a.sendPacketVerbose(&packet.Packet{Type: packet.AuthOkType, Serial: info.Serial, Name: info.Name})
}

func (a *Avatar) handleSetRole(pkt *packet.Packet) {
	if !packet.ValidRole(pkt.Roles) {
		a.sendPacketVerbose(packet.Error(packet.SetRoleType, packet.CodeUnknownRole, "role does not exist: "+pkt.Roles))
		return
	}
	a.mu.Lock()
	claimed := a.roles[pkt.Roles]
	if !claimed {
		a.roles[pkt.Roles] = true
	}
	names := make([]string, 0, len(a.roles))
	for r := range a.roles {
		names = append(names, r)
	}
	a.mu.Unlock()
	if claimed {
		a.sendPacketVerbose(packet.Error(packet.SetRoleType, packet.CodeRoleNotAvailable, "role already claimed: "+pkt.Roles))
		return
	}
	sort.Strings(names)
	a.sendPacketVerbose(&packet.Packet{
		Type:   packet.RolesType,
		Serial: a.Serial(),
		Roles:  strings.Join(names, " "),
	})
}

func (a *Avatar) handleExplain(pkt *packet.Packet) {
	if !a.SetExplain(pkt.Value != 0) {
		a.sendPacketVerbose(packet.Error(packet.ExplainType, packet.CodeNotAvailable, "explain must be enabled before joining tables"))
		return
	}
	a.sendPacketVerbose(packet.Ack())
}

func (a *Avatar) handleQuit(pkt *packet.Packet) {
	for _, t := range a.Tables() {
		t.QuitPlayer(a)
	}
	a.sendPacketVerbose(packet.Ack())
}

func (a *Avatar) handleLogout(pkt *packet.Packet) {
	if !a.IsLogged() {
		a.sendPacketVerbose(packet.Error(packet.LogoutType, packet.CodeNotLoggedIn, "not logged in"))
		return
	}
	for _, t := range a.Tables() {
		t.QuitPlayer(a)
	}
	a.Logout()
	a.sendPacketVerbose(packet.Ack())
}

func (a *Avatar) handleGetPlayerInfo(pkt *packet.Packet) {
	u := a.User()
	if !u.IsLogged() {
		a.sendPacketVerbose(packet.Error(packet.GetPlayerInfoType, packet.CodeNotLoggedIn, "not logged in"))
		return
	}
	a.sendPacketVerbose(&packet.Packet{
		Type:   packet.PlayerInfoType,
		Serial: u.Serial,
		Name:   u.Name,
		URL:    u.URL,
		Outfit: u.Outfit,
	})
}

func (a *Avatar) handleSetPlayerInfo(pkt *packet.Packet) {
	if !a.service.SetPlayerInfo(pkt) {
		a.sendPacketVerbose(packet.Error(packet.PlayerInfoType, packet.CodeSavePlayerInfoFailed, "failed to save player information"))
		return
	}
	a.mu.Lock()
	a.user.URL = pkt.URL
	a.user.Outfit = pkt.Outfit
	a.mu.Unlock()
	a.sendPacketVerbose(pkt)
}

// sendUserInfo tops the account up if auto refill is enabled, then sends the
// refreshed user info so the client sees the post-refill balance.
func (a *Avatar) sendUserInfo(serial uint32) {
	a.service.AutoRefill(serial)
	a.sendPacketVerbose(a.service.GetUserInfo(serial))
}

func (a *Avatar) handleGetPersonalInfo(pkt *packet.Packet) {
	a.service.AutoRefill(pkt.Serial)
	info := a.service.GetPersonalInfo(pkt.Serial)
	a.mu.Lock()
	a.personalInfo = info
	a.mu.Unlock()
	a.sendPacketVerbose(info)
}

func (a *Avatar) handleGetPlayerPlaces(pkt *packet.Packet) {
	if pkt.Name != "" {
		a.sendPacketVerbose(a.service.GetPlayerPlacesByName(pkt.Name))
		return
	}
	serial := pkt.Serial
	if serial == 0 {
		serial = a.Serial()
	}
	a.sendPacketVerbose(a.service.GetPlayerPlaces(serial))
}

func (a *Avatar) handleTourneySelect(pkt *packet.Packet) {
	tourneys := a.service.TourneySelect(pkt.Query)
	a.sendPacketVerbose(&packet.Packet{Type: packet.TourneyListType, Packets: tourneys})
	if info := a.service.TourneySelectInfo(pkt, tourneys); info != nil {
		a.sendPacketVerbose(info)
	}
}

func (a *Avatar) handleTourneyRegister(pkt *packet.Packet) {
	a.service.AutoRefill(pkt.Serial)
	if a.service.TourneyRegister(pkt) {
		a.sendPacketVerbose(pkt)
		a.tourneyUpdates(pkt.Serial)
	}
}

func (a *Avatar) handleTourneyRebuy(pkt *packet.Packet) {
	ok, code := a.service.TourneyRebuyRequest(pkt.TourneySerial, pkt.Serial)
	if !ok {
		a.sendPacketVerbose(packet.Error(packet.TourneyRebuyType, code, "rebuy refused"))
		return
	}
	a.sendPacketVerbose(packet.Ack())
}

func (a *Avatar) handleTourneyCreate(pkt *packet.Packet) {
	if pkt.PlayersQuota < 2 {
		a.sendPacketVerbose(packet.Error(packet.CreateTourneyType, packet.CodeNotEnoughUsers, "tournaments need at least 2 players"))
		return
	}
	a.sendPacketVerbose(a.service.TourneyCreate(pkt))
}

// canPerformTourneyChanges validates a start or cancel request: the
// tournament must exist, still be registering, and the requester must be its
// bailor or an administrator. Returns nil and replies with an error packet
// otherwise.
func (a *Avatar) canPerformTourneyChanges(other packet.Type, tourneySerial uint32) Tourney {
	t, ok := a.service.TourneyByID(tourneySerial)
	if !ok {
		a.sendPacketVerbose(packet.Error(other, packet.CodeTourneyDoesNotExist, "tournament does not exist"))
		return nil
	}
	if t.State() != packet.TourneyStateRegistering {
		a.sendPacketVerbose(packet.Error(other, packet.CodeTourneyWrongState, "tournament is not in the registering state"))
		return nil
	}
	u := a.User()
	if t.BailorSerial() != u.Serial && !u.HasPrivilege(PrivilegeAdmin) {
		a.sendPacketVerbose(packet.Error(other, packet.CodeNotBailor, "only the tournament bailor can do this"))
		return nil
	}
	return t
}

func (a *Avatar) handleTourneyStart(pkt *packet.Packet) {
	t := a.canPerformTourneyChanges(packet.TourneyStartType, pkt.TourneySerial)
	if t == nil {
		return
	}
	a.sendPacketVerbose(a.service.TourneyStart(t))
}

func (a *Avatar) handleTourneyCancel(pkt *packet.Packet) {
	t := a.canPerformTourneyChanges(packet.TourneyCancelType, pkt.TourneySerial)
	if t == nil {
		return
	}
	t.ChangeState(packet.TourneyStateCanceled)
	a.sendPacketVerbose(packet.Ack())
}

func (a *Avatar) handleTableSelect(pkt *packet.Packet) {
	tables := a.service.ListTables(pkt.Query, a.Serial())
	players, count := a.service.StatsTables()
	a.sendPacketVerbose(&packet.Packet{
		Type:    packet.TableListType,
		Players: players,
		Tables:  count,
		Packets: tables,
	})
}

func (a *Avatar) handleTableJoin(pkt *packet.Packet) {
	a.performTableJoin(packet.TableJoinType, pkt.GameID)
}

// performTableJoin resolves the target table, spawning it from a stored
// configuration when the service knows about it but has not instantiated it
// yet, then joins. Stale queued packets for the game are discarded first so
// the replayed snapshot is not preceded by outdated state.
func (a *Avatar) performTableJoin(other packet.Type, gameID uint32) {
	t := a.service.GetTable(gameID)
	if t == nil {
		if cfg, ok := a.service.LoadTableConfig(gameID); ok {
			t = a.service.SpawnTable(gameID, cfg)
		}
	}
	if t == nil {
		// The client may have missed a table move. If a local table already
		// seats the player, redirect instead of failing.
		serial := a.Serial()
		for id, candidate := range a.service.Tables() {
			if candidate.Game().HasPlayer(serial) {
				a.sendPacketVerbose(&packet.Packet{
					Type:     packet.TableMoveType,
					Serial:   serial,
					GameID:   gameID,
					ToGameID: id,
				})
				return
			}
		}
		a.sendPacketVerbose(packet.Error(other, packet.CodeTableDoesNotExist, "table does not exist"))
		return
	}

	a.RemoveGamePackets(gameID)
	if !t.JoinPlayer(a, packet.ReasonTableJoin) {
		a.sendPacketVerbose(&packet.Packet{
			Type:      packet.ErrorType,
			OtherType: other,
			GameID:    gameID,
			Serial:    a.Serial(),
			Code:      packet.CodeGeneralFailure,
			Message:   "unable to join table",
		})
		return
	}
	if t.Game().IsAuto(a.Serial()) {
		a.sendPacketVerbose(&packet.Packet{Type: packet.AutoFoldType, Serial: a.Serial()})
	}
	t.Update()
}

func (a *Avatar) handleTableMove(pkt *packet.Packet) {
	if from := a.packetTable(pkt); from != nil {
		from.QuitPlayer(a)
		from.Update()
	}
	a.performTableJoin(packet.TableMoveType, pkt.ToGameID)
}

func (a *Avatar) handleTableCreate(pkt *packet.Packet) {
	cfg := &TableConfig{
		Name:             pkt.Name,
		Variant:          pkt.Variant,
		BettingStructure: pkt.BettingStructure,
		Seats:            pkt.Seats,
		PlayerTimeout:    pkt.PlayerTimeout,
		MuckTimeout:      pkt.MuckTimeout,
		CurrencySerial:   pkt.CurrencySerial,
		Skin:             pkt.Skin,
		Reason:           packet.ReasonTableCreate,
	}
	t := a.service.CreateTable(a.Serial(), cfg)
	if t == nil {
		a.sendPacketVerbose(packet.Error(packet.TableType, packet.CodeNotAvailable, "table creation refused"))
		return
	}
	t.JoinPlayer(a, packet.ReasonTableCreate)
	t.Update()
}

func (a *Avatar) handleTablePlayersList(pkt *packet.Packet) {
	t := a.service.GetTable(pkt.GameID)
	if t == nil {
		a.sendPacketVerbose(packet.Error(packet.TableRequestPlayersListType, packet.CodeTableDoesNotExist, "table does not exist"))
		return
	}
	a.sendPacketVerbose(&packet.Packet{
		Type:    packet.PlayersListType,
		GameID:  pkt.GameID,
		Packets: t.ListPlayers(),
	})
}

// maxHandListCount bounds one page of a hand listing.
const maxHandListCount = 200

func (a *Avatar) handleHandSelect(pkt *packet.Packet) {
	a.performHandSelect(pkt, false)
}

func (a *Avatar) handleHandSelectAll(pkt *packet.Packet) {
	a.performHandSelect(pkt, true)
}

func (a *Avatar) performHandSelect(pkt *packet.Packet, all bool) {
	count := pkt.Count
	if count <= 0 || count > maxHandListCount {
		count = maxHandListCount
	}
	total, hands := a.service.ListHands(a.Serial(), all, pkt.Query, pkt.Start, count)
	a.sendPacketVerbose(&packet.Packet{
		Type:  packet.HandListType,
		Query: pkt.Query,
		Start: pkt.Start,
		Count: count,
		Total: total,
		Hands: hands,
	})
}

// replaySeats is the seat count announced for replayed hands.
const replaySeats = 10

// handleHandReplay replays a stored hand as a synthetic table stream. Pockets
// belonging to other players are masked unless the viewer is an
// administrator.
func (a *Avatar) handleHandReplay(pkt *packet.Packet) {
	hist, ok := a.service.LoadHand(pkt.GameID)
	if !ok {
		a.sendPacketVerbose(packet.Error(packet.HandReplayType, packet.CodeHandNotFound, "hand not found"))
		return
	}

	u := a.User()
	names := a.service.GetNames(hist.PlayerList)

	a.sendPacketVerbose(&packet.Packet{
		Type:             packet.TableType,
		GameID:           pkt.GameID,
		Name:             "*REPLAY*",
		Variant:          hist.Variant,
		BettingStructure: hist.BettingStructure,
		Seats:            replaySeats,
		Reason:           packet.ReasonHandReplay,
	})
	for _, serial := range hist.PlayerList {
		a.sendPacketVerbose(&packet.Packet{
			Type:   packet.PlayerArriveType,
			GameID: pkt.GameID,
			Serial: serial,
			Name:   names[serial],
		})
		a.sendPacketVerbose(&packet.Packet{
			Type:   packet.PlayerChipsType,
			GameID: pkt.GameID,
			Serial: serial,
			Money:  hist.Chips[serial],
		})
		a.sendPacketVerbose(&packet.Packet{Type: packet.SitType, GameID: pkt.GameID, Serial: serial})
	}

	for _, p := range hist.Packets {
		switch p.Type {
		case packet.PlayerLeaveType:
			// Departures would truncate the replay client side.
			continue
		case packet.PlayerCardsType:
			if p.Serial != u.Serial && !u.HasPrivilege(PrivilegeAdmin) {
				masked := *p
				masked.Cards = privateToPublic(p.Cards)
				a.sendPacketVerbose(&masked)
				continue
			}
		}
		a.sendPacketVerbose(p)
	}
	a.sendPacketVerbose(&packet.Packet{Type: packet.TableDestroyType, GameID: pkt.GameID})
}

// privateToPublic replaces card values with the face-down placeholder.
func privateToPublic(cards []byte) []byte {
	public := make([]byte, len(cards))
	for i := range public {
		public[i] = 255
	}
	return public
}

func (a *Avatar) handleUpdateMoney(pkt *packet.Packet) {
	t := a.service.GetTable(pkt.GameID)
	if t == nil {
		a.sendPacketVerbose(packet.Error(packet.UpdateMoneyType, packet.CodeNoTable, "no such table"))
		return
	}
	if len(pkt.Serials) == 0 || len(pkt.Serials) != len(pkt.Chips) {
		a.sendPacketVerbose(packet.Error(packet.UpdateMoneyType, packet.CodeSerialsChipsMismatch, "serials and chips lists do not match"))
		return
	}
	if !t.UpdatePlayersMoney(pkt.Serials, pkt.Chips, pkt.Absolute) {
		a.sendPacketVerbose(packet.Error(packet.UpdateMoneyType, packet.CodeUpdateMoneyFailed, "money update refused"))
		return
	}
	a.sendPacketVerbose(packet.Ack())
	t.Update()
}

func (a *Avatar) handleSetOption(t Table, pkt *packet.Packet) {
	switch pkt.OptionID {
	case packet.OptionAutoRefill:
		if pkt.Value < 0 || pkt.Value > 3 {
			a.sendPacketVerbose(packet.Error(packet.SetOptionType, packet.CodeWrongOptionValue, "auto refill value out of range"))
			return
		}
		t.AutoRefill(pkt.Serial, pkt.Value)
	case packet.OptionAutoRebuy:
		if pkt.Value < 0 || pkt.Value > 3 {
			a.sendPacketVerbose(packet.Error(packet.SetOptionType, packet.CodeWrongOptionValue, "auto rebuy value out of range"))
			return
		}
		t.AutoRebuy(pkt.Serial, pkt.Value)
	case packet.OptionAutoMuck:
		if pkt.Value < 0 || pkt.Value > 3 {
			a.sendPacketVerbose(packet.Error(packet.SetOptionType, packet.CodeWrongOptionValue, "auto muck value out of range"))
			return
		}
		t.Game().AutoMuck(pkt.Serial, pkt.Value)
	case packet.OptionAutoBlindAnte:
		if pkt.Value != 0 && pkt.Value != 1 {
			a.sendPacketVerbose(packet.Error(packet.SetOptionType, packet.CodeWrongOptionValue, "auto blind/ante must be 0 or 1"))
			return
		}
		t.AutoBlindAnte(a, pkt.Value == 1)
	default:
		a.sendPacketVerbose(packet.Error(packet.SetOptionType, packet.CodeUnknownOption, "unknown option"))
		return
	}
	a.sendPacketVerbose(packet.Ack())
}

// handleSeat attempts the seat and always echoes the outcome: the packet
// comes back with the granted seat, or with seat -1 when the table refused.
func (a *Avatar) handleSeat(t Table, pkt *packet.Packet) {
	if !a.HasRole(packet.RolePlay) {
		a.sendPacketVerbose(packet.Error(packet.SeatType, packet.CodeRolePlayRequired, "getting a seat requires the PLAY role"))
		return
	}
	if !t.SeatPlayer(a, pkt.Seat) {
		pkt.Seat = -1
	}
	a.sendUserInfo(pkt.Serial)
	a.sendPacketVerbose(pkt)
}

func (a *Avatar) handleBuyIn(t Table, pkt *packet.Packet) {
	a.service.AutoRefill(pkt.Serial)
	if !t.BuyInPlayer(a, pkt.Amount) {
		a.sendPacketVerbose(&packet.Packet{
			Type:      packet.ErrorType,
			OtherType: packet.BuyInType,
			GameID:    pkt.GameID,
			Serial:    pkt.Serial,
			Code:      packet.CodeGeneralFailure,
			Message:   "buy in refused",
		})
	}
}
