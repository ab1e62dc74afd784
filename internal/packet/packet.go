// Package packet defines the protocol packet catalogue shared by the session
// core, the lobby service, and the distributed routing layer.
//
// A packet is a flat tagged record: the Type field selects the operation and
// every other field is optional, read or written only by the operations that
// care about it. The envelope is deliberately schemaless beyond Type, GameID
// and Serial so that unknown packet types can flow through the server without
// breaking anything.
package packet

// Type identifies the operation a packet requests or reports.
type Type uint16

const (
	NoneType Type = iota
	ErrorType
	AckType
	PingType
	SerialType
	QuitType
	LoginType
	AuthType
	LogoutType
	AuthOkType
	AuthRefusedType
	AuthRequestType

	ExplainType
	SetLocaleType
	StatsQueryType
	StatsType
	MonitorType
	MonitorEventType

	GetPlayerPlacesType
	PlayerPlacesType
	GetPlayerInfoType
	PlayerInfoType
	GetUserInfoType
	UserInfoType
	GetPersonalInfoType
	PersonalInfoType
	SetOptionType
	SetAccountType
	CreateAccountType
	SetRoleType
	RolesType

	CashInType
	CashOutType
	CashQueryType
	CashOutCommitType

	TourneySelectType
	TourneyType
	TourneyListType
	TourneyRequestPlayersListType
	TourneyPlayersListType
	GetTourneyManagerType
	TourneyManagerType
	GetTourneyPlayerStatsType
	TourneyPlayerStatsType
	TourneyRegisterType
	TourneyUnregisterType
	TourneyRebuyType
	TourneyStartType
	TourneyCancelType
	CreateTourneyType

	TableSelectType
	TableType
	TableListType
	TableJoinType
	TablePickerType
	TableMoveType
	TableDestroyType
	TableQuitType
	TableRequestPlayersListType
	PlayersListType

	HandSelectType
	HandSelectAllType
	HandListType
	HandHistoryType
	HandReplayType

	UpdateMoneyType
	ReadyToPlayType
	ProcessingHandType
	StartType
	SeatType
	SeatsType
	BuyInType
	BuyInLimitsType
	RebuyType
	ChatType
	PlayerLeaveType
	SitType
	SitOutType
	AutoBlindAnteType
	NoautoBlindAnteType
	AutoMuckType
	MuckAcceptType
	MuckDenyType
	AutoPlayType
	AutoFoldType
	BlindType
	BlindRequestType
	WaitBigBlindType
	AnteType
	AnteRequestType
	LookCardsType
	FoldType
	CallType
	RaiseType
	CheckType

	PlayerArriveType
	PlayerChipsType
	PlayerCardsType
	PlayerSelfType
	PlayerStatsType
	BatchModeType
	StreamModeType
	StateInformationType

	LongPollType
	LongPollReturnType
)

// Error codes carried in the Code field of ErrorType packets. The zero value
// is a general failure with no further qualification.
const (
	CodeGeneralFailure uint32 = iota
	CodeAlreadyLogged
	CodeNotLoggedIn
	CodeAuthRefused
	CodeUnknownRole
	CodeRoleNotAvailable
	CodeRolePlayRequired
	CodeTableDoesNotExist
	CodeTourneyDoesNotExist
	CodeTourneyWrongState
	CodeNotBailor
	CodeNotEnoughUsers
	CodeSerialsChipsMismatch
	CodeNoAdmin
	CodeNoTable
	CodeUnknownOption
	CodeWrongOptionValue
	CodeHandNotFound
	CodeLongPollBusy
	CodeNotAvailable
	CodeUpdateMoneyFailed
	CodeSavePlayerInfoFailed
)

// Codes carried by StateInformationType packets.
const (
	CodeLocalTableEphemeral uint32 = iota + 100
	CodeRemoteTableEphemeral
	CodeRemoteConnectionLost
)

// Role tags a session may claim. A tag may be claimed at most once per session.
const (
	RolePlay = "PLAY"
	RoleEdit = "EDIT"
)

// Roles lists every role tag a client may claim.
var Roles = []string{RolePlay, RoleEdit}

// ValidRole reports whether role is a member of Roles.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Tournament states as reported by the tournament collaborator.
const (
	TourneyStateRegistering = "registering"
	TourneyStateRunning     = "running"
	TourneyStateCanceled    = "canceled"
)

// Reasons attached to TableType packets describing why the snapshot was sent.
const (
	ReasonTableJoin   = "TableJoin"
	ReasonTableList   = "TableList"
	ReasonTableCreate = "TableCreate"
	ReasonHandReplay  = "HandReplay"
)

// Option identifiers accepted by SetOptionType packets.
const (
	OptionAutoRefill uint32 = iota + 1
	OptionAutoRebuy
	OptionAutoMuck
	OptionAutoBlindAnte
)

// Packet is the wire envelope for every protocol message. Fields beyond Type,
// GameID and Serial are operation-specific and omitted from the encoding when
// unset.
type Packet struct {
	Type          Type   `json:"type"`
	GameID        uint32 `json:"game_id,omitempty"`
	Serial        uint32 `json:"serial,omitempty"`
	TourneySerial uint32 `json:"tourney_serial,omitempty"`

	// Error reporting.
	OtherType Type   `json:"other_type,omitempty"`
	Code      uint32 `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`

	// Identity and account fields.
	Name      string `json:"name,omitempty"`
	Password  string `json:"password,omitempty"`
	AuthToken string `json:"auth,omitempty"`
	Locale    string `json:"locale,omitempty"`
	URL       string `json:"url,omitempty"`
	Outfit    string `json:"outfit,omitempty"`
	Roles     string `json:"roles,omitempty"`

	// Table and game interaction fields.
	Amount   int64    `json:"amount,omitempty"`
	Dead     int64    `json:"dead,omitempty"`
	Money    int64    `json:"money,omitempty"`
	Bet      int64    `json:"bet,omitempty"`
	Seat     int      `json:"seat,omitempty"`
	Value    int64    `json:"value,omitempty"`
	Option   string   `json:"option,omitempty"`
	OptionID uint32   `json:"option_id,omitempty"`
	State    string   `json:"state,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Cards    []byte   `json:"cards,omitempty"`
	Serials  []uint32 `json:"serials,omitempty"`
	Chips    []int64  `json:"chips,omitempty"`
	Absolute bool     `json:"absolute,omitempty"`
	ToGameID uint32   `json:"to_game_id,omitempty"`

	// Table creation/listing fields.
	Variant          string `json:"variant,omitempty"`
	BettingStructure string `json:"betting_structure,omitempty"`
	Seats            int    `json:"seats,omitempty"`
	PlayerTimeout    int    `json:"player_timeout,omitempty"`
	MuckTimeout      int    `json:"muck_timeout,omitempty"`
	CurrencySerial   uint32 `json:"currency_serial,omitempty"`
	Skin             string `json:"skin,omitempty"`
	Players          int    `json:"players,omitempty"`
	Tables           int    `json:"tables,omitempty"`
	Observers        int    `json:"observers,omitempty"`
	Waiting          int    `json:"waiting,omitempty"`

	// Buy-in limits.
	Min      int64 `json:"min,omitempty"`
	Max      int64 `json:"max,omitempty"`
	Best     int64 `json:"best,omitempty"`
	RebuyMin int64 `json:"rebuy_min,omitempty"`

	// Tournament fields.
	PlayersQuota int      `json:"players_quota,omitempty"`
	BailorSerial uint32   `json:"bailor_serial,omitempty"`
	Registered   int      `json:"registered,omitempty"`
	PlayerList   []uint32 `json:"player_list,omitempty"`

	// Listing fields.
	Query string   `json:"string,omitempty"`
	Start int      `json:"start,omitempty"`
	Count int      `json:"count,omitempty"`
	Total int      `json:"total,omitempty"`
	Hands []uint32 `json:"hands,omitempty"`

	// Nested packets for list replies.
	Packets []*Packet `json:"packets,omitempty"`
}

// HasGame reports whether the packet addresses a specific game.
func (p *Packet) HasGame() bool { return p.GameID != 0 }

// IsZero reports whether the packet carries no operation at all.
func (p *Packet) IsZero() bool {
	return p == nil || (p.Type == NoneType && p.GameID == 0 && p.Serial == 0)
}

// Ack returns a bare acknowledgment packet.
func Ack() *Packet { return &Packet{Type: AckType} }

// Error returns a typed error packet referencing the operation that failed.
func Error(other Type, code uint32, message string) *Packet {
	return &Packet{Type: ErrorType, OtherType: other, Code: code, Message: message}
}

// AuthRequest returns the packet asking the client to authenticate.
func AuthRequest() *Packet { return &Packet{Type: AuthRequestType} }

// StateInformation returns an informational state packet for a game.
func StateInformation(gameID uint32, code uint32, message string) *Packet {
	return &Packet{Type: StateInformationType, GameID: gameID, Code: code, Message: message}
}
