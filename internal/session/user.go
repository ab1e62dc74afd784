package session

// Privilege is the level of access a user has to the protocol. Operations
// declare the minimum privilege they require through the service's auth
// policy.
type Privilege int

const (
	PrivilegeAnonymous Privilege = iota
	PrivilegeRegular
	PrivilegeAdmin
)

// User holds the identity of the subject behind a session. The zero value is
// an anonymous, unauthenticated user. Identity is assigned by login/relogin
// and immutable otherwise for the lifetime of the session.
type User struct {
	Serial    uint32
	Name      string
	URL       string
	Outfit    string
	Privilege Privilege
}

// IsLogged reports whether the user has authenticated.
func (u *User) IsLogged() bool { return u.Serial != 0 }

// HasPrivilege reports whether the user's privilege meets the given minimum.
func (u *User) HasPrivilege(min Privilege) bool { return u.Privilege >= min }

// Logout resets the user to the anonymous state.
func (u *User) Logout() {
	*u = User{}
}
