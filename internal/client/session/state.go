// Package session — клиентское хранилище сессии дашборда: пользователь,
// access-токен и бизнес. Все изменения проходят через действия Store,
// после каждого изменения снимок сохраняется на диск и рассылается подписчикам.
package session

// Role — роль пользователя в дашборде.
type Role string

const (
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// ParseRole возвращает роль из строки; неизвестные значения дают RoleBusiness.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleBusiness
	}
}

// User — пользователь сессии.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// State — снимок сессии.
// Authenticated истинно тогда и только тогда, когда заданы и User, и Token.
type State struct {
	User          *User
	Token         string
	BusinessID    string
	Authenticated bool
	Loading       bool
}

func (s State) normalize() State {
	s.Authenticated = s.User != nil && s.Token != ""
	return s
}

func (s State) clone() State {
	s.User = s.User.clone()
	return s
}

// snapshot — формат, в котором сессия хранится под ключом StorageKey.
type snapshot struct {
	State struct {
		User            *User  `json:"user"`
		Token           string `json:"token"`
		BusinessID      string `json:"businessId"`
		IsAuthenticated bool   `json:"isAuthenticated"`
	} `json:"state"`
	Version int `json:"version"`
}

func toSnapshot(s State) snapshot {
	var snap snapshot
	snap.State.User = s.User
	snap.State.Token = s.Token
	snap.State.BusinessID = s.BusinessID
	snap.State.IsAuthenticated = s.Authenticated
	return snap
}

func (snap snapshot) toState() State {
	return State{
		User:       snap.State.User,
		Token:      snap.State.Token,
		BusinessID: snap.State.BusinessID,
	}.normalize()
}
