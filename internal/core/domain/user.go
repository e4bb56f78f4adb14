package domain

import "errors"

const (
	RoleAdmin       = "admin"
	RoleParticipant = "participant"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the name-based principal attached to a session. It is resolved
// at login and carried in the session token; it is not a verified account.
type Identity struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsAdmin reports whether the identity may answer and delete questions.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
