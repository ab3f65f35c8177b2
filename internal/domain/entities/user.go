package entities

import "time"

// Role gates administrative operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an authenticated account.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Identity is the resolved caller of a request, produced by the
// authenticator and carried through the request context.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the identity may perform admin mutations.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
