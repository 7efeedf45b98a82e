package domain

import "time"

// Role is the closed set of authorization roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Profile holds optional descriptive fields.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Bio       string `json:"bio"`
}

// User is the identity record that owns login sessions.
type User struct {
	ID                     string
	Username               string
	Email                  string
	PasswordHash           string
	Role                   Role
	Profile                Profile
	EmailVerified          bool
	EmailVerificationToken *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
