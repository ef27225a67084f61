package domain

import (
	"errors"
	"time"
)

// User is the core user entity. Identity facts come from the external
// identity provider; only the active flag and roles are managed here.
type User struct {
	ID        string
	Username  string
	Email     string
	Roles     []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
