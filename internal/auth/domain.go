package auth

import (
	"time"

	"github.com/signhub/signhub/internal/twofactor"
)

// User is the credential view of an account.
type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash string
	Retired      bool
	TwoFactor    twofactor.State
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the account may log in.
func (u *User) Active() bool {
	return u != nil && !u.Retired
}
