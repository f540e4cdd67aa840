package users

import (
	"time"

	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/twofactor"
)

// User represents a CMS account.
type User struct {
	ID                       int64
	UserName                 string
	Email                    string
	UserTypeID               int
	GroupID                  int64
	IsPasswordChangeRequired bool
	Retired                  bool
	TwoFactor                twofactor.State
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Account returns the identity used in authenticator apps and mails.
func (u *User) Account() twofactor.Account {
	return twofactor.Account{UserName: u.UserName, Email: u.Email}
}

// IsSuperAdmin reports whether the account is a super administrator.
func (u *User) IsSuperAdmin() bool {
	return u.UserTypeID == rbac.UserTypeSuperAdmin
}

// ProfileInput carries a self-service profile edit.
type ProfileInput struct {
	Email          string
	TwoFactorType  twofactor.FactorType
	OldPassword    string
	NewPassword    string
	RetypePassword string
	Code           string
}

// AdminEditInput carries an administrator's edit of another account. Nil
// fields are left unchanged.
type AdminEditInput struct {
	Email                    *string
	Retired                  *bool
	IsPasswordChangeRequired *bool
	NewPassword              string
	RetypePassword           string
	DisableTwoFactor         bool
}

// CreateInput describes a new account.
type CreateInput struct {
	UserName string
	Email    string
	Password string
}

// Defaults are applied to new accounts.
type Defaults struct {
	UserTypeID int
	GroupName  string
}
