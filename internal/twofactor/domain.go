// Package twofactor holds the second factor state machine for user accounts:
// Off, Email and App (TOTP) factor types, enrollment with a pending secret,
// code verification and single-use recovery codes.
//
// The package never stores anything. Callers load a State from the user
// record, pass it through the operations here and persist it afterwards. The
// pending secret of an enrollment travels in an Enrollment value that the
// caller round-trips between requests.
package twofactor

import (
	"fmt"

	"github.com/signhub/signhub/internal/shared"
)

// FactorType is the stored users.two_factor_type_id.
type FactorType int

const (
	FactorOff   FactorType = 0
	FactorEmail FactorType = 1
	FactorApp   FactorType = 2
)

// ParseFactorType validates a raw type id.
func ParseFactorType(id int) (FactorType, error) {
	switch t := FactorType(id); t {
	case FactorOff, FactorEmail, FactorApp:
		return t, nil
	default:
		return FactorOff, shared.InvalidInput("twoFactorTypeId", fmt.Sprintf("Unknown two factor type %d", id))
	}
}

// String returns the label shown to users.
func (t FactorType) String() string {
	switch t {
	case FactorEmail:
		return "email"
	case FactorApp:
		return "app"
	default:
		return "off"
	}
}

// State is the persisted second factor of one user.
type State struct {
	Type          FactorType
	Secret        string
	RecoveryCodes []string
}

// Account identifies the user an enrollment is for.
type Account struct {
	UserName string
	Email    string
}

// Enrollment carries an in-progress App enrollment between requests.
// PendingSecret is only set while a new secret awaits its first valid code.
type Enrollment struct {
	PendingSecret string `json:"pendingSecret,omitempty"`
	URI           string `json:"uri,omitempty"`
	QRCodeURL     string `json:"qrCodeUrl,omitempty"`
}

// Pending reports whether a freshly generated secret is awaiting verification.
func (e Enrollment) Pending() bool {
	return e.PendingSecret != ""
}
