package twofactor

import (
	"io"
	"time"

	"github.com/signhub/signhub/internal/observability"
	"github.com/signhub/signhub/internal/shared"
)

const (
	// DefaultQRCodeBaseURL renders QR images when no chart service is configured.
	DefaultQRCodeBaseURL = "https://quickchart.io"
	// DefaultIssuer labels authenticator entries when no issuer is configured.
	DefaultIssuer = "Signhub"
)

// Config carries the installation wide settings the state machine needs.
type Config struct {
	Issuer        string
	QRCodeBaseURL string
	MailFrom      string
}

// Service runs the two factor state machine.
type Service struct {
	cfg     Config
	metrics *observability.Metrics
	now     func() time.Time
	random  io.Reader
}

// NewService constructs a Service. metrics may be nil.
func NewService(cfg Config, metrics *observability.Metrics) *Service {
	if cfg.QRCodeBaseURL == "" {
		cfg.QRCodeBaseURL = DefaultQRCodeBaseURL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	return &Service{cfg: cfg, metrics: metrics, now: time.Now}
}

// BeginEnrollment prepares a switch to the requested factor. For App a new
// secret is generated into the enrollment when the user has none; the user
// state itself is never touched. Email only checks its prerequisites.
func (s *Service) BeginEnrollment(state State, account Account, requested FactorType) (Enrollment, error) {
	switch requested {
	case FactorApp:
		key, err := generateKey(s.cfg.Issuer, account.UserName, state.Secret)
		if err != nil {
			return Enrollment{}, err
		}
		enrollment := Enrollment{
			URI:       key.URL(),
			QRCodeURL: qrCodeURL(s.cfg.QRCodeBaseURL, key.URL()),
		}
		if state.Secret == "" {
			enrollment.PendingSecret = key.Secret()
		}
		return enrollment, nil
	case FactorEmail:
		if err := s.checkEmailPrerequisites(account); err != nil {
			return Enrollment{}, err
		}
		return Enrollment{}, nil
	default:
		return Enrollment{}, shared.InvalidInput("twoFactorTypeId", "Choose Email or App to enable two factor authentication")
	}
}

func (s *Service) checkEmailPrerequisites(account Account) error {
	if account.Email == "" {
		return shared.InvalidInput("email", "Please provide valid email address")
	}
	if s.cfg.MailFrom == "" {
		return shared.InvalidInput("mail_from", "Please provide valid sending email address in CMS Settings on Network tab")
	}
	return nil
}

// NewSecret returns a fresh secret outside of an App enrollment. Email mode
// uses it to derive the codes it mails out.
func (s *Service) NewSecret(account Account) (string, error) {
	key, err := generateKey(s.cfg.Issuer, account.UserName, "")
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// VerifyCode checks code against the pending secret, else the persisted
// secret. It fails closed when neither exists.
func (s *Service) VerifyCode(code string, enrollment Enrollment, state State) bool {
	secret := enrollment.PendingSecret
	if secret == "" {
		secret = state.Secret
	}
	ok := validate(code, secret, s.now())
	s.metrics.TwoFactorVerified(ok)
	return ok
}

// EnrollmentRequired reports whether switching to target needs a verified
// code: App without a secret, or App coming from Email.
func EnrollmentRequired(previous FactorType, state State, target FactorType) bool {
	return target == FactorApp && (state.Secret == "" || previous == FactorEmail)
}

// CompleteEnrollment verifies code and, on success, activates App with the
// pending or existing secret. The pending secret is discarded either way.
func (s *Service) CompleteEnrollment(state *State, enrollment *Enrollment, code string) error {
	if code == "" {
		return shared.InvalidInput("code", "Access Code is empty")
	}
	ok := s.VerifyCode(code, *enrollment, *state)
	pending := enrollment.PendingSecret
	enrollment.PendingSecret = ""
	if !ok {
		return shared.InvalidInput("code", "Access Code is incorrect")
	}
	if pending != "" {
		state.Secret = pending
	}
	state.Type = FactorApp
	return nil
}

// Disable turns the second factor off and forgets its secret and recovery codes.
func (s *Service) Disable(state *State) {
	state.Type = FactorOff
	state.Secret = ""
	state.RecoveryCodes = nil
}

// GenerateRecoveryCodes replaces any prior codes with a new batch.
func (s *Service) GenerateRecoveryCodes(state *State) ([]string, error) {
	codes, err := newRecoveryCodes(s.random)
	if err != nil {
		return nil, err
	}
	state.RecoveryCodes = codes
	out := make([]string, len(codes))
	copy(out, codes)
	return out, nil
}

// RedeemRecoveryCode consumes code if it belongs to the current batch.
func (s *Service) RedeemRecoveryCode(state *State, code string) bool {
	if code == "" {
		return false
	}
	i := matchRecoveryCode(state.RecoveryCodes, code)
	if i < 0 {
		return false
	}
	remaining := make([]string, 0, len(state.RecoveryCodes)-1)
	remaining = append(remaining, state.RecoveryCodes[:i]...)
	remaining = append(remaining, state.RecoveryCodes[i+1:]...)
	state.RecoveryCodes = remaining
	return true
}

// EmailCode returns the current code to mail to an Email factor user.
func (s *Service) EmailCode(state State) (string, error) {
	if state.Secret == "" {
		return "", shared.Misconfigured("Two factor secret missing for email delivery")
	}
	return codeAt(state.Secret, s.now())
}
