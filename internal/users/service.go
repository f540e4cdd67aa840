package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
	Save(ctx context.Context, user *User) error
	Create(ctx context.Context, user *User, defaultGroup string) error
}

// CredentialStore hashes and rotates passwords. When oldPassword is supplied
// it must match the stored one.
type CredentialStore interface {
	SetPassword(ctx context.Context, userID int64, newPassword, oldPassword string) error
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	credentials CredentialStore
	twoFactor   *twofactor.Service
	defaults    Defaults
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, credentials CredentialStore, twoFactor *twofactor.Service, defaults Defaults, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.UserTypeID == 0 {
		defaults.UserTypeID = rbac.UserTypeUser
	}
	return &Service{repo: repo, credentials: credentials, twoFactor: twoFactor, defaults: defaults, logger: logger}
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns all users. Super admins only.
func (s *Service) List(ctx context.Context, actor rbac.Actor) ([]User, error) {
	if !actor.IsSuperAdmin() {
		return nil, shared.ErrAccessDenied
	}
	return s.repo.List(ctx)
}

// Create adds a new account with the configured defaults. The user must
// change the password on first login.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (*User, error) {
	if !actor.IsSuperAdmin() {
		return nil, shared.ErrAccessDenied
	}
	name := strings.TrimSpace(in.UserName)
	if name == "" {
		return nil, shared.InvalidInput("userName", "Please enter a user name")
	}
	if in.Password == "" {
		return nil, shared.InvalidInput("password", "Please enter the password")
	}
	user := &User{
		UserName:                 name,
		Email:                    strings.TrimSpace(in.Email),
		UserTypeID:               s.defaults.UserTypeID,
		IsPasswordChangeRequired: true,
	}
	if err := s.repo.Create(ctx, user, s.defaults.GroupName); err != nil {
		return nil, err
	}
	if err := s.credentials.SetPassword(ctx, user.ID, in.Password, ""); err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.Int64("user_id", user.ID), slog.Int64("actor_id", actor.UserID))
	return user, nil
}

// ChangePassword rotates the password after checking the retyped value and
// clears the change-required flag.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, retypePassword string) error {
	if newPassword != retypePassword {
		return shared.InvalidInput("password", "Passwords do not match")
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.credentials.SetPassword(ctx, userID, newPassword, oldPassword); err != nil {
		return err
	}
	user.IsPasswordChangeRequired = false
	return s.repo.Save(ctx, user)
}

// ForceChangePassword sets a new password without the old one, for accounts
// flagged to change it on login.
func (s *Service) ForceChangePassword(ctx context.Context, userID int64, newPassword, retypePassword string) error {
	if newPassword == "" || retypePassword == "" {
		return shared.InvalidInput("password", "Please enter the password")
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsPasswordChangeRequired {
		return shared.ErrAccessDenied
	}
	return s.ChangePassword(ctx, userID, "", newPassword, retypePassword)
}

// TwoFactorSetup starts an App enrollment for the profile page. The returned
// enrollment must be kept by the caller until EditProfile.
func (s *Service) TwoFactorSetup(ctx context.Context, userID int64) (twofactor.Enrollment, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return twofactor.Enrollment{}, err
	}
	return s.twoFactor.BeginEnrollment(user.TwoFactor, user.Account(), twofactor.FactorApp)
}

// EditProfile applies a self-service edit. enrollment is the value returned by
// TwoFactorSetup; its pending secret is consumed when an App switch is
// verified or rejected.
func (s *Service) EditProfile(ctx context.Context, userID int64, in ProfileInput, enrollment *twofactor.Enrollment) (*User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		enrollment = &twofactor.Enrollment{}
	}
	previous := user.TwoFactor.Type
	target := in.TwoFactorType
	user.Email = strings.TrimSpace(in.Email)

	if in.NewPassword != in.RetypePassword {
		return nil, shared.InvalidInput("password", "Passwords do not match")
	}

	if target == twofactor.FactorEmail {
		if user.TwoFactor.Secret == "" {
			secret, err := s.twoFactor.NewSecret(user.Account())
			if err != nil {
				return nil, err
			}
			user.TwoFactor.Secret = secret
		}
		if _, err := s.twoFactor.BeginEnrollment(user.TwoFactor, user.Account(), twofactor.FactorEmail); err != nil {
			return nil, err
		}
	}

	switch {
	case twofactor.EnrollmentRequired(previous, user.TwoFactor, target):
		if err := s.twoFactor.CompleteEnrollment(&user.TwoFactor, enrollment, strings.TrimSpace(in.Code)); err != nil {
			return nil, err
		}
	case target == twofactor.FactorOff:
		s.twoFactor.Disable(&user.TwoFactor)
	default:
		user.TwoFactor.Type = target
	}

	if in.NewPassword != "" {
		if err := s.credentials.SetPassword(ctx, user.ID, in.NewPassword, in.OldPassword); err != nil {
			return nil, err
		}
		user.IsPasswordChangeRequired = false
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	if previous != user.TwoFactor.Type {
		s.logger.Info("two factor changed", slog.Int64("user_id", user.ID),
			slog.String("from", previous.String()), slog.String("to", user.TwoFactor.Type.String()))
	}
	return user, nil
}

// GenerateRecoveryCodes replaces the user's recovery codes and returns the new batch.
func (s *Service) GenerateRecoveryCodes(ctx context.Context, userID int64) ([]string, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	codes, err := s.twoFactor.GenerateRecoveryCodes(&user.TwoFactor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return codes, nil
}

// RecoveryCodes returns the unused recovery codes.
func (s *Service) RecoveryCodes(ctx context.Context, userID int64) ([]string, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), user.TwoFactor.RecoveryCodes...), nil
}

// AdminEdit lets a super admin reset another account.
func (s *Service) AdminEdit(ctx context.Context, actor rbac.Actor, userID int64, in AdminEditInput) (*User, error) {
	if !actor.IsSuperAdmin() {
		return nil, shared.ErrAccessDenied
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.NewPassword != in.RetypePassword {
		return nil, shared.InvalidInput("password", "Passwords do not match")
	}
	if in.Email != nil {
		user.Email = strings.TrimSpace(*in.Email)
	}
	if in.Retired != nil {
		if *in.Retired && user.ID == actor.UserID {
			return nil, shared.InvalidInput("retired", "You cannot retire yourself")
		}
		user.Retired = *in.Retired
	}
	if in.IsPasswordChangeRequired != nil {
		user.IsPasswordChangeRequired = *in.IsPasswordChangeRequired
	}
	if in.NewPassword != "" {
		if err := s.credentials.SetPassword(ctx, user.ID, in.NewPassword, ""); err != nil {
			return nil, err
		}
	}
	if in.DisableTwoFactor {
		s.twoFactor.Disable(&user.TwoFactor)
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user edited by admin", slog.Int64("user_id", user.ID), slog.Int64("actor_id", actor.UserID),
		slog.Bool("password_reset", in.NewPassword != ""), slog.Bool("two_factor_disabled", in.DisableTwoFactor))
	return user, nil
}
