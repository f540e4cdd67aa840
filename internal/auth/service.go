package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/signhub/signhub/internal/observability"
	"github.com/signhub/signhub/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
}

// NewService constructs a new Service.
func NewService(repo Repository, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// Authenticate validates user name and password.
func (s *Service) Authenticate(ctx context.Context, userName, password string) (*User, error) {
	user, err := s.repo.FindByUserName(ctx, userName)
	if err != nil || !user.Active() {
		s.metrics.LoginAttempt(false)
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.LoginAttempt(false)
		return nil, shared.ErrInvalidCredentials
	}
	s.metrics.LoginAttempt(true)
	return user, nil
}

// UserByID loads the account of a pending second factor login.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// SetPassword hashes and stores a new password. When oldPassword is supplied
// it must match the current one.
func (s *Service) SetPassword(ctx context.Context, userID int64, newPassword, oldPassword string) error {
	if newPassword == "" {
		return shared.InvalidInput("password", "Please enter the password")
	}
	if oldPassword != "" {
		user, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
			return shared.InvalidInput("password", "Current password is incorrect")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return shared.InvalidInput("password", "Password is too long")
		}
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePasswordHash(ctx, userID, string(hash))
}

// SaveRecoveryCodes stores what is left of the recovery codes after one is used.
func (s *Service) SaveRecoveryCodes(ctx context.Context, userID int64, codes []string) error {
	return s.repo.UpdateRecoveryCodes(ctx, userID, codes)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
