package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// RepositoryPort defines the data access the service needs.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	RoleNames(ctx context.Context, accountID int64) ([]string, error)
	CreateSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, userAgent string) error
	DeleteSession(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials and returns the account
// with its role names. Every failure collapses into ErrInvalidCredentials so
// callers cannot probe for registered emails.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, []string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive || user.Status != "ACTIVE" {
		return nil, nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, shared.ErrInvalidCredentials
	}
	roles, err := s.repo.RoleNames(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

// RegisterSession persists the session metadata for an issued credential.
func (s *Service) RegisterSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, userAgent string) error {
	return s.repo.CreateSession(ctx, id, accountID, expiresAt, ip, userAgent)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
