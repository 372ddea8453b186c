package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-esg/meridian/internal/shared"
	"github.com/meridian-esg/meridian/internal/users"
)

// Directory resolves login emails to accounts.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	tokens    *TokenStore
}

// NewService constructs a new Service.
func NewService(directory Directory, tokens *TokenStore) *Service {
	return &Service{directory: directory, tokens: tokens}
}

// Login validates credentials and issues a bearer token. Every failure
// mode maps to the same ErrInvalidCredentials so callers cannot probe for
// registered emails.
func (s *Service) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return TokenResponse{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenResponse{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenResponse{}, shared.ErrInvalidCredentials
	}
	return s.tokens.Issue(ctx, shared.Principal{UserID: user.ID, Email: user.Email})
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a bearer token to its principal.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	return s.tokens.Resolve(ctx, token)
}
