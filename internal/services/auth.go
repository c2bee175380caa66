package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memoirly/memoir-backend/internal/auth"
	"github.com/memoirly/memoir-backend/internal/mail"
	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

const resetTokenTTL = time.Hour

// AuthService handles account registration, login and password resets.
type AuthService struct {
	store  store.Store
	tokens *auth.TokenManager
	sender mail.Sender
	now    func() time.Time
}

func NewAuthService(s store.Store, tm *auth.TokenManager, sender mail.Sender) *AuthService {
	return &AuthService{store: s, tokens: tm, sender: sender, now: time.Now}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password, name, role string) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Users().Create(ctx, &model.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		DisplayName:  name,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, fmt.Errorf("%w: an account with this email already exists", model.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: invalid email or password", model.ErrUnauthorized)
		}
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, fmt.Errorf("%w: invalid email or password", model.ErrUnauthorized)
	}
	token, err := s.tokens.Sign(u.UserID, u.Role, u.Email)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// GetUser returns the account for userID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().Get(ctx, userID)
}

// ForgotPassword issues a reset token and best-effort emails it. The outcome
// is identical whether or not the account exists, so the endpoint cannot be
// used to probe for registered emails.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	token := hex.EncodeToString(b)
	expires := s.now().Add(resetTokenTTL)
	if err := s.store.Users().SetResetToken(ctx, u.UserID, &token, &expires); err != nil {
		return err
	}
	if err := s.sender.Send(ctx, u.Email, "Password reset",
		fmt.Sprintf("Your password reset token is %s. It expires in one hour.", token)); err != nil {
		log.Warn().Err(err).Str("user_id", u.UserID).Msg("password reset email failed")
	}
	return nil
}

// ResetPassword sets a new password given a valid, unexpired reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	u, err := s.store.Users().GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: invalid reset token", model.ErrValidation)
		}
		return err
	}
	if u.ResetTokenExpires == nil || !s.now().Before(*u.ResetTokenExpires) {
		return fmt.Errorf("%w: reset token has expired", model.ErrExpired)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.Users().UpdatePassword(ctx, u.UserID, hash)
}
