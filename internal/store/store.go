package store

import (
	"context"
	"time"

	"github.com/memoirly/memoir-backend/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Memoirs() Memoirs
	Invitations() Invitations
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetResetToken stores (or clears, with nils) the password-reset token.
	SetResetToken(ctx context.Context, userID string, token *string, expires *time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	GetByResetToken(ctx context.Context, token string) (*model.User, error)
}

type Memoirs interface {
	Create(ctx context.Context, m *model.Memoir) (*model.Memoir, error)
	// Get returns the memoir with its collaborator list loaded.
	Get(ctx context.Context, memoirID string) (*model.Memoir, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Memoir, error)
	// Update applies the non-nil fields of patch. The author column is never
	// touched.
	Update(ctx context.Context, memoirID string, patch model.MemoirPatch) (*model.Memoir, error)
	// Delete removes the memoir, its collaborator entries and any invitations
	// that reference it in one transaction.
	Delete(ctx context.Context, memoirID string) error
	AddCollaborator(ctx context.Context, memoirID string, c model.Collaborator) error
}

type Invitations interface {
	Create(ctx context.Context, inv *model.Invitation) (*model.Invitation, error)
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
	// HasPending reports whether a pending invitation exists for
	// (memoirID, email). Email comparison is case-insensitive.
	HasPending(ctx context.Context, memoirID, email string) (bool, error)
	UpdateStatus(ctx context.Context, invitationID, status string) error
	Delete(ctx context.Context, invitationID string) error
	// Accept appends the collaborator to the memoir and marks the invitation
	// accepted in a single transaction.
	Accept(ctx context.Context, invitationID, memoirID string, c model.Collaborator) error
}
