package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

// MemoirService owns memoir CRUD and the read/write access decisions.
//
// Access failures surface as ErrNotFound rather than a forbidden error so
// callers cannot distinguish "does not exist" from "no access".
type MemoirService struct {
	store store.Store
}

func NewMemoirService(s store.Store) *MemoirService { return &MemoirService{store: s} }

// Create persists a new memoir owned by authorID.
func (s *MemoirService) Create(ctx context.Context, authorID string, m *model.Memoir) (*model.Memoir, error) {
	m.AuthorID = authorID
	out, err := s.store.Memoirs().Create(ctx, m)
	if err != nil {
		return nil, err
	}
	return s.resolveProfiles(ctx, out)
}

// GetForRead returns the memoir if the caller is the author or an accepted
// collaborator.
func (s *MemoirService) GetForRead(ctx context.Context, callerID, memoirID string) (*model.Memoir, error) {
	m, err := s.store.Memoirs().Get(ctx, memoirID)
	if err != nil {
		return nil, err
	}
	if !canRead(m, callerID) {
		return nil, fmt.Errorf("%w: memoir not found", model.ErrNotFound)
	}
	return s.resolveProfiles(ctx, m)
}

// GetForWrite returns the memoir only when the caller is the author.
// Collaborators of any role cannot write top-level memoir fields.
func (s *MemoirService) GetForWrite(ctx context.Context, callerID, memoirID string) (*model.Memoir, error) {
	m, err := s.store.Memoirs().Get(ctx, memoirID)
	if err != nil {
		return nil, err
	}
	if m.AuthorID != callerID {
		return nil, fmt.Errorf("%w: memoir not found", model.ErrNotFound)
	}
	return m, nil
}

// ListByAuthor returns memoirs owned by the caller. Memoirs the caller can
// read as a collaborator are deliberately excluded from this listing.
func (s *MemoirService) ListByAuthor(ctx context.Context, authorID string) ([]*model.Memoir, error) {
	lst, err := s.store.Memoirs().ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	for _, m := range lst {
		if _, err := s.resolveProfiles(ctx, m); err != nil {
			return nil, err
		}
	}
	return lst, nil
}

// Update applies a partial update. The patch type carries no author field,
// so the owner can never be changed through this path.
func (s *MemoirService) Update(ctx context.Context, callerID, memoirID string, patch model.MemoirPatch) (*model.Memoir, error) {
	if _, err := s.GetForWrite(ctx, callerID, memoirID); err != nil {
		return nil, err
	}
	out, err := s.store.Memoirs().Update(ctx, memoirID, patch)
	if err != nil {
		return nil, err
	}
	return s.resolveProfiles(ctx, out)
}

// Delete removes the memoir, author-only. Hard delete; the store also drops
// the memoir's collaborator entries and invitations.
func (s *MemoirService) Delete(ctx context.Context, callerID, memoirID string) error {
	if _, err := s.GetForWrite(ctx, callerID, memoirID); err != nil {
		return err
	}
	return s.store.Memoirs().Delete(ctx, memoirID)
}

func canRead(m *model.Memoir, callerID string) bool {
	if m.AuthorID == callerID {
		return true
	}
	for _, c := range m.Collaborators {
		if c.UserID != nil && *c.UserID == callerID && c.InviteStatus == model.InviteAccepted {
			return true
		}
	}
	return false
}

// resolveProfiles fills in the public profiles for the author and any
// collaborators with linked accounts.
func (s *MemoirService) resolveProfiles(ctx context.Context, m *model.Memoir) (*model.Memoir, error) {
	author, err := s.store.Users().Get(ctx, m.AuthorID)
	if err == nil {
		m.Author = author.Profile()
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	for i := range m.Collaborators {
		c := &m.Collaborators[i]
		if c.UserID == nil {
			continue
		}
		u, err := s.store.Users().Get(ctx, *c.UserID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		c.User = u.Profile()
	}
	return m, nil
}
