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

	"github.com/memoirly/memoir-backend/internal/mail"
	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

const tokenBytes = 32

// InvitationService drives the invitation lifecycle: issuing tokenized
// offers, and resolving accept/decline responses against the memoir's
// collaborator list.
//
// State machine per invitation: pending -> accepted | expired. A decline
// deletes the invitation instead of storing a terminal state. Nothing moves
// out of accepted or expired.
type InvitationService struct {
	store   store.Store
	sender  mail.Sender
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewInvitationService(s store.Store, sender mail.Sender, baseURL string, ttl time.Duration) *InvitationService {
	return &InvitationService{store: s, sender: sender, baseURL: baseURL, ttl: ttl, now: time.Now}
}

// Invite issues a pending invitation for (memoirID, email) and best-effort
// notifies the invitee. Only the memoir's author may invite; the error for a
// wrong memoir and a wrong caller is the same so neither case leaks.
func (s *InvitationService) Invite(ctx context.Context, inviterID, memoirID, email, role string) (string, error) {
	m, err := s.store.Memoirs().Get(ctx, memoirID)
	if err != nil || m.AuthorID != inviterID {
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: memoir not found or you are not the author", model.ErrNotFound)
	}

	email = strings.ToLower(strings.TrimSpace(email))

	invitee, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", err
	}

	// All three duplicate conditions collapse into one generic conflict so
	// callers cannot probe which of them triggered.
	for _, c := range m.Collaborators {
		if strings.EqualFold(c.InviteEmail, email) {
			return "", errConflictDuplicate()
		}
		if invitee != nil && c.UserID != nil && *c.UserID == invitee.UserID {
			return "", errConflictDuplicate()
		}
	}
	pending, err := s.store.Invitations().HasPending(ctx, memoirID, email)
	if err != nil {
		return "", err
	}
	if pending {
		return "", errConflictDuplicate()
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	inv, err := s.store.Invitations().Create(ctx, &model.Invitation{
		MemoirID:     memoirID,
		InviteeEmail: email,
		Role:         role,
		Token:        token,
		Status:       model.InvitationPending,
		ExpiresAt:    s.now().Add(s.ttl),
		InvitedBy:    inviterID,
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			// Lost the race against a concurrent invite for the same email;
			// the pending-uniqueness index caught it.
			return "", errConflictDuplicate()
		}
		return "", err
	}

	s.notify(ctx, m, inv)
	return inv.InvitationID, nil
}

// Respond resolves an invitation by token. Callers are unauthenticated:
// possession of the token is the credential, since the invitee may not hold
// an account yet.
func (s *InvitationService) Respond(ctx context.Context, memoirID, token string, accepted bool) (string, error) {
	inv, err := s.store.Invitations().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("%w: invitation not found", model.ErrNotFound)
		}
		return "", err
	}

	if inv.MemoirID != memoirID {
		return "", fmt.Errorf("%w: invitation does not belong to this memoir", model.ErrValidation)
	}
	if inv.Status != model.InvitationPending {
		return "", fmt.Errorf("%w: invitation already %s", model.ErrConflict, inv.Status)
	}

	// Lazy expiry: the failed response attempt is what persists the expired
	// state; there is no background sweep.
	if !s.now().Before(inv.ExpiresAt) {
		if err := s.store.Invitations().UpdateStatus(ctx, inv.InvitationID, model.InvitationExpired); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: invitation has expired", model.ErrExpired)
	}

	if !accepted {
		// Declines leave no trace: the invitation is deleted and no
		// collaborator entry is ever created.
		if err := s.store.Invitations().Delete(ctx, inv.InvitationID); err != nil {
			return "", err
		}
		return "invitation declined", nil
	}

	m, err := s.store.Memoirs().Get(ctx, inv.MemoirID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Inconsistent state: the memoir is gone. Retire the invitation
			// so it cannot be retried forever.
			if uerr := s.store.Invitations().UpdateStatus(ctx, inv.InvitationID, model.InvitationExpired); uerr != nil {
				return "", uerr
			}
			return "", fmt.Errorf("%w: memoir for this invitation no longer exists", model.ErrNotFound)
		}
		return "", err
	}

	invitee, err := s.store.Users().GetByEmail(ctx, inv.InviteeEmail)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", err
	}

	// Idempotency guard: if a matching entry already exists (a retry after a
	// partial failure, or an out-of-band grant), converge without duplicating.
	for _, c := range m.Collaborators {
		if strings.EqualFold(c.InviteEmail, inv.InviteeEmail) ||
			(invitee != nil && c.UserID != nil && *c.UserID == invitee.UserID) {
			if err := s.store.Invitations().UpdateStatus(ctx, inv.InvitationID, model.InvitationAccepted); err != nil {
				return "", err
			}
			return "already a collaborator", nil
		}
	}

	collab := model.Collaborator{
		Role:         inv.Role,
		InviteStatus: model.InviteAccepted,
		InviteEmail:  inv.InviteeEmail,
	}
	if invitee != nil {
		collab.UserID = &invitee.UserID
	}
	if err := s.store.Invitations().Accept(ctx, inv.InvitationID, inv.MemoirID, collab); err != nil {
		return "", err
	}
	return "invitation accepted", nil
}

func (s *InvitationService) notify(ctx context.Context, m *model.Memoir, inv *model.Invitation) {
	link := fmt.Sprintf("%s/memoir/%s/collaborators/respond?token=%s", s.baseURL, inv.MemoirID, inv.Token)
	body, err := mail.InviteBody(m.Title, inv.Role, link, inv.ExpiresAt.Format(time.RFC1123))
	if err == nil {
		err = s.sender.Send(ctx, inv.InviteeEmail, fmt.Sprintf("Invitation to collaborate on %q", m.Title), body)
	}
	if err != nil {
		// Email delivery is best-effort; the invitation stands either way.
		log.Warn().Err(err).
			Str("memoir_id", inv.MemoirID).
			Str("invitation_id", inv.InvitationID).
			Msg("invitation email failed")
	}
}

func errConflictDuplicate() error {
	return fmt.Errorf("%w: a collaborator or pending invitation already exists for this email", model.ErrConflict)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
