package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store
// implementation. Implementations should provide a clean, isolated store and
// return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Users
	email := "author-" + uuid.New().String() + "@example.test"
	u, err := s.Users().Create(ctx, &model.User{
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
		DisplayName:  "Test Author",
		Role:         model.RoleAuthor,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.UserID == "" {
		t.Fatalf("CreateUser: empty user id")
	}
	if got, err := s.Users().Get(ctx, u.UserID); err != nil || got.Email != email {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}
	if got, err := s.Users().GetByEmail(ctx, email); err != nil || got.UserID != u.UserID {
		t.Fatalf("GetUserByEmail: got=%v err=%v", got, err)
	}
	if _, err := s.Users().GetByEmail(ctx, "nobody@example.test"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetUserByEmail missing: err=%v", err)
	}
	if _, err := s.Users().Create(ctx, &model.User{Email: email, PasswordHash: "x", DisplayName: "Dup", Role: model.RoleAuthor}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("CreateUser duplicate email: err=%v", err)
	}

	// Reset token round trip
	tok := "reset-" + uuid.New().String()
	exp := time.Now().UTC().Add(time.Hour)
	if err := s.Users().SetResetToken(ctx, u.UserID, &tok, &exp); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}
	if got, err := s.Users().GetByResetToken(ctx, tok); err != nil || got.UserID != u.UserID {
		t.Fatalf("GetByResetToken: got=%v err=%v", got, err)
	}
	if err := s.Users().UpdatePassword(ctx, u.UserID, "$2a$10$newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if got, _ := s.Users().Get(ctx, u.UserID); got.ResetToken != nil {
		t.Fatalf("UpdatePassword should clear reset token, got %v", *got.ResetToken)
	}

	// Memoirs
	m, err := s.Memoirs().Create(ctx, &model.Memoir{
		AuthorID: u.UserID,
		Title:    "My Life",
		Content:  "It began",
		Chapters: []model.Chapter{{Title: "One", Events: []model.Event{{Title: "Born", Content: "..."}}}},
	})
	if err != nil {
		t.Fatalf("CreateMemoir: %v", err)
	}
	if m.Status != model.StatusDraft {
		t.Fatalf("CreateMemoir default status = %q", m.Status)
	}
	got, err := s.Memoirs().Get(ctx, m.MemoirID)
	if err != nil {
		t.Fatalf("GetMemoir: %v", err)
	}
	if len(got.Chapters) != 1 || len(got.Chapters[0].Events) != 1 {
		t.Fatalf("GetMemoir chapters round-trip: %+v", got.Chapters)
	}
	if len(got.Collaborators) != 0 {
		t.Fatalf("GetMemoir fresh memoir has collaborators: %+v", got.Collaborators)
	}
	if lst, err := s.Memoirs().ListByAuthor(ctx, u.UserID); err != nil || len(lst) != 1 {
		t.Fatalf("ListByAuthor: n=%d err=%v", len(lst), err)
	}

	// Partial update leaves unset fields alone.
	newTitle := "My Whole Life"
	upd, err := s.Memoirs().Update(ctx, m.MemoirID, model.MemoirPatch{Title: &newTitle})
	if err != nil {
		t.Fatalf("UpdateMemoir: %v", err)
	}
	if upd.Title != newTitle || upd.Content != "It began" || upd.AuthorID != u.UserID {
		t.Fatalf("UpdateMemoir: %+v", upd)
	}
	if _, err := s.Memoirs().Update(ctx, uuid.New().String(), model.MemoirPatch{Title: &newTitle}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("UpdateMemoir missing: err=%v", err)
	}

	// Collaborators
	if err := s.Memoirs().AddCollaborator(ctx, m.MemoirID, model.Collaborator{
		Role: model.CollabViewer, InviteStatus: model.InviteAccepted, InviteEmail: "viewer@example.test",
	}); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if got, _ := s.Memoirs().Get(ctx, m.MemoirID); len(got.Collaborators) != 1 {
		t.Fatalf("collaborator not loaded: %+v", got.Collaborators)
	}

	// Invitations
	inv, err := s.Invitations().Create(ctx, &model.Invitation{
		MemoirID:     m.MemoirID,
		InviteeEmail: "bob@example.test",
		Role:         model.CollabEditor,
		Token:        uuid.New().String() + uuid.New().String(),
		Status:       model.InvitationPending,
		ExpiresAt:    time.Now().UTC().Add(7 * 24 * time.Hour),
		InvitedBy:    u.UserID,
	})
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if got, err := s.Invitations().GetByToken(ctx, inv.Token); err != nil || got.InvitationID != inv.InvitationID {
		t.Fatalf("GetByToken: got=%v err=%v", got, err)
	}
	if ok, err := s.Invitations().HasPending(ctx, m.MemoirID, "BOB@example.test"); err != nil || !ok {
		t.Fatalf("HasPending case-insensitive: ok=%v err=%v", ok, err)
	}

	// Pending uniqueness per (memoir, email) is a storage-level constraint.
	if _, err := s.Invitations().Create(ctx, &model.Invitation{
		MemoirID:     m.MemoirID,
		InviteeEmail: "Bob@example.test",
		Role:         model.CollabViewer,
		Token:        uuid.New().String() + uuid.New().String(),
		Status:       model.InvitationPending,
		ExpiresAt:    time.Now().UTC().Add(7 * 24 * time.Hour),
		InvitedBy:    u.UserID,
	}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate pending invitation: err=%v", err)
	}

	// Transactional accept: collaborator appended and status flipped together.
	if err := s.Invitations().Accept(ctx, inv.InvitationID, m.MemoirID, model.Collaborator{
		Role: inv.Role, InviteStatus: model.InviteAccepted, InviteEmail: inv.InviteeEmail,
	}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got, err := s.Invitations().GetByToken(ctx, inv.Token); err != nil || got.Status != model.InvitationAccepted {
		t.Fatalf("Accept status: got=%v err=%v", got, err)
	}
	if got, _ := s.Memoirs().Get(ctx, m.MemoirID); len(got.Collaborators) != 2 {
		t.Fatalf("Accept collaborator append: %+v", got.Collaborators)
	}

	// Once accepted, a new pending invitation for the same email is allowed
	// by the partial index (only pending rows are constrained).
	inv2, err := s.Invitations().Create(ctx, &model.Invitation{
		MemoirID:     m.MemoirID,
		InviteeEmail: "bob@example.test",
		Role:         model.CollabViewer,
		Token:        uuid.New().String() + uuid.New().String(),
		Status:       model.InvitationPending,
		ExpiresAt:    time.Now().UTC().Add(7 * 24 * time.Hour),
		InvitedBy:    u.UserID,
	})
	if err != nil {
		t.Fatalf("CreateInvitation after accept: %v", err)
	}
	if err := s.Invitations().UpdateStatus(ctx, inv2.InvitationID, model.InvitationExpired); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := s.Invitations().Delete(ctx, inv2.InvitationID); err != nil {
		t.Fatalf("DeleteInvitation: %v", err)
	}
	if err := s.Invitations().Delete(ctx, inv2.InvitationID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("DeleteInvitation twice: err=%v", err)
	}

	// Memoir delete removes collaborators and invitations with it.
	if err := s.Memoirs().Delete(ctx, m.MemoirID); err != nil {
		t.Fatalf("DeleteMemoir: %v", err)
	}
	if _, err := s.Memoirs().Get(ctx, m.MemoirID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetMemoir after delete: err=%v", err)
	}
	if _, err := s.Invitations().GetByToken(ctx, inv.Token); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("invitations should be deleted with memoir: err=%v", err)
	}
}
