package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
	"github.com/memoirly/memoir-backend/internal/store/sqlite"
)

func newTestStore(t *testing.T) (store.Store, *sql.DB) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return sqlite.NewWithDB(db), db
}

// recordingSender captures messages instead of delivering them.
type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingSender) Send(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, to)
	return nil
}

type invFixture struct {
	store   store.Store
	db      *sql.DB
	svc     *InvitationService
	sender  *recordingSender
	author  *model.User
	memoir  *model.Memoir
	memoirs *MemoirService
}

func newInvFixture(t *testing.T) *invFixture {
	t.Helper()
	s, db := newTestStore(t)
	ctx := context.Background()

	author, err := s.Users().Create(ctx, &model.User{
		Email: "alice@example.test", PasswordHash: "x", DisplayName: "Alice", Role: model.RoleAuthor,
	})
	require.NoError(t, err)

	memoirs := NewMemoirService(s)
	m, err := memoirs.Create(ctx, author.UserID, &model.Memoir{Title: "War Years"})
	require.NoError(t, err)

	sender := &recordingSender{}
	svc := NewInvitationService(s, sender, "http://localhost:8080", 7*24*time.Hour)
	return &invFixture{store: s, db: db, svc: svc, sender: sender, author: author, memoir: m, memoirs: memoirs}
}

// pendingToken reads the issued token straight from storage; invitations are
// only addressable by token through the store API.
func pendingToken(t *testing.T, f *invFixture, email string) *model.Invitation {
	t.Helper()
	row := f.db.QueryRow(`SELECT Token FROM Invitations WHERE MemoirId = ? AND lower(InviteeEmail) = lower(?)`,
		f.memoir.MemoirID, email)
	var token string
	if err := row.Scan(&token); err != nil {
		t.Fatalf("no invitation for %s: %v", email, err)
	}
	inv, err := f.store.Invitations().GetByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	return inv
}

func TestInvite_FullAcceptFlow(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	invID, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	require.NoError(t, err)
	assert.NotEmpty(t, invID)
	assert.Equal(t, []string{"bob@x.com"}, f.sender.sent)

	// The invitee responds with the emailed token.
	inv := pendingToken(t, f, "bob@x.com")
	require.Len(t, inv.Token, 64)

	msg, err := f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	require.NoError(t, err)
	assert.Equal(t, "invitation accepted", msg)

	got, err := f.store.Invitations().GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, got.Status)

	m, err := f.store.Memoirs().Get(ctx, f.memoir.MemoirID)
	require.NoError(t, err)
	require.Len(t, m.Collaborators, 1)
	c := m.Collaborators[0]
	assert.Equal(t, model.CollabEditor, c.Role)
	assert.Equal(t, model.InviteAccepted, c.InviteStatus)
	assert.Equal(t, "bob@x.com", c.InviteEmail)
	assert.Nil(t, c.UserID) // bob has no account
}

func TestInvite_NotAuthor(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	stranger, err := f.store.Users().Create(ctx, &model.User{
		Email: "eve@example.test", PasswordHash: "x", DisplayName: "Eve", Role: model.RoleAuthor,
	})
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, stranger.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabViewer)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// Unknown memoir produces the same error.
	_, err2 := f.svc.Invite(ctx, f.author.UserID, "no-such-memoir", "bob@x.com", model.CollabViewer)
	assert.ErrorIs(t, err2, model.ErrNotFound)
	assert.Equal(t, err.Error(), err2.Error())
}

func TestInvite_DuplicateGuards(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	require.NoError(t, err)

	// Pending invitation already exists; case-insensitive on email.
	_, err = f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "BOB@X.com", model.CollabViewer)
	assert.ErrorIs(t, err, model.ErrConflict)

	// Accept, then re-invite the now-collaborator.
	inv := pendingToken(t, f, "bob@x.com")
	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	assert.ErrorIs(t, err, model.ErrConflict)

	// No second invitation record was created along the way.
	pending, err := f.store.Invitations().HasPending(ctx, f.memoir.MemoirID, "bob@x.com")
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestRespond_IdempotentAcceptance(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	// Simulate a partial failure: the collaborator row landed but the
	// invitation is still pending. The retry must converge, not duplicate.
	require.NoError(t, f.store.Memoirs().AddCollaborator(ctx, f.memoir.MemoirID, model.Collaborator{
		Role: model.CollabEditor, InviteStatus: model.InviteAccepted, InviteEmail: "bob@x.com",
	}))

	msg, err := f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	require.NoError(t, err)
	assert.Equal(t, "already a collaborator", msg)

	got, err := f.store.Invitations().GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, got.Status)

	m, err := f.store.Memoirs().Get(ctx, f.memoir.MemoirID)
	require.NoError(t, err)
	assert.Len(t, m.Collaborators, 1)
}

func TestRespond_DeclineRemovesNeverCreates(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabViewer)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	msg, err := f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "invitation declined", msg)

	_, err = f.store.Invitations().GetByToken(ctx, inv.Token)
	assert.ErrorIs(t, err, model.ErrNotFound)

	m, err := f.store.Memoirs().Get(ctx, f.memoir.MemoirID)
	require.NoError(t, err)
	assert.Empty(t, m.Collaborators)
}

func TestRespond_LazyExpiryIsSticky(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabViewer)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	f.svc.now = func() time.Time { return inv.ExpiresAt.Add(time.Minute) }

	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	assert.ErrorIs(t, err, model.ErrExpired)

	got, err := f.store.Invitations().GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, got.Status)

	// A later attempt, even back inside the original window, stays failed.
	f.svc.now = time.Now
	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	assert.ErrorIs(t, err, model.ErrConflict)
	got, _ = f.store.Invitations().GetByToken(ctx, inv.Token)
	assert.Equal(t, model.InvitationExpired, got.Status)
}

func TestRespond_MemoirMismatch(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabViewer)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	other, err := f.memoirs.Create(ctx, f.author.UserID, &model.Memoir{Title: "Another"})
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, other.MemoirID, inv.Token, true)
	assert.ErrorIs(t, err, model.ErrValidation)

	got, err := f.store.Invitations().GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationPending, got.Status)
}

func TestRespond_UnknownToken(t *testing.T) {
	f := newInvFixture(t)
	_, err := f.svc.Respond(context.Background(), f.memoir.MemoirID, "deadbeef", true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRespond_AlreadyResponded(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Contains(t, err.Error(), "accepted")
}

func TestRespond_MissingMemoirForcesExpiry(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	// Drop the memoir row behind the invitation's back to manufacture the
	// inconsistent state (the store's Delete would take the invitation too).
	if _, err := f.db.Exec(`DELETE FROM Memoirs WHERE MemoirId = ?`, f.memoir.MemoirID); err != nil {
		t.Fatalf("delete memoir row: %v", err)
	}

	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := f.store.Invitations().GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, got.Status)
}

func TestInvite_EmailFailureIsSwallowed(t *testing.T) {
	f := newInvFixture(t)
	f.sender.err = errors.New("smtp down")

	invID, err := f.svc.Invite(context.Background(), f.author.UserID, f.memoir.MemoirID, "bob@x.com", model.CollabEditor)
	require.NoError(t, err)
	assert.NotEmpty(t, invID)
}

func TestRespond_AcceptLinksExistingAccount(t *testing.T) {
	f := newInvFixture(t)
	ctx := context.Background()

	bob, err := f.store.Users().Create(ctx, &model.User{
		Email: "bob@x.com", PasswordHash: "x", DisplayName: "Bob", Role: model.RoleAgent,
	})
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, f.author.UserID, f.memoir.MemoirID, "Bob@X.com", model.CollabValidator)
	require.NoError(t, err)
	inv := pendingToken(t, f, "bob@x.com")

	_, err = f.svc.Respond(ctx, f.memoir.MemoirID, inv.Token, true)
	require.NoError(t, err)

	m, err := f.store.Memoirs().Get(ctx, f.memoir.MemoirID)
	require.NoError(t, err)
	require.Len(t, m.Collaborators, 1)
	require.NotNil(t, m.Collaborators[0].UserID)
	assert.Equal(t, bob.UserID, *m.Collaborators[0].UserID)
}
