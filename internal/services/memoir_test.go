package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

type memoirFixture struct {
	store  store.Store
	svc    *MemoirService
	author *model.User
	reader *model.User
}

func newMemoirFixture(t *testing.T) *memoirFixture {
	t.Helper()
	s, _ := newTestStore(t)
	ctx := context.Background()

	author, err := s.Users().Create(ctx, &model.User{
		Email: "alice@example.test", PasswordHash: "x", DisplayName: "Alice", Role: model.RoleAuthor,
	})
	require.NoError(t, err)
	reader, err := s.Users().Create(ctx, &model.User{
		Email: "bob@example.test", PasswordHash: "x", DisplayName: "Bob", Role: model.RoleAgent,
	})
	require.NoError(t, err)

	return &memoirFixture{store: s, svc: NewMemoirService(s), author: author, reader: reader}
}

func (f *memoirFixture) acceptedCollaborator(t *testing.T, memoirID string, u *model.User, role string) {
	t.Helper()
	err := f.store.Memoirs().AddCollaborator(context.Background(), memoirID, model.Collaborator{
		UserID:       &u.UserID,
		Role:         role,
		InviteStatus: model.InviteAccepted,
		InviteEmail:  u.Email,
	})
	require.NoError(t, err)
}

func TestMemoir_ReadWriteAsymmetry(t *testing.T) {
	f := newMemoirFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.author.UserID, &model.Memoir{Title: "Quiet Rivers"})
	require.NoError(t, err)

	// A stranger sees neither read nor write.
	_, err = f.svc.GetForRead(ctx, f.reader.UserID, m.MemoirID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.svc.GetForWrite(ctx, f.reader.UserID, m.MemoirID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// An accepted editor can read but still not write top-level fields.
	f.acceptedCollaborator(t, m.MemoirID, f.reader, model.CollabEditor)

	got, err := f.svc.GetForRead(ctx, f.reader.UserID, m.MemoirID)
	require.NoError(t, err)
	assert.Equal(t, "Quiet Rivers", got.Title)

	_, err = f.svc.GetForWrite(ctx, f.reader.UserID, m.MemoirID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	title := "Renamed"
	_, err = f.svc.Update(ctx, f.reader.UserID, m.MemoirID, model.MemoirPatch{Title: &title})
	assert.ErrorIs(t, err, model.ErrNotFound)

	// The author writes freely.
	upd, err := f.svc.Update(ctx, f.author.UserID, m.MemoirID, model.MemoirPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", upd.Title)
}

func TestMemoir_PendingCollaboratorCannotRead(t *testing.T) {
	f := newMemoirFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.author.UserID, &model.Memoir{Title: "Drafts"})
	require.NoError(t, err)

	err = f.store.Memoirs().AddCollaborator(ctx, m.MemoirID, model.Collaborator{
		UserID:       &f.reader.UserID,
		Role:         model.CollabViewer,
		InviteStatus: model.InvitePending,
		InviteEmail:  f.reader.Email,
	})
	require.NoError(t, err)

	_, err = f.svc.GetForRead(ctx, f.reader.UserID, m.MemoirID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoir_UpdateNeverChangesAuthor(t *testing.T) {
	f := newMemoirFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.author.UserID, &model.Memoir{
		Title:   "Original",
		Content: "body",
	})
	require.NoError(t, err)

	status := model.StatusPublished
	chapters := []model.Chapter{{Title: "One", Events: []model.Event{{Title: "Moving north", Content: "We left in 1968."}}}}
	upd, err := f.svc.Update(ctx, f.author.UserID, m.MemoirID, model.MemoirPatch{
		Status:   &status,
		Chapters: &chapters,
	})
	require.NoError(t, err)

	assert.Equal(t, f.author.UserID, upd.AuthorID)
	assert.Equal(t, model.StatusPublished, upd.Status)
	assert.Equal(t, "Original", upd.Title)
	assert.Equal(t, "body", upd.Content)
	require.Len(t, upd.Chapters, 1)
	require.Len(t, upd.Chapters[0].Events, 1)
	assert.Equal(t, "Moving north", upd.Chapters[0].Events[0].Title)
}

func TestMemoir_ListByAuthorExcludesCollaborations(t *testing.T) {
	f := newMemoirFixture(t)
	ctx := context.Background()

	mine, err := f.svc.Create(ctx, f.author.UserID, &model.Memoir{Title: "Mine"})
	require.NoError(t, err)

	theirs, err := f.svc.Create(ctx, f.reader.UserID, &model.Memoir{Title: "Theirs"})
	require.NoError(t, err)
	f.acceptedCollaborator(t, theirs.MemoirID, f.author, model.CollabEditor)

	// The author can read the collaboration but does not see it in their own
	// listing.
	_, err = f.svc.GetForRead(ctx, f.author.UserID, theirs.MemoirID)
	require.NoError(t, err)

	lst, err := f.svc.ListByAuthor(ctx, f.author.UserID)
	require.NoError(t, err)
	require.Len(t, lst, 1)
	assert.Equal(t, mine.MemoirID, lst[0].MemoirID)
}

func TestMemoir_ProfileResolution(t *testing.T) {
	f := newMemoirFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.author.UserID, &model.Memoir{Title: "Profiles"})
	require.NoError(t, err)
	f.acceptedCollaborator(t, m.MemoirID, f.reader, model.CollabViewer)

	// An email-only collaborator whose account never existed resolves to no
	// profile without failing the read.
	err = f.store.Memoirs().AddCollaborator(ctx, m.MemoirID, model.Collaborator{
		Role:         model.CollabViewer,
		InviteStatus: model.InvitePending,
		InviteEmail:  "ghost@example.test",
	})
	require.NoError(t, err)

	got, err := f.svc.GetForRead(ctx, f.author.UserID, m.MemoirID)
	require.NoError(t, err)

	require.NotNil(t, got.Author)
	assert.Equal(t, "Alice", got.Author.DisplayName)

	require.Len(t, got.Collaborators, 2)
	var linked, ghost *model.Collaborator
	for i := range got.Collaborators {
		c := &got.Collaborators[i]
		if c.InviteEmail == "ghost@example.test" {
			ghost = c
		} else {
			linked = c
		}
	}
	require.NotNil(t, linked)
	require.NotNil(t, linked.User)
	assert.Equal(t, "Bob", linked.User.DisplayName)
	require.NotNil(t, ghost)
	assert.Nil(t, ghost.User)
}

func TestMemoir_DeleteIsAuthorOnly(t *testing.T) {
	f := newMemoirFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.author.UserID, &model.Memoir{Title: "Ephemeral"})
	require.NoError(t, err)
	f.acceptedCollaborator(t, m.MemoirID, f.reader, model.CollabEditor)

	err = f.svc.Delete(ctx, f.reader.UserID, m.MemoirID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.author.UserID, m.MemoirID))
	_, err = f.store.Memoirs().Get(ctx, m.MemoirID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}