package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

// NewWithDB constructs a SQLite store backed by an existing connection.
func NewWithDB(db *sql.DB) store.Store { return &sqlStore{db: db} }

type sqlStore struct{ db *sql.DB }

func (s *sqlStore) Users() store.Users             { return &users{db: s.db} }
func (s *sqlStore) Memoirs() store.Memoirs         { return &memoirs{db: s.db} }
func (s *sqlStore) Invitations() store.Invitations { return &invitations{db: s.db} }

// HealthPing implements health probing for the SQLite-backed store.
func (s *sqlStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if strings.Contains(err.Error(), "constraint") {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := u.db.ExecContext(ctx, `
        INSERT INTO Users (UserId, Email, PasswordHash, DisplayName, Role, AvatarUrl, Bio, CreationTime)
        VALUES (?,?,?,?,?,?,?,?)`,
		id, m.Email, m.PasswordHash, m.DisplayName, m.Role, m.AvatarURL, m.Bio, now)
	if err != nil {
		return nil, mapErr(err)
	}
	out := *m
	out.UserID = id
	out.CreationTime = now
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT UserId, Email, PasswordHash, DisplayName, Role, AvatarUrl, Bio, ResetToken, ResetTokenExpires, CreationTime
        FROM Users WHERE UserId = ?`, userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT UserId, Email, PasswordHash, DisplayName, Role, AvatarUrl, Bio, ResetToken, ResetTokenExpires, CreationTime
        FROM Users WHERE lower(Email) = lower(?)`, email)
	return scanUser(row)
}

func (u *users) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
        SELECT UserId, Email, PasswordHash, DisplayName, Role, AvatarUrl, Bio, ResetToken, ResetTokenExpires, CreationTime
        FROM Users WHERE ResetToken = ?`, token)
	return scanUser(row)
}

func (u *users) SetResetToken(ctx context.Context, userID string, token *string, expires *time.Time) error {
	res, err := u.db.ExecContext(ctx, `UPDATE Users SET ResetToken = ?, ResetTokenExpires = ? WHERE UserId = ?`,
		token, expires, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (u *users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := u.db.ExecContext(ctx, `
        UPDATE Users SET PasswordHash = ?, ResetToken = NULL, ResetTokenExpires = NULL WHERE UserId = ?`,
		passwordHash, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var out model.User
	if err := row.Scan(&out.UserID, &out.Email, &out.PasswordHash, &out.DisplayName, &out.Role,
		&out.AvatarURL, &out.Bio, &out.ResetToken, &out.ResetTokenExpires, &out.CreationTime); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Memoirs ---

type memoirs struct{ db *sql.DB }

func (m *memoirs) Create(ctx context.Context, mm *model.Memoir) (*model.Memoir, error) {
	id := mm.MemoirID
	if id == "" {
		id = uuid.New().String()
	}
	status := mm.Status
	if status == "" {
		status = model.StatusDraft
	}
	chapters, err := marshalChapters(mm.Chapters)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = m.db.ExecContext(ctx, `
        INSERT INTO Memoirs (MemoirId, AuthorId, Title, Content, CoverUrl, Status, Chapters, CreationTime, UpdateTime)
        VALUES (?,?,?,?,?,?,?,?,?)`,
		id, mm.AuthorID, mm.Title, mm.Content, mm.CoverURL, status, chapters, now, now)
	if err != nil {
		return nil, mapErr(err)
	}
	out := *mm
	out.MemoirID = id
	out.Status = status
	out.CreationTime = now
	out.UpdateTime = now
	if out.Chapters == nil {
		out.Chapters = []model.Chapter{}
	}
	out.Collaborators = []model.Collaborator{}
	return &out, nil
}

func (m *memoirs) Get(ctx context.Context, memoirID string) (*model.Memoir, error) {
	row := m.db.QueryRowContext(ctx, `
        SELECT MemoirId, AuthorId, Title, Content, CoverUrl, Status, Chapters, CreationTime, UpdateTime
        FROM Memoirs WHERE MemoirId = ?`, memoirID)
	out, err := scanMemoir(row.Scan)
	if err != nil {
		return nil, err
	}
	collabs, err := m.loadCollaborators(ctx, memoirID)
	if err != nil {
		return nil, err
	}
	out.Collaborators = collabs
	return out, nil
}

func (m *memoirs) ListByAuthor(ctx context.Context, authorID string) ([]*model.Memoir, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT MemoirId, AuthorId, Title, Content, CoverUrl, Status, Chapters, CreationTime, UpdateTime
        FROM Memoirs WHERE AuthorId = ? ORDER BY CreationTime DESC`, authorID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Memoir
	for rows.Next() {
		mm, err := scanMemoir(rows.Scan)
		if err != nil {
			return nil, err
		}
		collabs, err := m.loadCollaborators(ctx, mm.MemoirID)
		if err != nil {
			return nil, err
		}
		mm.Collaborators = collabs
		res = append(res, mm)
	}
	return res, rows.Err()
}

func (m *memoirs) Update(ctx context.Context, memoirID string, patch model.MemoirPatch) (*model.Memoir, error) {
	set := []string{"UpdateTime = ?"}
	args := []interface{}{time.Now().UTC()}
	if patch.Title != nil {
		set = append(set, "Title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		set = append(set, "Content = ?")
		args = append(args, *patch.Content)
	}
	if patch.CoverURL != nil {
		set = append(set, "CoverUrl = ?")
		args = append(args, *patch.CoverURL)
	}
	if patch.Status != nil {
		set = append(set, "Status = ?")
		args = append(args, *patch.Status)
	}
	if patch.Chapters != nil {
		chapters, err := marshalChapters(*patch.Chapters)
		if err != nil {
			return nil, err
		}
		set = append(set, "Chapters = ?")
		args = append(args, chapters)
	}
	args = append(args, memoirID)
	res, err := m.db.ExecContext(ctx,
		"UPDATE Memoirs SET "+strings.Join(set, ", ")+" WHERE MemoirId = ?", args...)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return m.Get(ctx, memoirID)
}

func (m *memoirs) Delete(ctx context.Context, memoirID string) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM Memoirs WHERE MemoirId = ?`, memoirID)
	if err != nil {
		return mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM MemoirCollaborators WHERE MemoirId = ?`, memoirID); err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM Invitations WHERE MemoirId = ?`, memoirID); err != nil {
		return mapErr(err)
	}
	return tx.Commit()
}

func (m *memoirs) AddCollaborator(ctx context.Context, memoirID string, c model.Collaborator) error {
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO MemoirCollaborators (MemoirId, UserId, Role, InviteStatus, InviteEmail)
        VALUES (?,?,?,?,?)`,
		memoirID, c.UserID, c.Role, c.InviteStatus, c.InviteEmail)
	return mapErr(err)
}

func (m *memoirs) loadCollaborators(ctx context.Context, memoirID string) ([]model.Collaborator, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT UserId, Role, InviteStatus, InviteEmail
        FROM MemoirCollaborators WHERE MemoirId = ? ORDER BY rowid`, memoirID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()
	collabs := []model.Collaborator{}
	for rows.Next() {
		var c model.Collaborator
		if err := rows.Scan(&c.UserID, &c.Role, &c.InviteStatus, &c.InviteEmail); err != nil {
			return nil, err
		}
		collabs = append(collabs, c)
	}
	return collabs, rows.Err()
}

func scanMemoir(scan func(dest ...interface{}) error) (*model.Memoir, error) {
	var out model.Memoir
	var chapters string
	if err := scan(&out.MemoirID, &out.AuthorID, &out.Title, &out.Content, &out.CoverURL,
		&out.Status, &chapters, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal([]byte(chapters), &out.Chapters); err != nil {
		return nil, fmt.Errorf("decode chapters: %w", err)
	}
	if out.Chapters == nil {
		out.Chapters = []model.Chapter{}
	}
	return &out, nil
}

func marshalChapters(chapters []model.Chapter) (string, error) {
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	b, err := json.Marshal(chapters)
	if err != nil {
		return "", fmt.Errorf("encode chapters: %w", err)
	}
	return string(b), nil
}

// --- Invitations ---

type invitations struct{ db *sql.DB }

func (i *invitations) Create(ctx context.Context, inv *model.Invitation) (*model.Invitation, error) {
	id := inv.InvitationID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := i.db.ExecContext(ctx, `
        INSERT INTO Invitations (InvitationId, MemoirId, InviteeEmail, Role, Token, Status, ExpiresAt, InvitedBy, CreationTime)
        VALUES (?,?,?,?,?,?,?,?,?)`,
		id, inv.MemoirID, inv.InviteeEmail, inv.Role, inv.Token, inv.Status, inv.ExpiresAt.UTC(), inv.InvitedBy, now)
	if err != nil {
		return nil, mapErr(err)
	}
	out := *inv
	out.InvitationID = id
	out.CreationTime = now
	return &out, nil
}

func (i *invitations) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	var out model.Invitation
	row := i.db.QueryRowContext(ctx, `
        SELECT InvitationId, MemoirId, InviteeEmail, Role, Token, Status, ExpiresAt, InvitedBy, CreationTime
        FROM Invitations WHERE Token = ?`, token)
	if err := row.Scan(&out.InvitationID, &out.MemoirID, &out.InviteeEmail, &out.Role, &out.Token,
		&out.Status, &out.ExpiresAt, &out.InvitedBy, &out.CreationTime); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (i *invitations) HasPending(ctx context.Context, memoirID, email string) (bool, error) {
	var one int
	row := i.db.QueryRowContext(ctx, `
        SELECT 1 FROM Invitations WHERE MemoirId = ? AND lower(InviteeEmail) = lower(?) AND Status = 'pending'`,
		memoirID, email)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (i *invitations) UpdateStatus(ctx context.Context, invitationID, status string) error {
	res, err := i.db.ExecContext(ctx, `UPDATE Invitations SET Status = ? WHERE InvitationId = ?`, status, invitationID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (i *invitations) Delete(ctx context.Context, invitationID string) error {
	res, err := i.db.ExecContext(ctx, `DELETE FROM Invitations WHERE InvitationId = ?`, invitationID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (i *invitations) Accept(ctx context.Context, invitationID, memoirID string, c model.Collaborator) error {
	tx, err := i.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO MemoirCollaborators (MemoirId, UserId, Role, InviteStatus, InviteEmail)
        VALUES (?,?,?,?,?)`,
		memoirID, c.UserID, c.Role, c.InviteStatus, c.InviteEmail); err != nil {
		return mapErr(err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE Invitations SET Status = ? WHERE InvitationId = ?`,
		model.InvitationAccepted, invitationID)
	if err != nil {
		return mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}
