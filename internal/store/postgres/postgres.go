package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users             { return &users{db: s.db} }
func (s *pgStore) Memoirs() store.Memoirs         { return &memoirs{db: s.db} }
func (s *pgStore) Invitations() store.Invitations { return &invitations{db: s.db} }

// HealthPing implements health probing for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap opens a connection and applies the schema. Safe to call on every
// startup; all statements are idempotent.
func Bootstrap(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
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

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, email, password_hash, display_name, role, avatar_url, bio)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING creation_time
    `, id, m.Email, m.PasswordHash, m.DisplayName, m.Role, m.AvatarURL, m.Bio)
	if err := row.Scan(&created); err != nil {
		return nil, mapErr(err)
	}
	out := *m
	out.UserID = id
	out.CreationTime = created
	return &out, nil
}

const userColumns = `user_id, email, password_hash, display_name, role, avatar_url, bio, reset_token, reset_token_expires, creation_time`

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (u *users) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token=$1`, token)
	return scanUser(row)
}

func (u *users) SetResetToken(ctx context.Context, userID string, token *string, expires *time.Time) error {
	res, err := u.db.ExecContext(ctx, `UPDATE users SET reset_token=$1, reset_token_expires=$2 WHERE user_id=$3`,
		token, expires, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (u *users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := u.db.ExecContext(ctx, `
        UPDATE users SET password_hash=$1, reset_token=NULL, reset_token_expires=NULL WHERE user_id=$2`,
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
	var created time.Time
	row := m.db.QueryRowContext(ctx, `
        INSERT INTO memoirs (memoir_id, author_id, title, content, cover_url, status, chapters)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING creation_time
    `, id, mm.AuthorID, mm.Title, mm.Content, mm.CoverURL, status, chapters)
	if err := row.Scan(&created); err != nil {
		return nil, mapErr(err)
	}
	out := *mm
	out.MemoirID = id
	out.Status = status
	out.CreationTime = created
	out.UpdateTime = created
	if out.Chapters == nil {
		out.Chapters = []model.Chapter{}
	}
	out.Collaborators = []model.Collaborator{}
	return &out, nil
}

const memoirColumns = `memoir_id, author_id, title, content, cover_url, status, chapters, creation_time, update_time`

func (m *memoirs) Get(ctx context.Context, memoirID string) (*model.Memoir, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+memoirColumns+` FROM memoirs WHERE memoir_id=$1`, memoirID)
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
        SELECT `+memoirColumns+` FROM memoirs WHERE author_id=$1 ORDER BY creation_time DESC`, authorID)
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
	set := []string{"update_time = now()"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if patch.Title != nil {
		set = append(set, "title = "+arg(*patch.Title))
	}
	if patch.Content != nil {
		set = append(set, "content = "+arg(*patch.Content))
	}
	if patch.CoverURL != nil {
		set = append(set, "cover_url = "+arg(*patch.CoverURL))
	}
	if patch.Status != nil {
		set = append(set, "status = "+arg(*patch.Status))
	}
	if patch.Chapters != nil {
		chapters, err := marshalChapters(*patch.Chapters)
		if err != nil {
			return nil, err
		}
		set = append(set, "chapters = "+arg(chapters))
	}
	args = append(args, memoirID)
	res, err := m.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE memoirs SET %s WHERE memoir_id = $%d", strings.Join(set, ", "), len(args)),
		args...)
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

	res, err := tx.ExecContext(ctx, `DELETE FROM memoirs WHERE memoir_id=$1`, memoirID)
	if err != nil {
		return mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memoir_collaborators WHERE memoir_id=$1`, memoirID); err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE memoir_id=$1`, memoirID); err != nil {
		return mapErr(err)
	}
	return tx.Commit()
}

func (m *memoirs) AddCollaborator(ctx context.Context, memoirID string, c model.Collaborator) error {
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO memoir_collaborators (memoir_id, user_id, role, invite_status, invite_email)
        VALUES ($1,$2,$3,$4,$5)`,
		memoirID, c.UserID, c.Role, c.InviteStatus, c.InviteEmail)
	return mapErr(err)
}

func (m *memoirs) loadCollaborators(ctx context.Context, memoirID string) ([]model.Collaborator, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT user_id, role, invite_status, invite_email
        FROM memoir_collaborators WHERE memoir_id=$1 ORDER BY position`, memoirID)
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
	var chapters []byte
	if err := scan(&out.MemoirID, &out.AuthorID, &out.Title, &out.Content, &out.CoverURL,
		&out.Status, &chapters, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(chapters, &out.Chapters); err != nil {
		return nil, fmt.Errorf("decode chapters: %w", err)
	}
	if out.Chapters == nil {
		out.Chapters = []model.Chapter{}
	}
	return &out, nil
}

func marshalChapters(chapters []model.Chapter) ([]byte, error) {
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	b, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("encode chapters: %w", err)
	}
	return b, nil
}

// --- Invitations ---

type invitations struct{ db *sql.DB }

func (i *invitations) Create(ctx context.Context, inv *model.Invitation) (*model.Invitation, error) {
	id := inv.InvitationID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	row := i.db.QueryRowContext(ctx, `
        INSERT INTO invitations (invitation_id, memoir_id, invitee_email, role, token, status, expires_at, invited_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING creation_time
    `, id, inv.MemoirID, inv.InviteeEmail, inv.Role, inv.Token, inv.Status, inv.ExpiresAt.UTC(), inv.InvitedBy)
	if err := row.Scan(&created); err != nil {
		return nil, mapErr(err)
	}
	out := *inv
	out.InvitationID = id
	out.CreationTime = created
	return &out, nil
}

func (i *invitations) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	var out model.Invitation
	row := i.db.QueryRowContext(ctx, `
        SELECT invitation_id, memoir_id, invitee_email, role, token, status, expires_at, invited_by, creation_time
        FROM invitations WHERE token=$1`, token)
	if err := row.Scan(&out.InvitationID, &out.MemoirID, &out.InviteeEmail, &out.Role, &out.Token,
		&out.Status, &out.ExpiresAt, &out.InvitedBy, &out.CreationTime); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (i *invitations) HasPending(ctx context.Context, memoirID, email string) (bool, error) {
	var one int
	row := i.db.QueryRowContext(ctx, `
        SELECT 1 FROM invitations WHERE memoir_id=$1 AND lower(invitee_email)=lower($2) AND status='pending'`,
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
	res, err := i.db.ExecContext(ctx, `UPDATE invitations SET status=$1 WHERE invitation_id=$2`, status, invitationID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (i *invitations) Delete(ctx context.Context, invitationID string) error {
	res, err := i.db.ExecContext(ctx, `DELETE FROM invitations WHERE invitation_id=$1`, invitationID)
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
        INSERT INTO memoir_collaborators (memoir_id, user_id, role, invite_status, invite_email)
        VALUES ($1,$2,$3,$4,$5)`,
		memoirID, c.UserID, c.Role, c.InviteStatus, c.InviteEmail); err != nil {
		return mapErr(err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE invitations SET status=$1 WHERE invitation_id=$2`,
		model.InvitationAccepted, invitationID)
	if err != nil {
		return mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}
