package sqlite

import "database/sql"

// EnsureSchema creates core tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Users (
            UserId TEXT PRIMARY KEY,
            Email TEXT NOT NULL UNIQUE,
            PasswordHash TEXT NOT NULL,
            DisplayName TEXT NOT NULL,
            Role TEXT NOT NULL,
            AvatarUrl TEXT,
            Bio TEXT,
            ResetToken TEXT,
            ResetTokenExpires TIMESTAMP,
            CreationTime TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS Memoirs (
            MemoirId TEXT PRIMARY KEY,
            AuthorId TEXT NOT NULL,
            Title TEXT NOT NULL,
            Content TEXT NOT NULL DEFAULT '',
            CoverUrl TEXT,
            Status TEXT NOT NULL,
            Chapters TEXT NOT NULL DEFAULT '[]',
            CreationTime TIMESTAMP NOT NULL,
            UpdateTime TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS Memoirs_Author_Idx ON Memoirs(AuthorId);`,
		`CREATE TABLE IF NOT EXISTS MemoirCollaborators (
            MemoirId TEXT NOT NULL,
            UserId TEXT,
            Role TEXT NOT NULL,
            InviteStatus TEXT NOT NULL,
            InviteEmail TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS MemoirCollaborators_Memoir_Idx ON MemoirCollaborators(MemoirId);`,
		`CREATE TABLE IF NOT EXISTS Invitations (
            InvitationId TEXT PRIMARY KEY,
            MemoirId TEXT NOT NULL,
            InviteeEmail TEXT NOT NULL,
            Role TEXT NOT NULL,
            Token TEXT NOT NULL UNIQUE,
            Status TEXT NOT NULL,
            ExpiresAt TIMESTAMP NOT NULL,
            InvitedBy TEXT NOT NULL,
            CreationTime TIMESTAMP NOT NULL
        );`,
		// One pending invitation per (memoir, email); closes the duplicate
		// invite race at the storage level.
		`CREATE UNIQUE INDEX IF NOT EXISTS Invitations_Pending_Idx
            ON Invitations(MemoirId, lower(InviteeEmail)) WHERE Status = 'pending';`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
