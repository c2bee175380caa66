package model

import "time"

// User roles.
const (
	RoleAuthor    = "author"
	RoleAgent     = "agent"
	RolePublisher = "publisher"
	RoleAdmin     = "admin"
)

// Collaborator roles.
const (
	CollabViewer    = "viewer"
	CollabEditor    = "editor"
	CollabValidator = "validator"
)

// Invite statuses carried on a collaborator entry.
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

// Invitation statuses. Declined invitations are deleted, never stored.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
)

// Memoir statuses.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusPublished = "published"
)

// User represents an account in the system. PasswordHash is never serialized.
type User struct {
	UserID            string     `json:"userId"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	DisplayName       string     `json:"displayName"`
	Role              string     `json:"role"`
	AvatarURL         *string    `json:"avatarUrl,omitempty"`
	Bio               *string    `json:"bio,omitempty"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreationTime      time.Time  `json:"creationTime"`
}

// Profile returns the public projection of a user.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		UserID:      u.UserID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
	}
}

// UserProfile is the public projection of a user embedded in read responses.
type UserProfile struct {
	UserID      string  `json:"userId"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	Role        string  `json:"role"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// Event is a delimited unit of chapter content.
type Event struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Chapter is an ordered section of a memoir. Chapters and their events have
// no lifecycle of their own; they live and die with the memoir.
type Chapter struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Events      []Event `json:"events,omitempty"`
}

// Collaborator is an entry in a memoir's collaborator list. UserID is nil
// when the invitee has no account yet.
type Collaborator struct {
	UserID       *string      `json:"userId,omitempty"`
	Role         string       `json:"role"`
	InviteStatus string       `json:"inviteStatus"`
	InviteEmail  string       `json:"inviteEmail"`
	User         *UserProfile `json:"user,omitempty"`
}

// Memoir is the owned content aggregate. AuthorID is immutable after
// creation; MemoirPatch has no author field so a generic update cannot
// touch it.
type Memoir struct {
	MemoirID      string         `json:"memoirId"`
	AuthorID      string         `json:"authorId"`
	Title         string         `json:"title"`
	Content       string         `json:"content,omitempty"`
	CoverURL      *string        `json:"coverUrl,omitempty"`
	Status        string         `json:"status"`
	Chapters      []Chapter      `json:"chapters"`
	Collaborators []Collaborator `json:"collaborators"`
	Author        *UserProfile   `json:"author,omitempty"`
	CreationTime  time.Time      `json:"creationTime"`
	UpdateTime    time.Time      `json:"updateTime"`
}

// MemoirPatch carries partial updates for a memoir. Only non-nil fields are
// applied.
type MemoirPatch struct {
	Title    *string    `json:"title,omitempty"`
	Content  *string    `json:"content,omitempty"`
	CoverURL *string    `json:"coverUrl,omitempty"`
	Status   *string    `json:"status,omitempty"`
	Chapters *[]Chapter `json:"chapters,omitempty"`
}

// Invitation is a standalone tokenized offer of collaborator access.
type Invitation struct {
	InvitationID string    `json:"invitationId"`
	MemoirID     string    `json:"memoirId"`
	InviteeEmail string    `json:"inviteeEmail"`
	Role         string    `json:"role"`
	Token        string    `json:"-"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expiresAt"`
	InvitedBy    string    `json:"invitedBy"`
	CreationTime time.Time `json:"creationTime"`
}

// ValidCollaboratorRole reports whether role is one of viewer, editor or
// validator.
func ValidCollaboratorRole(role string) bool {
	switch role {
	case CollabViewer, CollabEditor, CollabValidator:
		return true
	}
	return false
}

// ValidUserRole reports whether role is a recognised account role.
func ValidUserRole(role string) bool {
	switch role {
	case RoleAuthor, RoleAgent, RolePublisher, RoleAdmin:
		return true
	}
	return false
}
