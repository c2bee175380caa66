package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/memoirly/memoir-backend/internal/model"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail lowercases and trims an email address; comparison and
// storage both use the normalized form.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// -------- Request specific helpers ----------

// Register validates input for account creation and returns a per-field
// message map, empty on success.
func Register(email, password, name, role string) map[string]string {
	errs := map[string]string{}
	if err := Email(email); err != nil {
		errs["email"] = err.Error()
	}
	if len(password) < 8 {
		errs["password"] = "password must be at least 8 characters"
	}
	if err := NonEmpty("name", name); err != nil {
		errs["name"] = err.Error()
	}
	if !model.ValidUserRole(role) {
		errs["role"] = fmt.Sprintf("role must be one of %s, %s, %s, %s",
			model.RoleAuthor, model.RoleAgent, model.RolePublisher, model.RoleAdmin)
	}
	return errs
}

// MemoirCreate validates input for memoir creation and returns a per-field
// message map, empty on success.
func MemoirCreate(title, status string, chapters []model.Chapter) map[string]string {
	errs := map[string]string{}
	if err := NonEmpty("title", title); err != nil {
		errs["title"] = err.Error()
	} else if err := MaxLen("title", title, 200); err != nil {
		errs["title"] = err.Error()
	}
	if status != "" && !validStatus(status) {
		errs["status"] = fmt.Sprintf("status must be one of %s, %s, %s",
			model.StatusDraft, model.StatusSubmitted, model.StatusPublished)
	}
	for i, ch := range chapters {
		if ch.Title == "" {
			errs[fmt.Sprintf("chapters.%d.title", i)] = "chapter title is required"
		}
	}
	return errs
}

// MemoirPatch validates a partial update payload.
func MemoirPatch(p model.MemoirPatch) map[string]string {
	errs := map[string]string{}
	if p.Title != nil {
		if err := NonEmpty("title", *p.Title); err != nil {
			errs["title"] = err.Error()
		} else if err := MaxLen("title", *p.Title, 200); err != nil {
			errs["title"] = err.Error()
		}
	}
	if p.Status != nil && !validStatus(*p.Status) {
		errs["status"] = fmt.Sprintf("status must be one of %s, %s, %s",
			model.StatusDraft, model.StatusSubmitted, model.StatusPublished)
	}
	if p.Chapters != nil {
		for i, ch := range *p.Chapters {
			if ch.Title == "" {
				errs[fmt.Sprintf("chapters.%d.title", i)] = "chapter title is required"
			}
		}
	}
	return errs
}

// Invite validates input for issuing a collaborator invitation.
func Invite(email, role string) error {
	if err := Email(email); err != nil {
		return err
	}
	if !model.ValidCollaboratorRole(role) {
		return fmt.Errorf("role must be one of %s, %s, %s",
			model.CollabViewer, model.CollabEditor, model.CollabValidator)
	}
	return nil
}

func validStatus(s string) bool {
	switch s {
	case model.StatusDraft, model.StatusSubmitted, model.StatusPublished:
		return true
	}
	return false
}
