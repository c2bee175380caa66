package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoirly/memoir-backend/internal/auth"
	"github.com/memoirly/memoir-backend/internal/mail"
	"github.com/memoirly/memoir-backend/internal/services"
	"github.com/memoirly/memoir-backend/internal/store/sqlite"
)

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
	db     *sql.DB
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))

	st := sqlite.NewWithDB(db)
	tm := auth.NewTokenManager("api-test-secret", time.Hour)
	sender := mail.Nop{}

	router := NewRouter(Deps{
		Auth:        services.NewAuthService(st, tm, sender),
		Memoirs:     services.NewMemoirService(st),
		Invitations: services.NewInvitationService(st, sender, "http://localhost", 7*24*time.Hour),
		Tokens:      tm,
		DB:          db,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiFixture{t: t, server: server, db: db}
}

// doJSON performs a request and decodes the response body into a generic map.
func (f *apiFixture) doJSON(method, path, token string, body interface{}) (int, map[string]interface{}) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// registerAndLogin provisions an account and returns its bearer token and id.
func (f *apiFixture) registerAndLogin(email, role string) (token, userID string) {
	f.t.Helper()
	code, _ := f.doJSON("POST", "/auth/register", "", map[string]string{
		"email": email, "password": "hunter2hunter2", "displayName": "Test User", "role": role,
	})
	require.Equal(f.t, http.StatusCreated, code)

	code, body := f.doJSON("POST", "/auth/login", "", map[string]string{
		"email": email, "password": "hunter2hunter2",
	})
	require.Equal(f.t, http.StatusOK, code)
	token, _ = body["token"].(string)
	require.NotEmpty(f.t, token)
	user, _ := body["user"].(map[string]interface{})
	userID, _ = user["userId"].(string)
	require.NotEmpty(f.t, userID)
	return token, userID
}

// invitationToken reads the stored token for a pending invitation. Tokens
// travel by email in production so no API surface exposes them.
func (f *apiFixture) invitationToken(email string) string {
	f.t.Helper()
	var token string
	err := f.db.QueryRow(`SELECT Token FROM Invitations WHERE InviteeEmail = ?`, email).Scan(&token)
	require.NoError(f.t, err)
	return token
}

func TestAPI_AuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	token, userID := f.registerAndLogin("alice@example.test", "author")

	code, body := f.doJSON("GET", "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, userID, body["userId"])
	assert.Equal(t, "alice@example.test", body["email"])
	_, leaked := body["passwordHash"]
	assert.False(t, leaked)

	// Bad credentials and missing tokens are both 401.
	code, _ = f.doJSON("POST", "/auth/login", "", map[string]string{
		"email": "alice@example.test", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = f.doJSON("GET", "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAPI_RegisterValidation(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.doJSON("POST", "/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "short", "displayName": "", "role": "emperor",
	})
	require.Equal(t, http.StatusBadRequest, code)
	errs, _ := body["errors"].(map[string]interface{})
	for _, field := range []string{"email", "password", "name", "role"} {
		assert.Contains(t, errs, field)
	}
}

func TestAPI_MemoirCRUD(t *testing.T) {
	f := newAPIFixture(t)
	token, userID := f.registerAndLogin("alice@example.test", "author")

	code, body := f.doJSON("POST", "/memoir", token, map[string]interface{}{
		"title": "Harbor Lights",
		"chapters": []map[string]interface{}{
			{"title": "Arrival", "events": []map[string]string{{"title": "Docking", "content": "Fog all morning."}}},
		},
	})
	require.Equal(t, http.StatusCreated, code)
	memoir, _ := body["memoir"].(map[string]interface{})
	memoirID, _ := memoir["memoirId"].(string)
	require.NotEmpty(t, memoirID)
	assert.Equal(t, "draft", memoir["status"])
	assert.Equal(t, userID, memoir["authorId"])

	code, body = f.doJSON("GET", "/memoir/"+memoirID, token, nil)
	require.Equal(t, http.StatusOK, code)
	author, _ := body["author"].(map[string]interface{})
	require.NotNil(t, author)
	assert.Equal(t, "Test User", author["displayName"])

	// PUT with an author field in the payload never reassigns ownership.
	code, body = f.doJSON("PUT", "/memoir/"+memoirID, token, map[string]interface{}{
		"title":    "Harbor Lights, Revised",
		"authorId": "someone-else",
		"author":   "someone-else",
	})
	require.Equal(t, http.StatusOK, code)
	memoir, _ = body["memoir"].(map[string]interface{})
	assert.Equal(t, "Harbor Lights, Revised", memoir["title"])
	assert.Equal(t, userID, memoir["authorId"])

	code, _ = f.doJSON("DELETE", "/memoir/"+memoirID, token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = f.doJSON("GET", "/memoir/"+memoirID, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_OnlyAuthorsCreateMemoirs(t *testing.T) {
	f := newAPIFixture(t)
	token, _ := f.registerAndLogin("agent@example.test", "agent")

	code, _ := f.doJSON("POST", "/memoir", token, map[string]string{"title": "Not Mine To Write"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAPI_InviteAndRespondFlow(t *testing.T) {
	f := newAPIFixture(t)
	authorToken, _ := f.registerAndLogin("alice@example.test", "author")
	bobToken, _ := f.registerAndLogin("bob@example.test", "agent")

	code, body := f.doJSON("POST", "/memoir", authorToken, map[string]string{"title": "Shared Pages"})
	require.Equal(t, http.StatusCreated, code)
	memoir, _ := body["memoir"].(map[string]interface{})
	memoirID, _ := memoir["memoirId"].(string)

	// Bob cannot see the memoir before accepting.
	code, _ = f.doJSON("GET", "/memoir/"+memoirID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, body = f.doJSON("POST", "/memoir/"+memoirID+"/collaborators", authorToken, map[string]string{
		"email": "bob@example.test", "role": "editor",
	})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["invitationId"])

	// Duplicate invite while the first is pending.
	code, _ = f.doJSON("POST", "/memoir/"+memoirID+"/collaborators", authorToken, map[string]string{
		"email": "bob@example.test", "role": "viewer",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	// Accepting needs no bearer token.
	invToken := f.invitationToken("bob@example.test")
	code, body = f.doJSON("POST", "/memoir/"+memoirID+"/collaborators/respond", "", map[string]interface{}{
		"token": invToken, "accepted": true,
	})
	require.Equal(t, http.StatusOK, code, fmt.Sprintf("respond failed: %v", body))

	// Bob can now read but still not write or delete.
	code, body = f.doJSON("GET", "/memoir/"+memoirID, bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	collabs, _ := body["collaborators"].([]interface{})
	require.Len(t, collabs, 1)
	entry, _ := collabs[0].(map[string]interface{})
	assert.Equal(t, "editor", entry["role"])
	assert.Equal(t, "accepted", entry["inviteStatus"])

	code, _ = f.doJSON("PUT", "/memoir/"+memoirID, bobToken, map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.doJSON("DELETE", "/memoir/"+memoirID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// The collaboration does not appear in Bob's own listing.
	req, err := http.NewRequest("GET", f.server.URL+"/memoir", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bobToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var listing []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Empty(t, listing)
}

func TestAPI_RespondRejectsMismatchedMemoir(t *testing.T) {
	f := newAPIFixture(t)
	authorToken, _ := f.registerAndLogin("alice@example.test", "author")

	code, body := f.doJSON("POST", "/memoir", authorToken, map[string]string{"title": "Right Memoir"})
	require.Equal(t, http.StatusCreated, code)
	memoir, _ := body["memoir"].(map[string]interface{})
	memoirID, _ := memoir["memoirId"].(string)

	code, _ = f.doJSON("POST", "/memoir/"+memoirID+"/collaborators", authorToken, map[string]string{
		"email": "carol@example.test", "role": "viewer",
	})
	require.Equal(t, http.StatusOK, code)

	invToken := f.invitationToken("carol@example.test")
	code, _ = f.doJSON("POST", "/memoir/another-memoir-id/collaborators/respond", "", map[string]interface{}{
		"token": invToken, "accepted": true,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	// Unknown tokens are 404, missing params 400.
	code, _ = f.doJSON("POST", "/memoir/"+memoirID+"/collaborators/respond", "", map[string]interface{}{
		"token": "no-such-token", "accepted": true,
	})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.doJSON("POST", "/memoir/"+memoirID+"/collaborators/respond", "", map[string]interface{}{
		"token": invToken,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)
	code, body := f.doJSON("GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}
