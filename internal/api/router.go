package api

import (
	"github.com/gorilla/mux"

	"github.com/memoirly/memoir-backend/internal/api/recovery"
	"github.com/memoirly/memoir-backend/internal/auth"
	"github.com/memoirly/memoir-backend/internal/services"
)

// Deps carries everything the router needs wired up.
type Deps struct {
	Auth        *services.AuthService
	Memoirs     *services.MemoirService
	Invitations *services.InvitationService
	Tokens      *auth.TokenManager
	DB          Pinger
}

// NewRouter builds the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	authHandler := NewAuthHandler(d.Auth)
	memoirHandler := NewMemoirHandler(d.Memoirs)
	invitationHandler := NewInvitationHandler(d.Invitations)
	healthHandler := NewHealthHandler(d.DB)

	// Public endpoints. Invitation responses stay open because the invitee
	// may not hold an account yet.
	router.HandleFunc("/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/auth/forgot-password", authHandler.ForgotPassword).Methods("POST")
	router.HandleFunc("/auth/reset-password", authHandler.ResetPassword).Methods("POST")
	router.HandleFunc("/memoir/{memoirId}/collaborators/respond", invitationHandler.RespondToInvitation).Methods("POST")

	// Authenticated endpoints.
	secured := router.NewRoute().Subrouter()
	secured.Use(auth.Middleware(d.Tokens))
	secured.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	secured.HandleFunc("/memoir", memoirHandler.CreateMemoir).Methods("POST")
	secured.HandleFunc("/memoir", memoirHandler.ListMemoirs).Methods("GET")
	secured.HandleFunc("/memoir/{memoirId}", memoirHandler.GetMemoir).Methods("GET")
	secured.HandleFunc("/memoir/{memoirId}", memoirHandler.UpdateMemoir).Methods("PUT")
	secured.HandleFunc("/memoir/{memoirId}", memoirHandler.DeleteMemoir).Methods("DELETE")
	secured.HandleFunc("/memoir/{memoirId}/collaborators", invitationHandler.InviteCollaborator).Methods("POST")

	return router
}
