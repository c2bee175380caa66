package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/memoirly/memoir-backend/internal/api/respond"
	"github.com/memoirly/memoir-backend/internal/api/validate"
	"github.com/memoirly/memoir-backend/internal/auth"
	"github.com/memoirly/memoir-backend/internal/services"
)

// InvitationHandler is a thin HTTP transport over InvitationService.
type InvitationHandler struct {
	svc *services.InvitationService
}

func NewInvitationHandler(svc *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{svc: svc}
}

// InviteCollaborator POST /memoir/{memoirId}/collaborators
func (h *InvitationHandler) InviteCollaborator(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validate.Invite(req.Email, req.Role); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	invID, err := h.svc.Invite(r.Context(), actor.UserID, mux.Vars(r)["memoirId"], req.Email, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"message":      "invitation sent",
		"invitationId": invID,
	})
}

// RespondToInvitation POST /memoir/{memoirId}/collaborators/respond
//
// Not gated by authentication: the invitee may not hold an account yet, and
// possession of the token is what authorizes the response.
func (h *InvitationHandler) RespondToInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Accepted *bool  `json:"accepted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if req.Token == "" {
		respond.WriteBadRequest(w, "token is required")
		return
	}
	if req.Accepted == nil {
		respond.WriteBadRequest(w, "accepted is required")
		return
	}
	msg, err := h.svc.Respond(r.Context(), mux.Vars(r)["memoirId"], req.Token, *req.Accepted)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}
