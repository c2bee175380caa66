package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/memoirly/memoir-backend/internal/api/respond"
	"github.com/memoirly/memoir-backend/internal/api/validate"
	"github.com/memoirly/memoir-backend/internal/auth"
	"github.com/memoirly/memoir-backend/internal/model"
	"github.com/memoirly/memoir-backend/internal/services"
)

// MemoirHandler is a thin HTTP transport over MemoirService.
type MemoirHandler struct {
	svc *services.MemoirService
}

func NewMemoirHandler(svc *services.MemoirService) *MemoirHandler { return &MemoirHandler{svc: svc} }

// CreateMemoir POST /memoir
func (h *MemoirHandler) CreateMemoir(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if actor.Role != model.RoleAuthor {
		respond.WriteError(w, http.StatusForbidden, "only authors can create memoirs")
		return
	}
	var req struct {
		Title    string          `json:"title"`
		Content  string          `json:"content"`
		CoverURL *string         `json:"coverUrl"`
		Status   string          `json:"status"`
		Chapters []model.Chapter `json:"chapters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if errs := validate.MemoirCreate(req.Title, req.Status, req.Chapters); len(errs) > 0 {
		respond.WriteFieldErrors(w, errs)
		return
	}
	m := &model.Memoir{
		Title:    req.Title,
		Content:  req.Content,
		CoverURL: req.CoverURL,
		Status:   req.Status,
		Chapters: req.Chapters,
	}
	out, err := h.svc.Create(r.Context(), actor.UserID, m)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "memoir created",
		"memoir":  out,
	})
}

// ListMemoirs GET /memoir
//
// Returns only memoirs the caller authored. Memoirs readable through a
// collaborator grant do not appear here.
func (h *MemoirHandler) ListMemoirs(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	lst, err := h.svc.ListByAuthor(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if lst == nil {
		lst = []*model.Memoir{}
	}
	respond.WriteJSON(w, http.StatusOK, lst)
}

// GetMemoir GET /memoir/{memoirId}
func (h *MemoirHandler) GetMemoir(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	m, err := h.svc.GetForRead(r.Context(), actor.UserID, mux.Vars(r)["memoirId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, m)
}

// UpdateMemoir PUT /memoir/{memoirId}
//
// Partial replace. The patch type carries no author field, so an author
// value in the payload is dropped during decoding.
func (h *MemoirHandler) UpdateMemoir(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var patch model.MemoirPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if errs := validate.MemoirPatch(patch); len(errs) > 0 {
		respond.WriteFieldErrors(w, errs)
		return
	}
	m, err := h.svc.Update(r.Context(), actor.UserID, mux.Vars(r)["memoirId"], patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "memoir updated",
		"memoir":  m,
	})
}

// DeleteMemoir DELETE /memoir/{memoirId}
func (h *MemoirHandler) DeleteMemoir(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.svc.Delete(r.Context(), actor.UserID, mux.Vars(r)["memoirId"]); err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "memoir deleted"})
}
