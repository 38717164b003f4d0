package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/ricirt/feedhub/internal/api/middleware"
	"github.com/ricirt/feedhub/internal/service"
)

type commentRequest struct {
	Content string `json:"content"`
}

type CommentHandler struct {
	svc    *service.CommentService
	logger *zap.Logger
}

func NewCommentHandler(svc *service.CommentService, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/posts/{id}/comments
//
// @Summary  Comment on a post
// @Tags     comments
// @Accept   json
// @Produce  json
// @Param    X-User-ID  header    string  true  "Commenter"
// @Success  201        {object}  domain.Comment
// @Failure  404        {object}  map[string]string
// @Failure  422        {object}  map[string]string
// @Router   /api/v1/posts/{id}/comments [post]
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.AddComment(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()), req.Content)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/posts/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListByPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// Update handles PUT /api/v1/comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()), req.Content)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context())); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
