package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/ricirt/feedhub/internal/api/middleware"
	"github.com/ricirt/feedhub/internal/service"
	"github.com/ricirt/feedhub/internal/timeline"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// PostHandler serves post writes, likes and the read views built by the
// timeline aggregator.
type PostHandler struct {
	svc    *service.PostService
	feed   *timeline.Aggregator
	logger *zap.Logger
}

func NewPostHandler(svc *service.PostService, feed *timeline.Aggregator, logger *zap.Logger) *PostHandler {
	return &PostHandler{svc: svc, feed: feed, logger: logger}
}

// Create handles POST /api/v1/posts
//
// The post is created by a background job after the configured delay; the
// response only acknowledges the deferral.
//
// @Summary  Schedule a post
// @Tags     posts
// @Accept   json
// @Produce  json
// @Param    X-User-ID  header    string                     true  "Author"
// @Param    body       body      service.CreatePostRequest  true  "Post body"
// @Success  202        {object}  service.CreatePostAck
// @Failure  422        {object}  map[string]string
// @Failure  429        {object}  map[string]string
// @Router   /api/v1/posts [post]
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ack, err := h.svc.EnqueueCreatePost(r.Context(), apimw.GetUserID(r.Context()), req)
	if err != nil {
		h.logger.Warn("schedule post failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ack)
}

// List handles GET /api/v1/posts
//
// @Summary  All posts, newest first
// @Tags     posts
// @Produce  json
// @Param    limit  query  int  false  "Max results (default 50, max 200)"
// @Success  200    {array}  domain.PostView
// @Router   /api/v1/posts [get]
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit, maxListLimit)
	views, err := h.feed.ListAll(r.Context(), apimw.GetUserID(r.Context()), uint64(limit))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// Mine handles GET /api/v1/posts/mine
func (h *PostHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := apimw.GetUserID(r.Context())
	views, err := h.feed.ListByAuthor(r.Context(), caller, caller)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// ByAuthor handles GET /api/v1/users/{id}/posts
func (h *PostHandler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	views, err := h.feed.ListByAuthor(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// Timeline handles GET /api/v1/timeline
//
// @Summary  Posts by the caller and everyone they follow, newest first
// @Tags     posts
// @Produce  json
// @Param    X-User-ID  header   string  true  "Viewer"
// @Success  200        {array}  domain.PostView
// @Failure  404        {object} map[string]string
// @Router   /api/v1/timeline [get]
func (h *PostHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	views, err := h.feed.GetTimeline(r.Context(), apimw.GetUserID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// Get handles GET /api/v1/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.feed.GetPost(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Update handles PUT /api/v1/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context())); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /api/v1/posts/{id}/like
//
// @Summary  Like a post
// @Tags     posts
// @Produce  json
// @Param    X-User-ID  header    string  true  "Liker"
// @Success  200        {object}  domain.LikeResult
// @Failure  404        {object}  map[string]string
// @Router   /api/v1/posts/{id}/like [post]
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Like(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Unlike handles DELETE /api/v1/posts/{id}/like
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Unlike(r.Context(), chi.URLParam(r, "id"), apimw.GetUserID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
