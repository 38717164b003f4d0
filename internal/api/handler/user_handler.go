package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/ricirt/feedhub/internal/api/middleware"
	"github.com/ricirt/feedhub/internal/service"
)

type createUserRequest struct {
	Username string `json:"username"`
}

type followResponse struct {
	Following bool `json:"following"`
	Changed   bool `json:"changed"`
}

// UserHandler serves user creation, listing and the follow graph.
type UserHandler struct {
	svc    *service.UserService
	logger *zap.Logger
}

func NewUserHandler(svc *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/users
//
// @Summary  Register a user
// @Tags     users
// @Accept   json
// @Produce  json
// @Success  201  {object}  domain.User
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.Create(r.Context(), req.Username)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

// List handles GET /api/v1/users
//
// @Summary  List every user except the caller
// @Tags     users
// @Produce  json
// @Success  200  {array}  domain.UserListing
// @Router   /api/v1/users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListOthers(r.Context(), apimw.GetUserID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// Follow handles POST /api/v1/users/{id}/follow
//
// @Summary  Follow a user
// @Tags     users
// @Produce  json
// @Param    X-User-ID  header    string  true  "Caller"
// @Success  200        {object}  followResponse
// @Failure  404        {object}  map[string]string
// @Failure  422        {object}  map[string]string
// @Router   /api/v1/users/{id}/follow [post]
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	caller := apimw.GetUserID(r.Context())
	changed, err := h.svc.Follow(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Debug("follow failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, followResponse{Following: true, Changed: changed})
}

// Unfollow handles DELETE /api/v1/users/{id}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	caller := apimw.GetUserID(r.Context())
	changed, err := h.svc.Unfollow(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, followResponse{Following: false, Changed: changed})
}
