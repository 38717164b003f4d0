package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ricirt/feedhub/internal/queue"
)

// JobHandler exposes job state for operators: single lookups and the
// dead-letter list.
type JobHandler struct {
	broker *queue.Broker
}

func NewJobHandler(broker *queue.Broker) *JobHandler {
	return &JobHandler{broker: broker}
}

// Get handles GET /api/v1/jobs/{id}
//
// @Summary  Get a job by ID
// @Tags     jobs
// @Produce  json
// @Success  200  {object}  domain.Job
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/jobs/{id} [get]
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.broker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// DeadLettered handles GET /api/v1/jobs/dead
//
// @Summary  Jobs that exhausted their attempts, most recent first
// @Tags     jobs
// @Produce  json
// @Param    limit  query    int  false  "Max results (default 50, max 200)"
// @Success  200    {array}  domain.Job
// @Router   /api/v1/jobs/dead [get]
func (h *JobHandler) DeadLettered(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.broker.DeadLettered(r.Context(), queryLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}
