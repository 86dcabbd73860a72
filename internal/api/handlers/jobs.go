package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/jobs"
)

// JobsHandler enqueues reconcile jobs and reports on them.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueReconcile handles POST /api/reconcile
func (h *JobsHandler) EnqueueReconcile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	job := &jobs.ReconcileJob{OwnerID: ownerID}
	if err := h.publisher.PublishReconcile(r.Context(), job); err != nil {
		h.log.Error().Err(err).Int64("owner_id", ownerID).Msg("Failed to enqueue reconcile job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconcile job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Int64("owner_id", ownerID).Msg("Reconcile job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}. Jobs of other owners read as missing.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) || (err == nil && job.OwnerID != ownerID) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?status=&limit=&offset=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: ownerID,
		Status:  jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
