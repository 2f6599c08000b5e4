package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/quietcut/quietcut/internal/api/middleware"
	"github.com/quietcut/quietcut/internal/api/response"
	"github.com/quietcut/quietcut/internal/dispatch"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/pkg/models"
)

// Submitter is the dispatch interface the create handler depends on.
type Submitter interface {
	Submit(ctx context.Context, r io.Reader, filename string, requested models.Tier, principal *models.Principal) (*models.Job, error)
}

// JobFinder resolves a job by id.
type JobFinder interface {
	FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// JobLister lists an owner's jobs, newest first.
type JobLister interface {
	ListJobsForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error)
}

// URLSigner issues time-limited download URLs for stored artifacts.
type URLSigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// NewCreateJobHandler returns the handler for POST /api/v1/jobs. The upload
// is a multipart form with a `file` part and a `tier` field; authentication
// is optional for the free tier.
func NewCreateJobHandler(svc Submitter, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)

		tier := models.Tier(r.FormValue("tier"))
		if tier == "" {
			tier = models.TierFree
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
			return
		}
		defer file.Close()

		if ct := header.Header.Get("Content-Type"); ct != "" && !isVideo(ct) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file must be a video", nil)
			return
		}

		job, err := svc.Submit(r.Context(), file, header.Filename, tier, mw.GetPrincipal(r))
		if err != nil {
			switch {
			case errors.Is(err, dispatch.ErrIneligible):
				response.Error(w, http.StatusUnprocessableEntity, "INELIGIBLE_TIER", err.Error(), nil)
			case errors.Is(err, dispatch.ErrInvalidUpload):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, job.View())
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
// Anonymous jobs are visible to anyone holding the id; owned jobs only to
// their owner.
func NewGetJobHandler(finder JobFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := resolveJob(w, r, finder)
		if !ok {
			return
		}
		response.JSON(w, job.View())
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs. Requires
// authentication; only the caller's own jobs are returned.
func NewListJobsHandler(lister JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := mw.GetPrincipal(r)
		if p == nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required", nil)
			return
		}

		jobs, err := lister.ListJobsForOwner(r.Context(), p.AccountID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		views := make([]models.JobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, j.View())
		}
		response.JSON(w, views)
	}
}

// NewDownloadHandler returns the handler for GET /api/v1/jobs/{jobID}/download.
// Completed jobs redirect to a presigned artifact URL.
func NewDownloadHandler(finder JobFinder, signer URLSigner, expiry time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := resolveJob(w, r, finder)
		if !ok {
			return
		}

		if job.State != models.JobStateCompleted || job.ArtifactKey == nil {
			response.Error(w, http.StatusConflict, "NOT_READY",
				"Job has not completed", map[string]string{"state": job.State})
			return
		}

		u, err := signer.PresignedURL(r.Context(), *job.ArtifactKey, expiry)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		http.Redirect(w, r, u, http.StatusTemporaryRedirect)
	}
}

// resolveJob parses the id, loads the job, and enforces the ownership rule.
// Writes the error response itself when it returns false.
func resolveJob(w http.ResponseWriter, r *http.Request, finder JobFinder) (*models.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
		return nil, false
	}

	job, err := finder.FindJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return nil, false
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
		return nil, false
	}

	if job.OwnerID != nil {
		p := mw.GetPrincipal(r)
		if p == nil || p.AccountID != *job.OwnerID {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
			return nil, false
		}
	}
	return job, true
}

func isVideo(contentType string) bool {
	return len(contentType) >= 6 && contentType[:6] == "video/"
}
