package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carecast/internal/domain"
	"carecast/internal/middleware"
	"carecast/internal/service"
)

type videoGenerateRequest struct {
	Script string `json:"script"`
}

type jobResponse struct {
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Status        string `json:"status"`
}

type jobStatusResponse struct {
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	VideoURL        string `json:"video_url,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Error           string `json:"error,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// VideosGenerate accepts a script and starts one avatar-video generation.
// The response distinguishes bad input from provider outages so the calling
// UI knows whether a retry button makes sense.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Jobs.Submit(r.Context(), service.SubmitInput{OwnerID: userID, Script: req.Script})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "bad_request", "script is required")
		case errors.Is(err, domain.ErrNotConfigured):
			a.error(w, http.StatusConflict, "avatar_not_configured", "no active avatar profile for this account")
		case errors.Is(err, domain.ErrProviderRejected):
			a.error(w, http.StatusUnprocessableEntity, "provider_rejected", err.Error())
		case errors.Is(err, domain.ErrProviderUnavailable):
			a.error(w, http.StatusBadGateway, "provider_unavailable", "video provider is unavailable, try again later")
		default:
			a.Logger.Error().Err(err).Msg("handlers: video submission failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to submit video job")
		}
		return
	}

	a.json(w, http.StatusAccepted, jobResponse{
		JobID:         job.ID,
		CorrelationID: job.CorrelationID,
		Status:        string(job.Status),
	})
}

// VideoStatus returns the owner's view of one generation job.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.GetStatus(r.Context(), jobID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrForbidden):
			a.error(w, http.StatusForbidden, "forbidden", "job belongs to another account")
		default:
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: status read failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		}
		return
	}

	resp := jobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Error:     job.ErrorDetail,
		CreatedAt: job.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: job.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if job.Result != nil {
		resp.VideoURL = job.Result.VideoURL
		resp.ThumbnailURL = job.Result.ThumbnailURL
		resp.DurationSeconds = job.Result.DurationSeconds
	}
	a.json(w, http.StatusOK, resp)
}
