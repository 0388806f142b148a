package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carecast/internal/domain"
	"carecast/internal/infra"
	"carecast/internal/providers/avatar"
)

// ProviderClient is the outbound surface of the avatar-video provider used
// by the service. *avatar.Client satisfies it; tests inject fakes.
type ProviderClient interface {
	Submit(ctx context.Context, req avatar.SubmitRequest) (string, error)
	PollStatus(ctx context.Context, correlationID string) (*avatar.StatusSnapshot, error)
}

// JobService owns the generation job lifecycle: it is the only component
// that writes job state, regardless of whether the trigger was a submission,
// a provider webhook, a staleness-driven poll, or the external sweep.
type JobService struct {
	repo      domain.JobRepository
	profiles  domain.ProfileProvider
	client    ProviderClient
	logger    infra.Logger
	staleness time.Duration
	now       func() time.Time
}

// NewJobService wires the service with explicit dependencies.
func NewJobService(repo domain.JobRepository, profiles domain.ProfileProvider, client ProviderClient, logger infra.Logger, staleness time.Duration) *JobService {
	if staleness <= 0 {
		staleness = 2 * time.Minute
	}
	return &JobService{
		repo:      repo,
		profiles:  profiles,
		client:    client,
		logger:    logger,
		staleness: staleness,
		now:       time.Now,
	}
}

// SubmitInput carries a caller's generation request.
type SubmitInput struct {
	OwnerID string
	Script  string
}

// Submit creates a pending job, hands it to the provider, and binds the
// provider's correlation ID. On a provider rejection the job is finalized
// failed (the same input will never succeed); on a transient outage the job
// stays pending and the error is surfaced so the caller can decide whether
// to retry — the client never re-submits on its own because a duplicate
// submission is a duplicate billable render.
func (s *JobService) Submit(ctx context.Context, input SubmitInput) (*domain.GenerationJob, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	script := strings.TrimSpace(input.Script)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if script == "" {
		return nil, fmt.Errorf("%w: script is required", domain.ErrValidation)
	}

	creds, err := s.profiles.GetActiveAvatarCredentials(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	job := &domain.GenerationJob{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Script:  script,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	correlationID, err := s.client.Submit(ctx, avatar.SubmitRequest{
		Script:        script,
		AvatarID:      creds.AvatarID,
		VoiceID:       creds.VoiceID,
		CallbackToken: job.ID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProviderRejected) {
			if _, applyErr := s.applyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, err.Error(), "submission"); applyErr != nil {
				s.logger.Error().Err(applyErr).Str("job_id", job.ID).Msg("jobs: failed to finalize rejected submission")
			}
		} else {
			// Transient outage: the pending record stays behind for the
			// stale sweep in case the caller walks away.
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: provider unavailable at submission")
		}
		return nil, err
	}

	if err := s.repo.AssignCorrelationID(ctx, job.ID, correlationID); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Str("correlation_id", correlationID).
		Msg("jobs: submission accepted by provider")

	return s.repo.GetByID(ctx, job.ID)
}

// GetStatus returns the job as seen by its owner. When the job has sat in
// processing beyond the staleness threshold, one opportunistic provider poll
// runs first; its outcome flows through the same terminal path webhooks use,
// and a poll failure never fails the read.
func (s *JobService) GetStatus(ctx context.Context, jobID, requesterID string) (*domain.GenerationJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}

	if job.Status == domain.JobStatusProcessing && job.CorrelationID != "" && s.now().Sub(job.UpdatedAt) > s.staleness {
		if s.refreshFromProvider(ctx, job) {
			return s.repo.GetByID(ctx, jobID)
		}
	}
	return job, nil
}

// refreshFromProvider reconciles one poll result. It reports whether the
// stored job may have changed.
func (s *JobService) refreshFromProvider(ctx context.Context, job *domain.GenerationJob) bool {
	snap, err := s.client.PollStatus(ctx, job.CorrelationID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Str("correlation_id", job.CorrelationID).
			Msg("jobs: staleness poll failed, returning stored state")
		return false
	}
	switch snap.Status {
	case domain.JobStatusCompleted:
		if _, err := s.applyTerminal(ctx, job.ID, domain.JobStatusCompleted, snap.Result, "", "poll"); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: apply polled completion failed")
			return false
		}
		return true
	case domain.JobStatusFailed:
		if _, err := s.applyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, snap.ErrorDetail, "poll"); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: apply polled failure failed")
			return false
		}
		return true
	default:
		if snap.Progress > job.Progress {
			if err := s.repo.UpdateProgress(ctx, job.ID, snap.Progress); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: progress update failed")
				return false
			}
			return true
		}
		return false
	}
}

// ApplyCallback reconciles a verified provider webhook event. Unknown
// correlation IDs surface ErrNotFound so the transport layer can decide how
// to acknowledge; duplicates are absorbed and logged, never errors.
func (s *JobService) ApplyCallback(ctx context.Context, event *avatar.CallbackEvent) error {
	job, err := s.repo.FindByCorrelationID(ctx, event.CorrelationID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: no job for correlation id %q", domain.ErrNotFound, event.CorrelationID)
	}

	switch event.EventType {
	case avatar.EventCompleted:
		result := &domain.GenerationResult{
			VideoURL:        event.VideoURL,
			ThumbnailURL:    event.ThumbnailURL,
			DurationSeconds: event.DurationSeconds,
		}
		_, err = s.applyTerminal(ctx, job.ID, domain.JobStatusCompleted, result, "", "webhook")
	case avatar.EventFailed:
		detail := event.Error
		if detail == "" {
			detail = "provider reported failure without detail"
		}
		_, err = s.applyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, detail, "webhook")
	default:
		err = fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedPayload, event.EventType)
	}
	return err
}

// SweepStale finalizes jobs stuck in a live state beyond maxAge as failed.
// It exists for the external scheduler collaborator; every write still goes
// through the compare-and-set terminal path, so a webhook racing the sweep
// is safe.
func (s *JobService) SweepStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-maxAge)
	jobs, err := s.repo.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range jobs {
		job := &jobs[i]
		applied, err := s.applyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, "timed out waiting for provider", "sweep")
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: sweep failed to finalize job")
			continue
		}
		if applied {
			swept++
		}
	}
	return swept, nil
}

// applyTerminal is the single funnel for terminal transitions. Every
// trigger source passes through here so duplicate and racing signals
// collapse into at most one effective transition per job.
func (s *JobService) applyTerminal(ctx context.Context, jobID string, status domain.JobStatus, result *domain.GenerationResult, errorDetail, source string) (bool, error) {
	applied, err := s.repo.ApplyTerminal(ctx, jobID, status, result, errorDetail)
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Info().
			Str("job_id", jobID).
			Str("status", string(status)).
			Str("source", source).
			Msg("jobs: duplicate terminal signal absorbed")
		return false, nil
	}
	s.logger.Info().
		Str("job_id", jobID).
		Str("status", string(status)).
		Str("source", source).
		Msg("jobs: job finalized")
	return true, nil
}
