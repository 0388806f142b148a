package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for generation jobs. It is the single
// source of truth for job state; all terminal writes go through
// ApplyTerminal so redundant provider signals collapse into one effective
// transition.
type JobRepository interface {
	// Create inserts a new pending job. Fails with ErrValidation when the
	// script is empty.
	Create(ctx context.Context, job *GenerationJob) error

	// GetByID fetches a job or ErrNotFound.
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)

	// FindByCorrelationID resolves an inbound provider event to a local
	// job. Returns (nil, nil) when no job carries the correlation ID.
	FindByCorrelationID(ctx context.Context, correlationID string) (*GenerationJob, error)

	// AssignCorrelationID binds the provider identifier to the job and
	// advances it to processing. Re-assigning the same correlation ID is
	// a no-op success; a different one fails with ErrConflict, as does
	// binding a correlation ID already held by another job.
	AssignCorrelationID(ctx context.Context, jobID, correlationID string) error

	// ApplyTerminal moves a live job to completed or failed with
	// compare-and-set semantics: the first writer to observe a
	// non-terminal status wins. Returns applied=false (no error) when the
	// job is already terminal, ErrNotFound when the job does not exist.
	ApplyTerminal(ctx context.Context, jobID string, status JobStatus, result *GenerationResult, errorDetail string) (applied bool, err error)

	// UpdateProgress raises the progress of a live job. Decreases and
	// writes against terminal jobs are silently ignored.
	UpdateProgress(ctx context.Context, jobID string, progress int) error

	// ListStale returns live jobs whose last update is older than cutoff,
	// oldest first, for the external sweep to finalize.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]GenerationJob, error)
}

// AvatarCredentials identify the presenter persona used for a generation
// request.
type AvatarCredentials struct {
	AvatarID string
	VoiceID  string
}

// ProfileProvider resolves the active avatar credentials for an account.
type ProfileProvider interface {
	// GetActiveAvatarCredentials returns the credentials configured for
	// the owner, or ErrNotConfigured when the account has none.
	GetActiveAvatarCredentials(ctx context.Context, ownerID string) (*AvatarCredentials, error)
}
