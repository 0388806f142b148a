package domain

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	// JobStatusDraft exists for the owning application's editing flow; the
	// orchestration core never creates or transitions draft jobs.
	JobStatusDraft      JobStatus = "draft"
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// statusRank orders the lifecycle so transitions can only move forward.
// Both terminal states share a rank: neither may replace the other.
var statusRank = map[JobStatus]int{
	JobStatusDraft:      0,
	JobStatusPending:    1,
	JobStatusProcessing: 2,
	JobStatusCompleted:  3,
	JobStatusFailed:     3,
}

// Valid reports whether s is a known lifecycle state.
func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next keeps the
// lifecycle monotonic.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// GenerationResult holds the provider output attached to a completed job.
type GenerationResult struct {
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds int
}

// GenerationJob tracks one avatar-video generation request through its
// lifecycle against the external provider.
type GenerationJob struct {
	ID string
	// OwnerID identifies the requesting account; every read is
	// authorized against it.
	OwnerID string
	// CorrelationID is the provider-assigned identifier, set once the
	// provider accepts the submission and never reassigned.
	CorrelationID string
	Status        JobStatus
	// Script is the input content submitted to the provider; the core
	// passes it through without reinterpreting it.
	Script string
	// Result is non-nil exactly when Status is completed.
	Result *GenerationResult
	// ErrorDetail is non-empty exactly when Status is failed.
	ErrorDetail string
	// Progress is 0-100 and non-decreasing while the job is live; it is
	// frozen at its last known value once the job is terminal.
	Progress  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
