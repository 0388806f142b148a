package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"carecast/internal/domain"
)

// JobRepositoryMemory is an in-memory domain.JobRepository with the same
// compare-and-set semantics as the PostgreSQL implementation. It backs
// tests and local development without a database.
type JobRepositoryMemory struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.GenerationJob
	byCorr map[string]string
	now    func() time.Time
}

// NewJobRepositoryMemory creates an empty in-memory job repository.
func NewJobRepositoryMemory() *JobRepositoryMemory {
	return &JobRepositoryMemory{
		jobs:   make(map[string]*domain.GenerationJob),
		byCorr: make(map[string]string),
		now:    time.Now,
	}
}

func (r *JobRepositoryMemory) Create(_ context.Context, job *domain.GenerationJob) error {
	if strings.TrimSpace(job.Script) == "" {
		return fmt.Errorf("%w: script is required", domain.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("%w: job %s already exists", domain.ErrConflict, job.ID)
	}
	now := r.now()
	job.Status = domain.JobStatusPending
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *JobRepositoryMemory) GetByID(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *JobRepositoryMemory) FindByCorrelationID(_ context.Context, correlationID string) (*domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobID, ok := r.byCorr[correlationID]
	if !ok {
		return nil, nil
	}
	return cloneJob(r.jobs[jobID]), nil
}

func (r *JobRepositoryMemory) AssignCorrelationID(_ context.Context, jobID, correlationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.CorrelationID == correlationID {
		return nil
	}
	if job.CorrelationID != "" {
		return fmt.Errorf("%w: job %s already has correlation id %q", domain.ErrConflict, jobID, job.CorrelationID)
	}
	if other, bound := r.byCorr[correlationID]; bound && other != jobID {
		return fmt.Errorf("%w: correlation id %q already bound to another job", domain.ErrConflict, correlationID)
	}
	if !job.Status.CanTransition(domain.JobStatusProcessing) {
		return fmt.Errorf("%w: job %s is %s", domain.ErrConflict, jobID, job.Status)
	}
	job.CorrelationID = correlationID
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = r.now()
	r.byCorr[correlationID] = jobID
	return nil
}

func (r *JobRepositoryMemory) ApplyTerminal(_ context.Context, jobID string, status domain.JobStatus, result *domain.GenerationResult, errorDetail string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("%w: %q is not a terminal status", domain.ErrValidation, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = status
	job.UpdatedAt = r.now()
	if status == domain.JobStatusCompleted {
		job.Result = cloneResult(result)
		job.ErrorDetail = ""
		job.Progress = 100
	} else {
		job.Result = nil
		job.ErrorDetail = errorDetail
	}
	return true, nil
}

func (r *JobRepositoryMemory) UpdateProgress(_ context.Context, jobID string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", domain.ErrValidation, progress)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil
	}
	if job.Status.Terminal() || progress <= job.Progress {
		return nil
	}
	job.Progress = progress
	job.UpdatedAt = r.now()
	return nil
}

func (r *JobRepositoryMemory) ListStale(_ context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []domain.GenerationJob
	for _, job := range r.jobs {
		if job.Status.Terminal() || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		jobs = append(jobs, *cloneJob(job))
		if limit > 0 && len(jobs) >= limit {
			break
		}
	}
	return jobs, nil
}

func cloneJob(job *domain.GenerationJob) *domain.GenerationJob {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Result = cloneResult(job.Result)
	return &clone
}

func cloneResult(result *domain.GenerationResult) *domain.GenerationResult {
	if result == nil {
		return nil
	}
	clone := *result
	return &clone
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
var _ domain.JobRepository = (*JobRepositoryPG)(nil)
