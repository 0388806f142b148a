package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carecast/internal/domain"
)

func newTestJob(t *testing.T, r *JobRepositoryMemory, id string) *domain.GenerationJob {
	t.Helper()
	job := &domain.GenerationJob{ID: id, OwnerID: "owner-1", Script: "take your medication with food"}
	if err := r.Create(context.Background(), job); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return job
}

func TestCreateRejectsEmptyScript(t *testing.T) {
	r := NewJobRepositoryMemory()
	err := r.Create(context.Background(), &domain.GenerationJob{ID: "j1", OwnerID: "owner-1", Script: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create = %v, want ErrValidation", err)
	}
}

func TestAssignCorrelationIDIdempotent(t *testing.T) {
	r := NewJobRepositoryMemory()
	ctx := context.Background()
	job := newTestJob(t, r, "j1")

	if err := r.AssignCorrelationID(ctx, job.ID, "corr-1"); err != nil {
		t.Fatalf("first assign returned error: %v", err)
	}
	if err := r.AssignCorrelationID(ctx, job.ID, "corr-1"); err != nil {
		t.Fatalf("re-assigning the same correlation id must be a no-op, got %v", err)
	}
	if err := r.AssignCorrelationID(ctx, job.ID, "corr-2"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("assigning a different correlation id = %v, want ErrConflict", err)
	}
	if err := r.AssignCorrelationID(ctx, "missing", "corr-3"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("assigning to unknown job = %v, want ErrNotFound", err)
	}

	got, err := r.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Status != domain.JobStatusProcessing || got.CorrelationID != "corr-1" {
		t.Fatalf("job after assign = %s/%s, want processing/corr-1", got.Status, got.CorrelationID)
	}
}

func TestAssignCorrelationIDRejectsReuseAcrossJobs(t *testing.T) {
	r := NewJobRepositoryMemory()
	ctx := context.Background()
	first := newTestJob(t, r, "j1")
	second := newTestJob(t, r, "j2")

	if err := r.AssignCorrelationID(ctx, first.ID, "corr-1"); err != nil {
		t.Fatalf("assign returned error: %v", err)
	}
	if err := r.AssignCorrelationID(ctx, second.ID, "corr-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("reusing a bound correlation id = %v, want ErrConflict", err)
	}
}

func TestApplyTerminalIdempotent(t *testing.T) {
	r := NewJobRepositoryMemory()
	ctx := context.Background()
	job := newTestJob(t, r, "j1")
	if err := r.AssignCorrelationID(ctx, job.ID, "corr-1"); err != nil {
		t.Fatalf("assign returned error: %v", err)
	}

	result := &domain.GenerationResult{VideoURL: "https://cdn.example.com/v.mp4", DurationSeconds: 42}
	applied, err := r.ApplyTerminal(ctx, job.ID, domain.JobStatusCompleted, result, "")
	if err != nil || !applied {
		t.Fatalf("first ApplyTerminal = (%v, %v), want (true, nil)", applied, err)
	}

	// Redelivered webhook: same outcome, must be absorbed.
	applied, err = r.ApplyTerminal(ctx, job.ID, domain.JobStatusCompleted, result, "")
	if err != nil || applied {
		t.Fatalf("replayed ApplyTerminal = (%v, %v), want (false, nil)", applied, err)
	}

	// Conflicting late failure signal: also absorbed.
	applied, err = r.ApplyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, "provider error")
	if err != nil || applied {
		t.Fatalf("late failed signal = (%v, %v), want (false, nil)", applied, err)
	}

	got, err := r.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Result == nil || got.Result.VideoURL != result.VideoURL {
		t.Fatalf("result = %+v, want video url %q", got.Result, result.VideoURL)
	}
	if got.Progress != 100 {
		t.Fatalf("progress = %d, want 100", got.Progress)
	}
	if got.ErrorDetail != "" {
		t.Fatalf("error detail = %q, want empty on completed job", got.ErrorDetail)
	}
}

func TestApplyTerminalRejectsNonTerminalStatus(t *testing.T) {
	r := NewJobRepositoryMemory()
	job := newTestJob(t, r, "j1")
	if _, err := r.ApplyTerminal(context.Background(), job.ID, domain.JobStatusProcessing, nil, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ApplyTerminal(processing) = %v, want ErrValidation", err)
	}
}

func TestApplyTerminalRaceSingleWinner(t *testing.T) {
	r := NewJobRepositoryMemory()
	ctx := context.Background()
	job := newTestJob(t, r, "j1")
	if err := r.AssignCorrelationID(ctx, job.ID, "corr-1"); err != nil {
		t.Fatalf("assign returned error: %v", err)
	}

	// A webhook and a concurrent poll race with different outcomes.
	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		applied, err := r.ApplyTerminal(ctx, job.ID, domain.JobStatusCompleted, &domain.GenerationResult{VideoURL: "https://cdn.example.com/v.mp4"}, "")
		if err != nil {
			t.Errorf("completed writer returned error: %v", err)
		}
		results[0] = applied
	}()
	go func() {
		defer wg.Done()
		applied, err := r.ApplyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, "render failed")
		if err != nil {
			t.Errorf("failed writer returned error: %v", err)
		}
		results[1] = applied
	}()
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("exactly one writer must win, got %v", results)
	}
	got, err := r.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	switch got.Status {
	case domain.JobStatusCompleted:
		if got.Result == nil || got.ErrorDetail != "" {
			t.Fatalf("completed job carries %+v / %q", got.Result, got.ErrorDetail)
		}
	case domain.JobStatusFailed:
		if got.Result != nil || got.ErrorDetail == "" {
			t.Fatalf("failed job carries %+v / %q", got.Result, got.ErrorDetail)
		}
	default:
		t.Fatalf("job ended in non-terminal status %s", got.Status)
	}
}

func TestUpdateProgressMonotonic(t *testing.T) {
	r := NewJobRepositoryMemory()
	ctx := context.Background()
	job := newTestJob(t, r, "j1")
	if err := r.AssignCorrelationID(ctx, job.ID, "corr-1"); err != nil {
		t.Fatalf("assign returned error: %v", err)
	}

	steps := []struct {
		progress int
		want     int
	}{
		{30, 30},
		{60, 60},
		{40, 60}, // decreases are ignored
		{60, 60}, // repeats are ignored
	}
	for _, step := range steps {
		if err := r.UpdateProgress(ctx, job.ID, step.progress); err != nil {
			t.Fatalf("UpdateProgress(%d) returned error: %v", step.progress, err)
		}
		got, err := r.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID returned error: %v", err)
		}
		if got.Progress != step.want {
			t.Fatalf("progress after UpdateProgress(%d) = %d, want %d", step.progress, got.Progress, step.want)
		}
	}

	if _, err := r.ApplyTerminal(ctx, job.ID, domain.JobStatusFailed, nil, "boom"); err != nil {
		t.Fatalf("ApplyTerminal returned error: %v", err)
	}
	if err := r.UpdateProgress(ctx, job.ID, 90); err != nil {
		t.Fatalf("UpdateProgress on terminal job returned error: %v", err)
	}
	got, err := r.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Progress != 60 {
		t.Fatalf("terminal job progress = %d, want frozen at 60", got.Progress)
	}
}

func TestFindByCorrelationIDAbsentIsNotError(t *testing.T) {
	r := NewJobRepositoryMemory()
	job, err := r.FindByCorrelationID(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("FindByCorrelationID returned error: %v", err)
	}
	if job != nil {
		t.Fatalf("FindByCorrelationID = %+v, want nil", job)
	}
}

func TestListStale(t *testing.T) {
	r := NewJobRepositoryMemory()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	stale := newTestJob(t, r, "stale")
	if err := r.AssignCorrelationID(ctx, stale.ID, "corr-stale"); err != nil {
		t.Fatalf("assign returned error: %v", err)
	}
	done := newTestJob(t, r, "done")
	if _, err := r.ApplyTerminal(ctx, done.ID, domain.JobStatusCompleted, &domain.GenerationResult{VideoURL: "https://cdn.example.com/v.mp4"}, ""); err != nil {
		t.Fatalf("ApplyTerminal returned error: %v", err)
	}

	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh := newTestJob(t, r, "fresh")
	_ = fresh

	jobs, err := r.ListStale(ctx, base.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListStale returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "stale" {
		t.Fatalf("ListStale = %+v, want only the stale processing job", jobs)
	}
}
