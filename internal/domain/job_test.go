package domain

import "testing"

func TestJobStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to processing", JobStatusPending, JobStatusProcessing, true},
		{"processing to completed", JobStatusProcessing, JobStatusCompleted, true},
		{"processing to failed", JobStatusProcessing, JobStatusFailed, true},
		{"pending to completed", JobStatusPending, JobStatusCompleted, true},
		{"processing to pending", JobStatusProcessing, JobStatusPending, false},
		{"completed to processing", JobStatusCompleted, JobStatusProcessing, false},
		{"completed to failed", JobStatusCompleted, JobStatusFailed, false},
		{"failed to completed", JobStatusFailed, JobStatusCompleted, false},
		{"failed to failed", JobStatusFailed, JobStatusFailed, false},
		{"draft to pending", JobStatusDraft, JobStatusPending, true},
		{"unknown source", JobStatus("bogus"), JobStatusPending, false},
		{"unknown target", JobStatusPending, JobStatus("bogus"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestJobStatusTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobStatusDraft, JobStatusPending, JobStatusProcessing} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestJobStatusMonotonicRank(t *testing.T) {
	order := []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted}
	for i := 1; i < len(order); i++ {
		if statusRank[order[i]] <= statusRank[order[i-1]] {
			t.Fatalf("rank of %s must exceed rank of %s", order[i], order[i-1])
		}
	}
	if statusRank[JobStatusCompleted] != statusRank[JobStatusFailed] {
		t.Fatalf("terminal states must share a rank")
	}
}
