package avatar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"carecast/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Options{APIKey: "pk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, server
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("NewClient without key = %v, want ErrMissingAPIKey", err)
	}
}

func TestSubmitSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/videos" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["script"] != "hydration matters" {
			t.Errorf("script = %v", payload["script"])
		}
		if payload["avatar_id"] != "av-1" || payload["voice_id"] != "vc-1" {
			t.Errorf("credentials = %v / %v", payload["avatar_id"], payload["voice_id"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"video_id": "corr-123"})
	}))

	correlationID, err := client.Submit(context.Background(), SubmitRequest{
		Script:   "hydration matters",
		AvatarID: "av-1",
		VoiceID:  "vc-1",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if correlationID != "corr-123" {
		t.Fatalf("correlation id = %q, want corr-123", correlationID)
	}
}

func TestSubmitRejectsEmptyScript(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	if _, err := client.Submit(context.Background(), SubmitRequest{Script: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Submit = %v, want ErrValidation", err)
	}
}

func TestSubmitProviderRejection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "script_too_long", "message": "script exceeds 1500 characters"})
	}))
	_, err := client.Submit(context.Background(), SubmitRequest{Script: "long script"})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("Submit = %v, want ErrProviderRejected", err)
	}
}

func TestSubmitProviderOutage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := client.Submit(context.Background(), SubmitRequest{Script: "short script"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("Submit = %v, want ErrProviderUnavailable", err)
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client, err := NewClient(Options{APIKey: "pk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Submit(context.Background(), SubmitRequest{Script: "script"}); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("Submit = %v, want ErrProviderUnavailable", err)
	}
}

func TestPollStatusMapping(t *testing.T) {
	tests := []struct {
		name         string
		body         statusResponse
		wantStatus   domain.JobStatus
		wantProgress int
	}{
		{"pending", statusResponse{Status: "waiting"}, domain.JobStatusPending, 0},
		{"processing with progress", statusResponse{Status: "processing", Progress: 40}, domain.JobStatusProcessing, 40},
		{"completed", statusResponse{Status: "completed", VideoURL: "https://cdn.example.com/v.mp4", DurationSeconds: 42}, domain.JobStatusCompleted, 100},
		{"failed", statusResponse{Status: "failed", Error: "render error"}, domain.JobStatusFailed, 0},
		{"unknown status treated as processing", statusResponse{Status: "transcoding"}, domain.JobStatusProcessing, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/videos/corr-1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_ = json.NewEncoder(w).Encode(tc.body)
			}))
			snap, err := client.PollStatus(context.Background(), "corr-1")
			if err != nil {
				t.Fatalf("PollStatus returned error: %v", err)
			}
			if snap.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", snap.Status, tc.wantStatus)
			}
			if snap.Progress != tc.wantProgress {
				t.Fatalf("progress = %d, want %d", snap.Progress, tc.wantProgress)
			}
			if tc.wantStatus == domain.JobStatusCompleted {
				if snap.Result == nil || snap.Result.VideoURL != tc.body.VideoURL {
					t.Fatalf("result = %+v, want video url %q", snap.Result, tc.body.VideoURL)
				}
			}
			if tc.wantStatus == domain.JobStatusFailed && snap.ErrorDetail == "" {
				t.Fatalf("failed snapshot must carry an error detail")
			}
		})
	}
}

func TestPollStatusNotFoundIsPending(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	snap, err := client.PollStatus(context.Background(), "corr-1")
	if err != nil {
		t.Fatalf("PollStatus returned error: %v", err)
	}
	if snap.Status != domain.JobStatusPending {
		t.Fatalf("status = %s, want pending for an unindexed job", snap.Status)
	}
}

func TestPollStatusOutage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	if _, err := client.PollStatus(context.Background(), "corr-1"); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("PollStatus = %v, want ErrProviderUnavailable", err)
	}
}
