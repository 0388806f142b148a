package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"carecast/internal/domain"
	"carecast/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("avatar: api key is required")

// Options configures the avatar-video provider client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the avatar-video generation API. Submit and
// PollStatus are independent: polling is always side-effect free, while
// retrying Submit may create a duplicate billable job on the provider's
// side, so the client never retries on its own.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// SubmitRequest captures the inputs for one video generation.
type SubmitRequest struct {
	Script   string
	AvatarID string
	VoiceID  string
	// CallbackToken is echoed back by the provider on webhook deliveries so
	// the ingestion side can tie the event to this deployment.
	CallbackToken string
}

// StatusSnapshot is the normalized provider view of a job.
type StatusSnapshot struct {
	Status      domain.JobStatus
	Result      *domain.GenerationResult
	ErrorDetail string
	Progress    int
}

type submitPayload struct {
	Script        string `json:"script"`
	AvatarID      string `json:"avatar_id"`
	VoiceID       string `json:"voice_id"`
	CallbackToken string `json:"callback_token,omitempty"`
}

type submitResponse struct {
	VideoID string `json:"video_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	VideoID         string `json:"video_id"`
	Status          string `json:"status"`
	VideoURL        string `json:"video_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Error           string `json:"error"`
	Progress        int    `json:"progress"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.avatarvideo.example.com/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit sends one generation request and returns the provider's video ID.
// Transport failures map to domain.ErrProviderUnavailable, provider-side
// rejections to domain.ErrProviderRejected with the provider's message.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	script := strings.TrimSpace(req.Script)
	if script == "" {
		return "", fmt.Errorf("%w: script is required", domain.ErrValidation)
	}
	payload := submitPayload{
		Script:        script,
		AvatarID:      req.AvatarID,
		VoiceID:       req.VoiceID,
		CallbackToken: req.CallbackToken,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("avatar: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("avatar: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("avatar: submit: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("avatar: submit: %w: read response: %v", domain.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("avatar: submit: %w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("avatar: submit: %w: %s", domain.ErrProviderRejected, providerMessage(raw, resp.StatusCode))
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("avatar: decode submit response: %w", err)
	}
	if decoded.Code != "" {
		return "", fmt.Errorf("avatar: submit: %w: %s (%s)", domain.ErrProviderRejected, decoded.Message, decoded.Code)
	}
	if strings.TrimSpace(decoded.VideoID) == "" {
		return "", fmt.Errorf("avatar: submit: %w: empty video id", domain.ErrProviderRejected)
	}
	c.logger.Debug().
		Str("video_id", decoded.VideoID).
		Str("avatar_id", req.AvatarID).
		Msg("avatar: submitted generation request")
	return decoded.VideoID, nil
}

// PollStatus fetches the provider's view of the job. A 404 means the
// provider has not indexed the job yet and maps to a pending snapshot
// rather than an error.
func (c *Client) PollStatus(ctx context.Context, correlationID string) (*StatusSnapshot, error) {
	if strings.TrimSpace(correlationID) == "" {
		return nil, fmt.Errorf("%w: correlation id is required", domain.ErrValidation)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+correlationID, nil)
	if err != nil {
		return nil, fmt.Errorf("avatar: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("avatar: poll: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("avatar: poll: %w: read response: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return &StatusSnapshot{Status: domain.JobStatusPending}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("avatar: poll: %w: %s", domain.ErrProviderUnavailable, providerMessage(raw, resp.StatusCode))
	}

	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("avatar: decode status response: %w", err)
	}
	return c.snapshotFrom(decoded), nil
}

func (c *Client) snapshotFrom(decoded statusResponse) *StatusSnapshot {
	snap := &StatusSnapshot{Progress: decoded.Progress}
	switch strings.ToLower(strings.TrimSpace(decoded.Status)) {
	case "pending", "waiting", "queued":
		snap.Status = domain.JobStatusPending
	case "processing", "running":
		snap.Status = domain.JobStatusProcessing
	case "completed", "succeeded", "done":
		snap.Status = domain.JobStatusCompleted
		snap.Result = &domain.GenerationResult{
			VideoURL:        decoded.VideoURL,
			ThumbnailURL:    decoded.ThumbnailURL,
			DurationSeconds: decoded.DurationSeconds,
		}
		snap.Progress = 100
	case "failed", "error":
		snap.Status = domain.JobStatusFailed
		snap.ErrorDetail = decoded.Error
		if snap.ErrorDetail == "" {
			snap.ErrorDetail = "provider reported failure without detail"
		}
	default:
		c.logger.Warn().
			Str("video_id", decoded.VideoID).
			Str("status", decoded.Status).
			Msg("avatar: unknown provider status, treating as processing")
		snap.Status = domain.JobStatusProcessing
	}
	return snap
}

func providerMessage(raw []byte, statusCode int) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		if detail.Code != "" {
			return fmt.Sprintf("%s (%s)", detail.Message, detail.Code)
		}
		return detail.Message
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Sprintf("status %d: %s", statusCode, msg)
	}
	return fmt.Sprintf("status %d", statusCode)
}
