// Package backend is the HTTP client for the external collaborator that
// owns change-point detection, summarization and persistence. The dashboard
// only forwards requests and reshapes responses.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
)

// Client calls the backend REST API. Every request carries an explicit
// timeout; idempotent reads additionally retry with backoff. Mutating calls
// never retry — a failed user action is terminal and must be re-triggered.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retryConfig
}

// Options tunes client behavior. Zero values pick the defaults.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	retry := defaultRetryConfig()
	if opts.MaxRetries > 0 {
		retry.maxRetries = opts.MaxRetries
	}
	if opts.BaseDelay > 0 {
		retry.baseDelay = opts.BaseDelay
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		retry:   retry,
	}
}

// Health probes GET /api/health-check and reports reachability.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health-check", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// UserIDs fetches the dataset roster.
func (c *Client) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, "/api/user_ids", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Posts fetches the id→post mapping for a user.
func (c *Client) Posts(ctx context.Context, userID string) (*models.PostSet, error) {
	set := models.NewPostSet()
	if err := c.getJSON(ctx, "/api/posts/"+url.PathEscape(userID), set); err != nil {
		return nil, err
	}
	return set, nil
}

// TimelinesOfInterest fetches the interest-flagged timelines for a user.
// The endpoint returns bare post-id sequences, already filtered server-side;
// they are reshaped into Timeline values keyed by their boundary posts.
func (c *Client) TimelinesOfInterest(ctx context.Context, userID string) ([]models.Timeline, error) {
	var spans [][]string
	if err := c.getJSON(ctx, "/api/timelines-of-interest/"+url.PathEscape(userID), &spans); err != nil {
		return nil, err
	}
	return timelinesFromSpans(spans), nil
}

// Summary fetches the cached summary text for a timeline, or "" when none
// exists.
func (c *Client) Summary(ctx context.Context, userID, timelineID, model string) (string, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("timeline_id", timelineID)
	q.Set("model_name", model)
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.getJSON(ctx, "/api/summary?"+q.Encode(), &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// DeleteSummary removes a cached summary so it can be regenerated.
func (c *Client) DeleteSummary(ctx context.Context, userID, timelineID, model string) error {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("timeline_id", timelineID)
	q.Set("model_name", model)
	return c.send(ctx, http.MethodDelete, "/api/summary?"+q.Encode(), nil)
}

// GenerateSummary asks the backend to generate a summary for a post span.
// This call can take minutes; the caller's context bounds it.
func (c *Client) GenerateSummary(ctx context.Context, userID string, postIDs []string, model string) error {
	body := map[string]any{
		"user_id":    userID,
		"posts_ids":  postIDs,
		"model_name": model,
	}
	return c.send(ctx, http.MethodPut, "/api/generate-summary", body)
}

// UploadResult is the backend's response to a raw data upload: the parsed
// posts and a session handle for the rest of the add-data flow.
type UploadResult struct {
	SessionID string          `json:"session_id"`
	Posts     *models.PostSet `json:"posts"`
}

// UploadUserData sends a raw export file as multipart form data.
func (c *Client) UploadUserData(ctx context.Context, filename string, file io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("backend: build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("backend: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("backend: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload-user-data", &buf)
	if err != nil {
		return nil, fmt.Errorf("backend: upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: upload: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("backend: upload: %w", err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: upload: %w", err)
	}
	result := &UploadResult{Posts: models.NewPostSet()}
	if err := sonic.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("backend: decode upload response: %w", err)
	}
	return result, nil
}

// CreateTimelinesRequest carries the change-point-detection parameters.
// Method is always "bocpd"; the knobs pass through opaquely.
type CreateTimelinesRequest struct {
	SessionID  string  `json:"session_id"`
	Method     string  `json:"method"`
	Alpha      float64 `json:"alpha"`
	Beta       float64 `json:"beta"`
	Hazard     int     `json:"hazard"`
	SpanRadius int     `json:"span_radius"`
}

// CreateTimelines runs detection on an uploaded session and returns the
// proposed timelines of interest.
func (c *Client) CreateTimelines(ctx context.Context, req CreateTimelinesRequest) ([]models.Timeline, error) {
	if req.Method == "" {
		req.Method = "bocpd"
	}
	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("backend: encode create-timelines: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/create-timelines", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("backend: create-timelines: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: create-timelines: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("backend: create-timelines: %w", err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: create-timelines: %w", err)
	}
	var spans [][]string
	if err := sonic.Unmarshal(data, &spans); err != nil {
		return nil, fmt.Errorf("backend: decode create-timelines: %w", err)
	}
	return timelinesFromSpans(spans), nil
}

// SaveUserData persists an upload session as a permanent dataset.
func (c *Client) SaveUserData(ctx context.Context, sessionID string) error {
	return c.send(ctx, http.MethodPost, "/api/save-user-data", map[string]string{"session_id": sessionID})
}

// DeleteSession discards an in-progress upload session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.send(ctx, http.MethodDelete, "/api/delete-session", map[string]string{"session_id": sessionID})
}

// getJSON performs an idempotent GET with retry and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("backend: get %s: %w", path, err)
	}
	resp, err := doWithRetry(ctx, c.http, req, c.retry)
	if err != nil {
		return fmt.Errorf("backend: get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("backend: get %s: %w", path, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: get %s: %w", path, err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

// send performs a mutating request with a JSON body and no retry.
func (c *Client) send(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// checkStatus converts non-2xx responses into errors carrying the body
// detail when the backend provides one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(detail))
	if msg == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}

// timelinesFromSpans wraps bare post-id sequences from the backend into
// Timeline values. Everything the backend hands back is interest-flagged.
func timelinesFromSpans(spans [][]string) []models.Timeline {
	timelines := make([]models.Timeline, 0, len(spans))
	for _, span := range spans {
		if len(span) == 0 {
			continue
		}
		timelines = append(timelines, models.Timeline{
			ID:                 models.TimelineID(span[0], span[len(span)-1]),
			Posts:              span,
			TimelineOfInterest: true,
		})
	}
	return timelines
}
