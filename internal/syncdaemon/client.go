package syncdaemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Timeouts the spec fixes for client calls to the daemon, short enough
// that the CLI degrades gracefully to direct calls when the daemon is
// absent or wedged.
const (
	HealthTimeout    = 500 * time.Millisecond
	EnqueueTimeout   = 5 * time.Second
	SummarizeTimeout = 60 * time.Second
)

// Client is the short-timeout HTTP client the CLI uses to talk to an
// optional local daemon instance. Every method treats a connection
// failure or timeout as DaemonUnavailable and returns a plain error the
// caller is expected to treat as "fall back to a direct call."
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL (e.g. "http://127.0.0.1:8765").
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, httpClient: http.DefaultClient}
}

// Healthy reports whether the daemon answers GET /health within
// HealthTimeout.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Enqueue posts a file change for the daemon to sync, within
// EnqueueTimeout.
func (c *Client) Enqueue(ctx context.Context, project, path string) error {
	ctx, cancel := context.WithTimeout(ctx, EnqueueTimeout)
	defer cancel()
	return c.postJSON(ctx, "/sync/enqueue", enqueueRequest{Project: project, Path: path}, http.StatusAccepted)
}

// Retry asks the daemon to requeue a previously-lost job.
func (c *Client) Retry(ctx context.Context, project, path string) error {
	ctx, cancel := context.WithTimeout(ctx, EnqueueTimeout)
	defer cancel()
	return c.postJSON(ctx, "/sync/retry", enqueueRequest{Project: project, Path: path}, http.StatusAccepted)
}

// Status fetches the daemon's current queue depth and outcome counters.
func (c *Client) Status(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, EnqueueTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/sync/status", nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("daemon status: unexpected status %d", resp.StatusCode)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Summarize asks the daemon to (re)generate a thread summary, within
// SummarizeTimeout.
func (c *Client) Summarize(ctx context.Context, threadID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, SummarizeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/summarize/"+threadID, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("daemon summarize: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, wantStatus int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
