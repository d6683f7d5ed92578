package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/pkg/models"
	"github.com/stratustools/core/version"
)

const (
	pathDashboardState = "/api/dashboard/state"
	pathVersion        = "/api/system/version"
	pathUpdate         = "/api/system/update"
	pathDirty          = "/api/retrieve/dirty"
)

// HTTPClient implements Client over plain HTTP.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient creates a client for the server at baseURL (for example
// "http://localhost:41777"). Per-call deadlines come from the context.
func NewHTTPClient(baseURL string) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// New creates an HTTPClient for the server named by cfg.
func New(cfg *config.Config) *HTTPClient {
	return NewHTTPClient(cfg.BaseURL())
}

// BaseURL returns the server address this client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// DashboardState fetches GET /api/dashboard/state.
func (c *HTTPClient) DashboardState(ctx context.Context) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := c.getJSON(ctx, pathDashboardState, &snapshot); err != nil {
		return nil, errors.FetchFailed("dashboard state", err).WithDetail("url", c.baseURL)
	}
	return &snapshot, nil
}

// Version fetches GET /api/system/version.
func (c *HTTPClient) Version(ctx context.Context) (*models.VersionInfo, error) {
	var info models.VersionInfo
	if err := c.getJSON(ctx, pathVersion, &info); err != nil {
		return nil, errors.FetchFailed("version", err).WithDetail("url", c.baseURL)
	}
	return &info, nil
}

// TriggerUpdate posts to /api/system/update. Any status other than 2xx,
// including 409 when an update is already running, is a RequestRejected
// error, as is a network failure.
func (c *HTTPClient) TriggerUpdate(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, pathUpdate, nil)
	if err != nil {
		return errors.RequestRejected("update", 0, err)
	}
	defer resp.Body.Close()

	var body UpdateAccepted
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(data, &body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := body.Error
		if reason == "" {
			reason = strings.TrimSpace(string(data))
		}
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return errors.RequestRejected("update", resp.StatusCode, fmt.Errorf("%s", reason))
	}
	return nil
}

// ActiveWorkflow derives the active workflow from the dashboard state.
func (c *HTTPClient) ActiveWorkflow(ctx context.Context) (*models.ActiveWorkflow, error) {
	var view phaseView
	if err := c.getJSON(ctx, pathDashboardState, &view); err != nil {
		return nil, errors.FetchFailed("active workflow", err).WithDetail("url", c.baseURL)
	}
	return view.active(), nil
}

// MarkDirty posts the changed paths to /api/retrieve/dirty.
func (c *HTTPClient) MarkDirty(ctx context.Context, paths []string) error {
	payload, err := json.Marshal(DirtyRequest{Paths: paths})
	if err != nil {
		return errors.NotifyFailed(paths, err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathDirty, payload)
	if err != nil {
		return errors.NotifyFailed(paths, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NotifyFailed(paths, fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}
