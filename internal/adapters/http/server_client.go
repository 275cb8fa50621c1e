package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// Sidecar control endpoints.
const (
	HealthEndpoint = "/health"
	StopEndpoint   = "/api/v1/server/stop"
	StatusEndpoint = "/api/v1/server/status"
)

// DefaultProbeTimeout bounds each health, stop and status probe.
const DefaultProbeTimeout = 2 * time.Second

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// ServerClient implements ports.ServerClient against a sidecar base URL.
type ServerClient struct {
	baseURL      string
	client       ports.HTTPClient
	probeTimeout time.Duration
	logger       ports.Logger
}

// NewServerClient creates a client for the sidecar at baseURL
// (e.g. http://127.0.0.1:13135).
func NewServerClient(baseURL string, client ports.HTTPClient, logger ports.Logger) *ServerClient {
	return &ServerClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		probeTimeout: DefaultProbeTimeout,
		logger:       logger,
	}
}

// BaseURL returns the sidecar base URL.
func (c *ServerClient) BaseURL() string {
	return c.baseURL
}

// Healthy reports whether GET /health answered 200.
func (c *ServerClient) Healthy(ctx context.Context) bool {
	code, ok := c.probe(ctx, http.MethodGet, HealthEndpoint)
	return ok && code == http.StatusOK
}

// RequestStop issues POST /api/v1/server/stop.
func (c *ServerClient) RequestStop(ctx context.Context) bool {
	code, ok := c.probe(ctx, http.MethodPost, StopEndpoint)
	return ok && code/100 == 2
}

// Running reports whether GET /api/v1/server/status answered 2xx.
func (c *ServerClient) Running(ctx context.Context) bool {
	code, ok := c.probe(ctx, http.MethodGet, StatusEndpoint)
	return ok && code/100 == 2
}

// probe performs a bodiless request. Transport faults are logged and
// reported as ok=false.
func (c *ServerClient) probe(ctx context.Context, method, path string) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		c.logger.Debug("probe request invalid", ports.String("path", path), ports.Err(err))
		return 0, false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("probe failed", ports.String("path", path), ports.Err(err))
		return 0, false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, true
}

// Post sends payload as JSON to path and returns the response body.
func (c *ServerClient) Post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
