package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/types"
)

const DefaultURL = "http://localhost:8080"

// Metrics is satisfied by metrics.BackendMetrics.
type Metrics interface {
	RecordRequest(endpoint string, status string, took time.Duration)
}

// Client talks to the privacy backend, which builds stealth transfers,
// indexes inbound ones and executes claims.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
	metrics    Metrics
}

func NewClient(baseURL string, logger logrus.FieldLogger, metrics Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.WithField("component", "backend"),
		metrics:    metrics,
	}
}

// httpError carries the status and body of a non-2xx response.
type httpError struct {
	Code int
	Body string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func call[T any](
	ctx context.Context,
	c *Client,
	method string,
	endpoint string,
	query url.Values,
	body any,
) (T, error) {
	var zero T
	start := time.Now()
	code := "error"
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, code, time.Since(start))
		}
	}()

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%w: %s %s: %v", types.ErrNetworkFailed, method, endpoint, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	code = strconv.Itoa(res.StatusCode)

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, fmt.Errorf("%w: failed to read response: %v", types.ErrNetworkFailed, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return zero, &httpError{Code: res.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return out, nil
}

type SystemStatus struct {
	System    string `json:"system"`
	Connected bool   `json:"connected"`
	Version   string `json:"version"`
}

var disconnected = SystemStatus{
	System:    "disconnected",
	Connected: false,
	Version:   "unknown",
}

// Status probes the backend. It is advisory: any failure reads as disconnected.
func (c *Client) Status(ctx context.Context) SystemStatus {
	st, err := call[SystemStatus](ctx, c, http.MethodGet, "/api/status", nil, nil)
	if err != nil {
		c.logger.WithError(err).Warn("backend status unavailable")
		return disconnected
	}
	return st
}
