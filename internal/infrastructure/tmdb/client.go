package tmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tmdb-agent/internal/application/port/output"
)

const (
	DefaultBaseURL           = "https://api.themoviedb.org/3"
	DefaultRequestsPerSecond = 20

	maxBodyBytes = 4 << 20
)

type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:            apiKey,
		BaseURL:           DefaultBaseURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// Client issues authenticated GET requests against the TMDb v3 API. Requests share one rate
// limiter across all tools and runs.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  output.LoggerPort
}

func NewClient(cfg Config, logger output.LoggerPort) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Get fetches path with the given query and returns the response body as compact JSON.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("Fetching TMDb", "path", path, "query", query.Encode())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tmdb request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read tmdb response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("tmdb returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body), nil
	}
	return buf.String(), nil
}
