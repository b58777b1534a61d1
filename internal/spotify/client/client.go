package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tessro/riffd/internal/errors"
	"github.com/tessro/riffd/internal/spotify/auth"
)

const (
	// BaseURL is the Spotify Web API base URL.
	BaseURL = "https://api.spotify.com/v1"

	requestTimeout = 4 * time.Second

	// Retry configuration for transient errors
	maxAttempts   = 3
	baseRetryWait = 200 * time.Millisecond
)

// Client is a Spotify API client. Tokens come from the credential manager,
// which also applies the retry-on-401 policy around every request; transient
// failures are retried here with exponential backoff.
type Client struct {
	httpClient *http.Client
	auth       *auth.Manager
	baseURL    string
	logFunc    func(format string, args ...interface{})
}

// New creates a new Spotify client backed by the given credential manager.
func New(manager *auth.Manager) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		auth:       manager,
		baseURL:    BaseURL,
	}
}

// SetLogFunc installs a debug logging function.
func (c *Client) SetLogFunc(logFunc func(format string, args ...interface{})) {
	c.logFunc = logFunc
}

func (c *Client) log(format string, args ...interface{}) {
	if c.logFunc != nil {
		c.logFunc(format, args...)
	}
}

// Get performs a GET request to the Spotify API.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.request(ctx, "GET", path, nil, result)
}

// Post performs a POST request to the Spotify API.
func (c *Client) Post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.request(ctx, "POST", path, body, result)
}

// Put performs a PUT request to the Spotify API.
func (c *Client) Put(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.request(ctx, "PUT", path, body, result)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.baseURL + path
	if jsonBody != nil {
		c.log("[spotify] %s %s\n  body: %s", method, fullURL, string(jsonBody))
	} else {
		c.log("[spotify] %s %s", method, fullURL)
	}

	return c.auth.Do(ctx, func(token string) error {
		return c.attempt(ctx, method, fullURL, token, jsonBody, result)
	})
}

// attempt runs one authorized request, retrying transient failures with
// exponential backoff. A 401 is returned immediately so the credential
// manager can refresh and retry.
func (c *Client) attempt(ctx context.Context, method, fullURL, token string, jsonBody []byte, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			wait := baseRetryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			c.log("[spotify] retry %d/%d after %v (last error: %v)", attempt, maxAttempts-1, wait, lastErr)
			select {
			case <-ctx.Done():
				return &errors.UpstreamError{Service: "spotify", Err: ctx.Err(), Transient: true}
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = strings.NewReader(string(jsonBody))
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &errors.UpstreamError{Service: "spotify", Err: err, Transient: true}
			c.log("[spotify] network error: %v", err)
			continue // Retry on network error
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = &errors.UpstreamError{Service: "spotify", Err: err, Transient: true}
			c.log("[spotify] read error: %v", err)
			continue
		}

		c.log("[spotify] response: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode >= 400 {
			c.log("[spotify] response body: %s", string(respBody))
		}

		if resp.StatusCode == http.StatusNoContent {
			return nil
		}

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 {
			lastErr = &errors.UpstreamError{
				Service:   "spotify",
				Status:    resp.StatusCode,
				Body:      string(respBody),
				Transient: true,
			}
			continue
		}

		// Don't retry 4xx errors; a 401 goes back to the credential manager.
		if resp.StatusCode >= 400 {
			return &errors.UpstreamError{
				Service: "spotify",
				Status:  resp.StatusCode,
				Body:    string(respBody),
			}
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}

		return nil
	}

	return lastErr
}

// BuildURL builds a URL with query parameters.
func BuildURL(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	u, _ := url.Parse(path)
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
