package sonos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tessro/riffd/internal/core"
	"github.com/tessro/riffd/internal/errors"
)

const (
	requestTimeout = 4 * time.Second

	// Retry configuration for transient errors
	maxAttempts   = 3
	baseRetryWait = 200 * time.Millisecond
)

// Client talks to the speaker mesh through its local HTTP gateway (a
// node-sonos-http-api style service). The gateway owns discovery and the
// device protocol; this client only issues room-level commands and reads
// zone topology.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logFunc    func(format string, args ...interface{})
}

// NewClient creates a gateway client. gatewayURL is the base URL of the
// local gateway, e.g. http://localhost:5005.
func NewClient(gatewayURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(gatewayURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
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

// Zones returns the current zone topology.
func (c *Client) Zones(ctx context.Context) ([]core.Zone, error) {
	body, err := c.get(ctx, "/zones")
	if err != nil {
		return nil, err
	}
	zones, err := parseZones(body)
	if err != nil {
		// A garbled topology payload usually means the gateway is mid
		// rescan; callers may retry.
		return nil, &errors.UpstreamError{Service: "sonos", Err: err, Transient: true}
	}
	return zones, nil
}

// Join makes room join the group coordinated by coordinator.
func (c *Client) Join(ctx context.Context, room, coordinator string) error {
	if room == "" || coordinator == "" {
		return fmt.Errorf("room and coordinator are required")
	}
	_, err := c.get(ctx, "/"+url.PathEscape(room)+"/join/"+url.PathEscape(coordinator))
	return err
}

// Leave makes room leave its group and become standalone.
func (c *Client) Leave(ctx context.Context, room string) error {
	if room == "" {
		return fmt.Errorf("room is required")
	}
	_, err := c.get(ctx, "/"+url.PathEscape(room)+"/leave")
	return err
}

// SetVolume sets a room's volume. Values are clamped to 0-100.
func (c *Client) SetVolume(ctx context.Context, room string, volume int) error {
	if room == "" {
		return fmt.Errorf("room is required")
	}
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	_, err := c.get(ctx, fmt.Sprintf("/%s/volume/%d", url.PathEscape(room), volume))
	return err
}

// get performs a gateway request, retrying transient failures with
// exponential backoff, and returns the response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	fullURL := c.baseURL + path
	c.log("[sonos] GET %s", fullURL)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			wait := baseRetryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			c.log("[sonos] retry %d/%d after %v (last error: %v)", attempt, maxAttempts-1, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, &errors.UpstreamError{Service: "sonos", Err: ctx.Err(), Transient: true}
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &errors.UpstreamError{Service: "sonos", Err: err, Transient: true}
			c.log("[sonos] network error: %v", err)
			continue // Retry on network error
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = &errors.UpstreamError{Service: "sonos", Err: err, Transient: true}
			continue
		}

		c.log("[sonos] response: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))

		// Retry on 5xx gateway errors
		if resp.StatusCode >= 500 {
			lastErr = &errors.UpstreamError{
				Service:   "sonos",
				Status:    resp.StatusCode,
				Body:      string(body),
				Transient: true,
			}
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, &errors.UpstreamError{
				Service: "sonos",
				Status:  resp.StatusCode,
				Body:    string(body),
			}
		}

		return body, nil
	}

	return nil, lastErr
}
