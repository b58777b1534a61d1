package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/tessro/riffd/internal/errors"
)

// Spotify account service endpoints.
const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
)

const exchangeTimeout = 4 * time.Second

// Credentials configures the refresh-token exchange.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Manager owns the access-token lifecycle: acquire, cache in memory, refresh.
// A token is reused until it enters the expiry skew window; racing refreshes
// collapse onto a single exchange whose result every caller shares.
type Manager struct {
	creds      Credentials
	endpoint   oauth2.Endpoint
	httpClient *http.Client

	mu    sync.Mutex
	token *Token

	flight singleflight.Group
	now    func() time.Time
}

// NewManager creates a Manager for the given credentials.
func NewManager(creds Credentials) *Manager {
	return &Manager{
		creds:      creds,
		endpoint:   oauth2.Endpoint{AuthURL: SpotifyAuthURL, TokenURL: SpotifyTokenURL},
		httpClient: &http.Client{Timeout: exchangeTimeout},
		now:        time.Now,
	}
}

// Token returns a usable access token, refreshing when the cached one is
// stale or force is set.
func (m *Manager) Token(ctx context.Context, force bool) (string, error) {
	if !m.creds.complete() {
		return "", fmt.Errorf("%w: spotify client_id, client_secret and refresh_token", errors.ErrConfigMissing)
	}

	if !force {
		m.mu.Lock()
		tok := m.token
		m.mu.Unlock()
		if !tok.StaleAt(m.now()) {
			return tok.AccessToken, nil
		}
	}

	v, err, _ := m.flight.Do("refresh", func() (any, error) {
		// Another caller may have refreshed while we waited to start.
		m.mu.Lock()
		cur := m.token
		m.mu.Unlock()
		if !force && !cur.StaleAt(m.now()) {
			return cur, nil
		}

		tok, err := m.exchange(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.token = tok
		m.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(*Token).AccessToken, nil
}

// SetEndpoint overrides the account service endpoints. Empty values keep
// the defaults.
func (m *Manager) SetEndpoint(authURL, tokenURL string) {
	if authURL != "" {
		m.endpoint.AuthURL = authURL
	}
	if tokenURL != "" {
		m.endpoint.TokenURL = tokenURL
	}
}

// Invalidate drops the cached token so the next call performs a refresh.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// Do runs fn with a valid access token, applying the retry-on-401 policy:
// a 401 from fn clears the cached token, forces one refresh, and retries fn
// exactly once. A second 401 is a terminal auth failure.
func (m *Manager) Do(ctx context.Context, fn func(token string) error) error {
	token, err := m.Token(ctx, false)
	if err != nil {
		return err
	}

	err = fn(token)
	if !errors.IsUnauthorized(err) {
		return err
	}

	m.Invalidate()
	token, refreshErr := m.Token(ctx, true)
	if refreshErr != nil {
		return refreshErr
	}

	err = fn(token)
	if errors.IsUnauthorized(err) {
		body := ""
		var ue *errors.UpstreamError
		if stderrors.As(err, &ue) {
			body = ue.Body
		}
		return &errors.AuthError{Status: http.StatusUnauthorized, Body: body, Err: err}
	}
	return err
}

// exchange trades the configured refresh token for a fresh access token.
func (m *Manager) exchange(ctx context.Context) (*Token, error) {
	conf := &oauth2.Config{
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
		Endpoint:     m.endpoint,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: m.creds.RefreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if stderrors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return nil, &errors.AuthError{Status: status, Body: string(rerr.Body), Err: err}
		}
		return nil, &errors.AuthError{Err: err}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		// Spotify always sends expires_in, but don't cache forever if not.
		expiry = m.now().Add(time.Hour)
	}
	return &Token{AccessToken: tok.AccessToken, ExpiresAt: expiry}, nil
}
