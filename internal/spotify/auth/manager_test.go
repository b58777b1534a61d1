package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessro/riffd/internal/errors"
)

func testCreds() Credentials {
	return Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt"}
}

// newTestManager points a Manager at a fake token endpoint.
func newTestManager(t *testing.T, handler http.HandlerFunc) (*Manager, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m := NewManager(testCreds())
	m.SetEndpoint("", server.URL)
	return m, server
}

func tokenHandler(exchanges *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("grant_type"); got != "refresh_token" {
			http.Error(w, "bad grant_type "+got, http.StatusBadRequest)
			return
		}
		n := exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, n)
	}
}

func TestManagerToken_CachesUntilSkew(t *testing.T) {
	var exchanges atomic.Int32
	m, _ := newTestManager(t, tokenHandler(&exchanges))

	now := time.Now()
	m.now = func() time.Time { return now }

	tok, err := m.Token(context.Background(), false)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "token-1" {
		t.Errorf("Token() = %q, want token-1", tok)
	}

	// Within the lifetime: cached, no new exchange.
	now = now.Add(30 * time.Minute)
	if _, err := m.Token(context.Background(), false); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1", got)
	}

	// Inside the skew window: treated as stale.
	now = now.Add(30*time.Minute - 10*time.Second)
	tok, err = m.Token(context.Background(), false)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "token-2" {
		t.Errorf("Token() = %q, want token-2", tok)
	}
	if got := exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

func TestManagerToken_ForceRefreshes(t *testing.T) {
	var exchanges atomic.Int32
	m, _ := newTestManager(t, tokenHandler(&exchanges))

	if _, err := m.Token(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	tok, err := m.Token(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "token-2" {
		t.Errorf("Token(force) = %q, want token-2", tok)
	}
}

func TestManagerToken_MissingCredentials(t *testing.T) {
	m := NewManager(Credentials{ClientID: "cid"})
	_, err := m.Token(context.Background(), false)
	if !stderrors.Is(err, errors.ErrConfigMissing) {
		t.Errorf("Token() error = %v, want ErrConfigMissing", err)
	}
}

func TestManagerToken_RejectedRefresh(t *testing.T) {
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
	})

	_, err := m.Token(context.Background(), false)
	var ae *errors.AuthError
	if !stderrors.As(err, &ae) {
		t.Fatalf("Token() error = %v, want AuthError", err)
	}
	if ae.Status != http.StatusBadRequest {
		t.Errorf("AuthError.Status = %d, want 400", ae.Status)
	}
	if ae.Body == "" {
		t.Error("AuthError.Body is empty, want upstream response body")
	}
}

func TestManagerToken_CoalescesConcurrentRefreshes(t *testing.T) {
	var exchanges atomic.Int32
	arrived := make(chan struct{})
	release := make(chan struct{})

	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		n := exchanges.Add(1)
		if n == 1 {
			close(arrived)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, n)
	})

	var wg sync.WaitGroup
	results := make([]string, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = m.Token(context.Background(), false)
	}()

	<-arrived
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = m.Token(context.Background(), false)
	}()
	close(release)
	wg.Wait()

	if got := exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d, want 1 (refreshes should coalesce)", got)
	}
	if results[0] != "token-1" || results[1] != "token-1" {
		t.Errorf("results = %v, want both token-1", results)
	}
}

func TestManagerDo_RetriesOnceAfter401(t *testing.T) {
	var exchanges atomic.Int32
	m, _ := newTestManager(t, tokenHandler(&exchanges))

	calls := 0
	err := m.Do(context.Background(), func(token string) error {
		calls++
		if calls == 1 {
			return &errors.UpstreamError{Service: "spotify", Status: http.StatusUnauthorized, Body: "expired"}
		}
		if token != "token-2" {
			t.Errorf("retry used token %q, want token-2", token)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	if got := exchanges.Load(); got != 2 {
		t.Errorf("exchanges = %d, want 2 (initial + forced)", got)
	}
}

func TestManagerDo_SecondUnauthorizedIsTerminal(t *testing.T) {
	var exchanges atomic.Int32
	m, _ := newTestManager(t, tokenHandler(&exchanges))

	calls := 0
	err := m.Do(context.Background(), func(token string) error {
		calls++
		return &errors.UpstreamError{Service: "spotify", Status: http.StatusUnauthorized, Body: "nope"}
	})

	var ae *errors.AuthError
	if !stderrors.As(err, &ae) {
		t.Fatalf("Do() error = %v, want AuthError", err)
	}
	if ae.Status != http.StatusUnauthorized {
		t.Errorf("AuthError.Status = %d, want 401", ae.Status)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want exactly 2", calls)
	}
}

func TestManagerDo_PassesThroughOtherErrors(t *testing.T) {
	var exchanges atomic.Int32
	m, _ := newTestManager(t, tokenHandler(&exchanges))

	want := &errors.UpstreamError{Service: "spotify", Status: http.StatusForbidden, Body: "premium required"}
	calls := 0
	err := m.Do(context.Background(), func(token string) error {
		calls++
		return want
	})
	if !stderrors.Is(err, want) {
		t.Errorf("Do() error = %v, want the 403 unchanged", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (no retry on non-401)", calls)
	}
}
