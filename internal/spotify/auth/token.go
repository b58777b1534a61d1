package auth

import "time"

// expirySkew is subtracted from a token's remaining lifetime before it is
// considered usable, so a token is refreshed before it can expire mid-request.
const expirySkew = 30 * time.Second

// Token is a cached Spotify access token. Tokens live in memory only; the
// long-lived refresh token comes from configuration.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StaleAt reports whether the token is missing, empty, or within the skew
// window of its expiry at the given instant.
func (t *Token) StaleAt(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	return !now.Add(expirySkew).Before(t.ExpiresAt)
}
