package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for common failure scenarios.
var (
	ErrConfigMissing  = errors.New("required configuration missing")
	ErrDeviceNotFound = errors.New("device not found")
	ErrTrackNotFound  = errors.New("track not found")
	ErrUnknownPreset  = errors.New("unknown preset")
)

// AuthError is a terminal authentication failure: the token exchange was
// rejected, or a request still came back 401 after the single forced refresh.
// Status and Body carry the upstream response for diagnostics.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("spotify auth failed (status %d): %s", e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("spotify auth failed: %v", e.Err)
	}
	return "spotify auth failed"
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UpstreamError is a failed call to an upstream service. Transient marks
// failures worth retrying (network errors, timeouts, 5xx responses);
// rejections (4xx) are surfaced as-is.
type UpstreamError struct {
	Service   string
	Status    int
	Body      string
	Err       error
	Transient bool
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (status %d): %s", e.Service, e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s request failed", e.Service)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotActionable is the legitimate "nothing to do" outcome: nothing is
// playing, the current source is not music, or the current item has no
// recognizable track identity. It is a normal negative result, not a failure.
type NotActionable struct {
	Reason string
}

func (e *NotActionable) Error() string {
	return e.Reason
}

// IsNotActionable reports whether err is a NotActionable outcome and returns
// its reason.
func IsNotActionable(err error) (string, bool) {
	var na *NotActionable
	if errors.As(err, &na) {
		return na.Reason, true
	}
	return "", false
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}

// IsUnauthorized reports whether err is an upstream 401 response.
func IsUnauthorized(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusUnauthorized
}

// HTTPStatus maps an error to the status code the API boundary should
// return: missing configuration is a service-level 503, upstream and auth
// failures are 502, anything unrecognized is a plain 500.
func HTTPStatus(err error) int {
	var ae *AuthError
	var ue *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConfigMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnknownPreset):
		return http.StatusBadRequest
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrTrackNotFound):
		return http.StatusNotFound
	case errors.As(err, &ae), errors.As(err, &ue):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
