package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthenticated marks 401/403 responses. Callers must send the user back
// to the login boundary.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrNotFound marks 404 responses.
var ErrNotFound = errors.New("not found")

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed: %d", e.Method, e.Path, e.StatusCode)
}

// Is lets errors.Is match ErrUnauthenticated and ErrNotFound by status.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return isAuthStatus(e.StatusCode)
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsServiceUnavailable reports whether err signals an HTTP 503. A typed
// HTTPError decides by its status alone; untyped errors match only when their
// message ends in "failed: 503".
func IsServiceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusServiceUnavailable
	}
	return strings.HasSuffix(err.Error(), "failed: 503")
}

// IsAuthError reports whether err is a 401 or 403 response.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
