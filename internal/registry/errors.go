package registry

import "fmt"

// HTTPError is returned for any non-200 response from the registry read
// path. Callers branch on StatusCode: 404 means "never published",
// 401/403 mean the check cannot be trusted, everything else is treated
// as transient.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("registry returned HTTP %d for %s", e.StatusCode, e.URL)
}

// IsNotFound reports a 404.
func (e *HTTPError) IsNotFound() bool { return e.StatusCode == 404 }

// IsAuth reports a 401 or 403.
func (e *HTTPError) IsAuth() bool { return e.StatusCode == 401 || e.StatusCode == 403 }

// ParseError is returned when an HTTP 200 response body cannot be
// decoded. Retrying cannot fix a malformed payload, so callers must not
// retry on this type.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed registry response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
