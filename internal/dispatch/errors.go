package dispatch

import "fmt"

// AuthError is a terminal credential problem (HTTP 401/403).
// It is never retried.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.Status, e.Message)
}

// RequestError is a non-retryable rejection from the remote service
// (4xx other than 401/403/429).
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Message)
}

// TransientError wraps the last error observed after retries were
// exhausted on a retryable failure (429/5xx or network error).
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
