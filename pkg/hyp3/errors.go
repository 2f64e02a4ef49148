package hyp3

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. API responses and precondition violations wrap one of
// these so callers can branch with errors.Is.
var (
	// ErrValidation marks a client-side precondition caught before any
	// network call, like an over-long job name.
	ErrValidation = errors.New("validation failed")

	// ErrMalformedResponse marks a server response that could not be
	// deserialized into a job record.
	ErrMalformedResponse = errors.New("malformed server response")

	// ErrJobNotFound marks a lookup of a job id the server does not know.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoExpirationTime marks an expiry check on a job that has not
	// succeeded. Jobs without an expiration time cannot be checked for
	// expiry.
	ErrNoExpirationTime = errors.New("job has no expiration time")

	// ErrJobNotSucceeded marks a download attempt on a job whose products
	// do not exist because the job has not succeeded.
	ErrJobNotSucceeded = errors.New("only succeeded jobs have products to download")

	// ErrJobExpired marks a download attempt on a job whose products have
	// been garbage-collected server-side.
	ErrJobExpired = errors.New("job products have expired")
)

// APIError is a 4xx response from the API: the request was wrong and
// retrying it unchanged will not help. Detail carries the server's message.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("hyp3 api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("hyp3 api error (status %d): %s", e.StatusCode, e.Detail)
}

// ServerError is a 5xx response from the API: the request may be fine and
// worth retrying later.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("hyp3 server error (status %d)", e.StatusCode)
}

// WatchTimeoutError reports that a watch deadline elapsed before the watched
// job or batch completed.
type WatchTimeoutError struct {
	Target  string
	Timeout time.Duration
}

func (e *WatchTimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s while watching %s", e.Timeout, e.Target)
}

// DownloadError reports a failed transfer of a single product file.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
