package domain

import "errors"

// Domain errors. These are returned by the public API and can be checked
// with errors.Is.
var (
	// ErrUnsupportedPlatform is returned when no sidecar build exists for the
	// running OS/architecture. It is terminal.
	ErrUnsupportedPlatform = errors.New("haystack: unsupported platform")

	// ErrNotRunning is returned by request and stop operations when the
	// lifecycle status is not running.
	ErrNotRunning = errors.New("haystack: server not running")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the current status.
	ErrInvalidTransition = errors.New("haystack: invalid status transition")

	// ErrAcquisitionFailed is returned when every archive source failed.
	ErrAcquisitionFailed = errors.New("haystack: all archive sources failed")

	// ErrStartRetriesExhausted is returned when the sidecar did not become
	// healthy within the retry ceiling.
	ErrStartRetriesExhausted = errors.New("haystack: start retries exhausted")

	// ErrStartInFlight is returned when a start is requested while another
	// start attempt is still running.
	ErrStartInFlight = errors.New("haystack: start already in progress")

	// ErrTooManyRedirects is returned when a download exceeds the redirect hop limit.
	ErrTooManyRedirects = errors.New("haystack: too many redirects")

	// ErrArchiveTooSmall is returned for archives below the minimum plausible size.
	ErrArchiveTooSmall = errors.New("haystack: archive too small")

	// ErrClosed is returned by operations on a closed manager.
	ErrClosed = errors.New("haystack: manager closed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("haystack: invalid configuration")
)
