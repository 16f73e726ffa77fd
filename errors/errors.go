// Package errors holds the typed error taxonomy shared across the job
// engine: download/encode/upload failures, the non-error no-subtitle
// suspension signal, and the cancellation/unretriable markers the worker
// inspects when deciding how to finalise a job.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that never carry extra context.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid-input")
	ErrCancelled    = errors.New("cancelled")
	ErrHostDisabled = errors.New("host-disabled")

	// ErrNoSubtitle is not a failure: the Encoder raises it to signal the
	// Worker should suspend the job awaiting an out-of-band subtitle file.
	ErrNoSubtitle = errors.New("no-subtitle")
)

// UnretriableError marks an error that should never be retried by whatever
// sits above it. Cancellations and not-found-style failures are wrapped in
// this so callers can distinguish "give up" from "try again".
type UnretriableError struct{ error }

func Unretriable(err error) error {
	if err == nil {
		return nil
	}
	return UnretriableError{err}
}

func (e UnretriableError) Unwrap() error { return e.error }

// IsUnretriable reports whether err (or anything it wraps) is an
// UnretriableError.
func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

// DownloadError wraps a Downloader failure. Timeout is true when the
// configured hard timeout elapsed rather than the process exiting on its
// own; a cancelled download must never be reported through this type (see
// download.Download's contract).
type DownloadError struct {
	Timeout bool
	cause   error
}

func NewDownloadError(cause error, timeout bool) error {
	return DownloadError{Timeout: timeout, cause: cause}
}

func (e DownloadError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("download-timeout: %s", e.cause)
	}
	return fmt.Sprintf("download-failed: %s", e.cause)
}

func (e DownloadError) Unwrap() error { return e.cause }

// EncodeError wraps an encoder subprocess failure with the tail of its
// stderr, which is what gets surfaced to the user.
type EncodeError struct {
	StderrTail string
	cause      error
}

func NewEncodeError(cause error, stderrTail string) error {
	return EncodeError{StderrTail: stderrTail, cause: cause}
}

func (e EncodeError) Error() string {
	return fmt.Sprintf("encode-failed: %s (stderr: %s)", e.cause, e.StderrTail)
}

func (e EncodeError) Unwrap() error { return e.cause }

// UploadError wraps a single host's upload failure. It never escapes the
// Upload Fanout into a job failure — the fanout logs it and records the
// host's terminal status as failed.
type UploadError struct {
	Host  string
	cause error
}

func NewUploadError(host string, cause error) error {
	return UploadError{Host: host, cause: cause}
}

func (e UploadError) Error() string {
	return fmt.Sprintf("upload-failed(%s): %s", e.Host, e.cause)
}

func (e UploadError) Unwrap() error { return e.cause }

// SpawnError wraps a failure to even start a subprocess (binary missing,
// permission denied, etc).
type SpawnError struct{ cause error }

func NewSpawnError(cause error) error { return SpawnError{cause: cause} }

func (e SpawnError) Error() string { return fmt.Sprintf("spawn-failed: %s", e.cause) }
func (e SpawnError) Unwrap() error  { return e.cause }

// NonzeroExitError wraps a subprocess that ran and exited with a non-zero
// code, carrying the exit code and the tail of its stderr.
type NonzeroExitError struct {
	Code       int
	StderrTail string
}

func NewNonzeroExitError(code int, stderrTail string) error {
	return NonzeroExitError{Code: code, StderrTail: stderrTail}
}

func (e NonzeroExitError) Error() string {
	return fmt.Sprintf("nonzero-exit(%d): %s", e.Code, e.StderrTail)
}

// Truncate returns the first n characters of an error's message. Used when
// surfacing a one-line failure to the chat user (spec.md §7 caps this at
// 200 characters).
func Truncate(err error, n int) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) <= n {
		return s
	}
	return s[:n]
}
