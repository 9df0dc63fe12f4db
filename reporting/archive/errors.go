package archive

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the target path or launch does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")
	// ErrAuth indicates missing, invalid or expired credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied indicates valid credentials without permission.
	ErrAccessDenied = errors.New("access denied")
	// ErrNetwork indicates a network-level failure.
	ErrNetwork = errors.New("network error")
	// ErrStorage is the kind of any unclassified storage failure.
	ErrStorage = errors.New("storage error")
)

// StorageError wraps an underlying error with storage classification.
type StorageError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Op is the operation that failed ("write", "put", "read", "init").
	Op string
	// Path is the storage path or record kind involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive: %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("archive: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrap classifies err. Returns nil if err is nil.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classify(err), Op: op, Path: path, Err: err}
}

// classify maps an error to a sentinel by type, then by message.
func classify(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, strings.ToLower(s)) {
				return true
			}
		}
		return false
	}

	switch {
	case has("NoSuchKey", "NoSuchBucket", "not found", "404"):
		return ErrNotFound
	case has("timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case has("SlowDown", "throttl", "429", "TooManyRequests"):
		return ErrThrottled
	case has("NoCredentialProviders", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "401"):
		return ErrAuth
	case has("AccessDenied", "Forbidden", "403"):
		return ErrAccessDenied
	case has("connection refused", "no such host", "network unreachable", "dial tcp"):
		return ErrNetwork
	default:
		return ErrStorage
	}
}
