package db

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers need to tell apart.
var (
	// ErrStorageUnavailable means the database could not be opened at all
	// (permissions, read-only media, missing directory). It is not retried.
	ErrStorageUnavailable = errors.New("offline storage unavailable")

	// ErrTransactionAborted means a single operation failed to commit.
	// The caller may retry that operation.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrQuotaExceeded accompanies ErrTransactionAborted when the write
	// did not fit in the configured storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUnknownCollection is returned for a collection name the store does not have.
	ErrUnknownCollection = errors.New("unknown collection")
)

// abort wraps a write failure as ErrTransactionAborted, tagging quota
// exhaustion so callers can report it distinctly.
func abort(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransactionAborted) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	if isStorageFull(err) {
		return fmt.Errorf("%w: %w: %v", ErrTransactionAborted, ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
}
