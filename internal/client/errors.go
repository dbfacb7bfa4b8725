package client

import (
	"errors"
	"fmt"
)

var (
	// ErrRequest is matched by every failure returned by the client.
	ErrRequest = errors.New("herald request failed")

	// ErrSync is matched by failures of the full and delta sync operations.
	ErrSync = errors.New("sync failed")
)

// Op names a client operation in errors, logs and metrics.
type Op string

const (
	OpFullSync     Op = "full_sync"
	OpDeltaSync    Op = "delta_sync"
	OpUpsertUser   Op = "upsert_user"
	OpStartSession Op = "session_start"
	OpEndSession   Op = "session_end"
)

// IsSync reports whether op is one of the sync operations.
func (op Op) IsSync() bool {
	return op == OpFullSync || op == OpDeltaSync
}

// Error is returned for transport failures and non-2xx responses.
type Error struct {
	Op Op

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int

	// Message is the server's {"error": "..."} text, when present.
	Message string

	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return string(e.Op) + ": request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrRequest, and sync failures match ErrSync.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRequest:
		return true
	case ErrSync:
		return e.Op.IsSync()
	}
	return false
}
