package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the user-facing classification of a sync failure. The
// orchestrator writes the kind's message onto the profile, never a raw
// error trace.
type ErrorKind string

const (
	ErrSourceUnreachable ErrorKind = "SourceUnreachable"
	ErrSourceInvalid     ErrorKind = "SourceInvalid"
	ErrIcsMalformed      ErrorKind = "IcsMalformed"
	ErrRulesetInvalid    ErrorKind = "RulesetInvalid"
	ErrAuthExpired       ErrorKind = "AuthExpired"
	ErrTargetRejected    ErrorKind = "TargetRejected"
	ErrQuotaExceeded     ErrorKind = "QuotaExceeded"
	ErrCancelled         ErrorKind = "Cancelled"
)

// UserMessage is the short string stored on the profile for this kind.
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrSourceUnreachable:
		return "The calendar source could not be reached. We will retry on the next sync."
	case ErrSourceInvalid:
		return "The calendar source URL did not return a valid calendar."
	case ErrIcsMalformed:
		return "The calendar source returned data we could not understand."
	case ErrRulesetInvalid:
		return "The customization rules for this profile are invalid."
	case ErrAuthExpired:
		return "Please reconnect your account to keep syncing."
	case ErrTargetRejected:
		return "Some events could not be written to the target calendar."
	case ErrQuotaExceeded:
		return "Daily sync limit reached. Try again tomorrow."
	case ErrCancelled:
		return "The sync was cancelled."
	default:
		return "The sync failed."
	}
}

// SyncError is the typed result a pipeline stage hands to the
// orchestrator. Op names the stage operation for logs.
type SyncError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sync %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("sync %s: %s", e.Op, e.Kind)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Retriable reports whether the orchestrator may retry the stage.
func (e *SyncError) Retriable() bool {
	return e.Kind == ErrSourceUnreachable
}

// NewSyncError wraps err with a kind and operation name.
func NewSyncError(kind ErrorKind, op string, err error) *SyncError {
	return &SyncError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the error kind. Plain context cancellations bubbling
// out of I/O map to Cancelled; anything else untyped is treated as an
// unreachable source so it stays retriable rather than silently terminal.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return ErrSourceUnreachable
}
