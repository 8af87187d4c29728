package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed error", NewSyncError(ErrQuotaExceeded, "admission", errors.New("limit")), ErrQuotaExceeded},
		{"wrapped typed error", fmt.Errorf("outer: %w", NewSyncError(ErrAuthExpired, "auth.get", nil)), ErrAuthExpired},
		{"context canceled", context.Canceled, ErrCancelled},
		{"deadline exceeded", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrCancelled},
		{"untyped error stays retriable", errors.New("boom"), ErrSourceUnreachable},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSyncErrorRetriable(t *testing.T) {
	t.Parallel()

	if !NewSyncError(ErrSourceUnreachable, "fetch", nil).Retriable() {
		t.Error("SourceUnreachable not retriable")
	}
	for _, kind := range []ErrorKind{ErrSourceInvalid, ErrIcsMalformed, ErrRulesetInvalid, ErrAuthExpired, ErrTargetRejected, ErrQuotaExceeded, ErrCancelled} {
		if NewSyncError(kind, "op", nil).Retriable() {
			t.Errorf("%s retriable", kind)
		}
	}
}

func TestSyncErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("dns failure")
	err := NewSyncError(ErrSourceUnreachable, "fetch", inner)
	if !errors.Is(err, inner) {
		t.Error("inner error lost")
	}
}
