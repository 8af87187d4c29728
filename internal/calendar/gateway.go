package calendar

import (
	"context"
	"fmt"

	"syncademic/internal/domain"
)

// WriteRequest is one event to insert, paired with the fingerprint the
// gateway stamps into extended properties alongside the profile marker.
type WriteRequest struct {
	Event       domain.Event
	Fingerprint string
}

// ItemError records a per-item failure inside a batch. StatusCode is the
// target API status when known.
type ItemError struct {
	Index      int
	StatusCode int
	Err        error
}

func (e ItemError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("item %d: status %d: %v", e.Index, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

// Gateway is the capability interface onto the target calendar. The
// implementation must filter ListWrittenEvents by the syncProfileId
// extended property and stamp both markers on every insert. It must
// never touch events lacking the marker.
type Gateway interface {
	// ListWrittenEvents returns handles for events carrying the given
	// profile's authorship marker.
	ListWrittenEvents(ctx context.Context, profileID string) ([]domain.TargetEventHandle, error)

	// Insert writes one event stamped with {syncProfileId, fingerprint}.
	Insert(ctx context.Context, profileID string, req WriteRequest) error

	// Delete removes one previously-written event by handle.
	Delete(ctx context.Context, handle domain.TargetEventHandle) error
}
