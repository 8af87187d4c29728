package calendar

import (
	"context"
	"fmt"
	"sync"

	"syncademic/internal/domain"
)

// MemoryGateway is an in-process Gateway used by tests and by dry runs
// of the CLI. It keeps written events per profile marker, mimicking the
// extended-property filtering of the real target API.
type MemoryGateway struct {
	mu     sync.Mutex
	nextID int
	events map[string]writtenEvent // target event id -> record

	// FailInsert / FailDelete inject per-item failures keyed by event
	// title or handle id.
	FailInsert map[string]error
	FailDelete map[string]error
}

type writtenEvent struct {
	profileID   string
	fingerprint string
	event       domain.Event
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{events: make(map[string]writtenEvent)}
}

func (g *MemoryGateway) ListWrittenEvents(ctx context.Context, profileID string) ([]domain.TargetEventHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.TargetEventHandle
	for id, w := range g.events {
		if w.profileID != profileID {
			continue
		}
		out = append(out, domain.TargetEventHandle{
			ID:            id,
			SyncProfileID: w.profileID,
			Fingerprint:   w.fingerprint,
		})
	}
	return out, nil
}

func (g *MemoryGateway) Insert(ctx context.Context, profileID string, req WriteRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.FailInsert[req.Event.Title]; ok {
		return err
	}

	g.nextID++
	id := fmt.Sprintf("tgt-%d", g.nextID)
	g.events[id] = writtenEvent{
		profileID:   profileID,
		fingerprint: req.Fingerprint,
		event:       req.Event,
	}
	return nil
}

func (g *MemoryGateway) Delete(ctx context.Context, handle domain.TargetEventHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.FailDelete[handle.ID]; ok {
		return err
	}

	w, ok := g.events[handle.ID]
	if !ok {
		return fmt.Errorf("event %s not found", handle.ID)
	}
	if w.profileID != handle.SyncProfileID {
		return fmt.Errorf("event %s not owned by profile %s", handle.ID, handle.SyncProfileID)
	}
	delete(g.events, handle.ID)
	return nil
}

// WrittenEvents returns the events currently recorded for a profile, for
// assertions in tests.
func (g *MemoryGateway) WrittenEvents(profileID string) []domain.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.Event
	for _, w := range g.events {
		if w.profileID == profileID {
			out = append(out, w.event)
		}
	}
	return out
}
