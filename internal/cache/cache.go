package cache

import (
	"context"
	"fmt"
	"time"

	"syncademic/internal/bus"
	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

// IcsCache is the append-only forensic store of fetched ICS payloads.
// The pipeline never reads it back; it exists so a bad sync can be
// diagnosed from the exact bytes the source served.
type IcsCache struct {
	store BlobStore
}

func New(store BlobStore) *IcsCache {
	return &IcsCache{store: store}
}

// Save stores one payload under {profileID}_{RFC3339 timestamp}.ics.
// Same-second retries get a -N suffix so entries are never overwritten.
func (c *IcsCache) Save(ctx context.Context, payload []byte, meta domain.IcsFileMetadata) error {
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	name, err := c.entryName(ctx, meta.SyncProfileID, createdAt)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"sourceUrl":     meta.SourceURL,
		"syncProfileId": meta.SyncProfileID,
		"userId":        meta.UserID,
		"syncTrigger":   string(meta.SyncTrigger),
		"createdAt":     createdAt.UTC().Format(time.RFC3339),
	}
	if meta.ParsingError != "" {
		metadata["parsingError"] = meta.ParsingError
	}

	return c.store.Put(ctx, name, payload, metadata)
}

// entryName derives the deterministic cache key, appending -N on
// same-second collisions.
func (c *IcsCache) entryName(ctx context.Context, profileID string, createdAt time.Time) (string, error) {
	base := fmt.Sprintf("%s_%s", profileID, createdAt.UTC().Format(time.RFC3339))

	name := base + ".ics"
	for n := 1; ; n++ {
		exists, err := c.store.Exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s-%d.ics", base, n)
	}
}

// SubscribeTo registers the cache as an observer of IcsFetched events so
// every fetched payload is captured, including ones that later fail to
// parse. Save errors are logged and dropped; a cache write must never
// fail a sync.
func (c *IcsCache) SubscribeTo(b *bus.Bus) {
	b.Subscribe(domain.IcsFetched{}, func(ev domain.DomainEvent) {
		fetched, ok := ev.(domain.IcsFetched)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Save(ctx, fetched.Payload, fetched.Metadata); err != nil {
			appLog.Error("ics cache save failed", err, "profile_id", fetched.SyncProfileID)
		}
	})
}
