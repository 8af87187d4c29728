package domain

import "time"

// IcsFileMetadata travels with a fetched payload so the cache observer
// can store it without re-deriving anything.
type IcsFileMetadata struct {
	SyncProfileID string
	UserID        string
	SourceURL     string
	SyncTrigger   SyncTrigger
	CreatedAt     time.Time
	ParsingError  string // empty when the payload parsed cleanly
}

// DomainEvent is implemented by every event published on the in-process
// bus. CorrelationID ties together everything emitted by one sync attempt.
type DomainEvent interface {
	CorrelationID() string
	OccurredAt() time.Time
}

// EventMeta is embedded by all concrete domain events.
type EventMeta struct {
	Correlation string
	At          time.Time
}

func (m EventMeta) CorrelationID() string { return m.Correlation }
func (m EventMeta) OccurredAt() time.Time { return m.At }

// IcsFetched is published after a successful fetch and before parsing, so
// observers capture even payloads that later fail to parse.
type IcsFetched struct {
	EventMeta
	SyncProfileID string
	Payload       []byte
	Metadata      IcsFileMetadata
}

// SyncProfileCreated is published when a profile is first stored.
type SyncProfileCreated struct {
	EventMeta
	Profile SyncProfile
}

// SyncFailed is published on any terminal sync failure.
type SyncFailed struct {
	EventMeta
	SyncProfileID string
	Reason        string
}

// UserCreated is published when a new user document appears.
type UserCreated struct {
	EventMeta
	UserID string
	Email  string
}
