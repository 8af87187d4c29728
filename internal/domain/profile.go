package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"time"
)

// SyncProfileStatus is the lifecycle state of a sync profile. Transitions
// are driven exclusively by the orchestrator; every terminal state is
// reachable from inProgress.
type SyncProfileStatus string

const (
	StatusNotStarted SyncProfileStatus = "notStarted"
	StatusInProgress SyncProfileStatus = "inProgress"
	StatusSuccess    SyncProfileStatus = "success"
	StatusFailed     SyncProfileStatus = "failed"
	StatusDeleting   SyncProfileStatus = "deleting"
)

// SyncTrigger records what initiated a sync attempt.
type SyncTrigger string

const (
	TriggerManual    SyncTrigger = "manual"
	TriggerScheduled SyncTrigger = "scheduled"
	TriggerOnCreate  SyncTrigger = "on_create"
)

// SyncType selects the reconciliation strategy for one attempt.
type SyncType string

const (
	// SyncRegular diffs prior writes against the desired set.
	SyncRegular SyncType = "regular"
	// SyncFull deletes every prior write and recreates the desired set.
	SyncFull SyncType = "full"
)

// SyncProfile is the user's declaration that one ICS source should be
// mirrored into one target calendar. The document store owns it; the
// core borrows a snapshot for the duration of a sync.
type SyncProfile struct {
	ID               string
	UserID           string
	Title            string
	SourceURL        string
	TargetCalendarID string

	// RulesetJSON is the stored wire form of the optional ruleset; empty
	// when the profile has none. Decoding happens at sync admission.
	RulesetJSON string

	Status        SyncProfileStatus
	ErrorMessage  string
	LastSyncAt    *time.Time
	SyncStartedAt *time.Time
	CreatedAt     time.Time
}

// Validate checks the structural invariants the store relies on.
func (p SyncProfile) Validate() error {
	if p.ID == "" {
		return errors.New("sync profile id is empty")
	}
	if p.UserID == "" {
		return errors.New("sync profile user id is empty")
	}
	if p.SourceURL == "" {
		return errors.New("sync profile source url is empty")
	}
	if p.TargetCalendarID == "" {
		return errors.New("sync profile target calendar id is empty")
	}
	if p.Status == StatusInProgress && p.SyncStartedAt == nil {
		return errors.New("inProgress profile must carry syncStartedAt")
	}
	return nil
}

// BackendAuthorization is the stored OAuth grant the pipeline consumes
// when talking to the target calendar.
type BackendAuthorization struct {
	UserID               string
	Provider             string // defaults to "google"
	ProviderAccountID    string
	ProviderAccountEmail string
	AccessToken          string
	RefreshToken         string
	ExpirationDate       *time.Time
}

// Normalize fills defaults; Validate checks the fields the stores and the
// token provider depend on.
func (a *BackendAuthorization) Normalize() {
	if a.Provider == "" {
		a.Provider = "google"
	}
}

func (a BackendAuthorization) Validate() error {
	if a.UserID == "" {
		return errors.New("authorization user id is empty")
	}
	if a.ProviderAccountID == "" {
		return errors.New("authorization provider account id is empty")
	}
	if _, err := mail.ParseAddress(a.ProviderAccountEmail); err != nil {
		return fmt.Errorf("authorization email invalid: %w", err)
	}
	if a.AccessToken == "" {
		return errors.New("authorization access token is empty")
	}
	return nil
}
