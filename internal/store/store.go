package store

import (
	"context"
	"errors"
	"time"

	"syncademic/internal/domain"
)

var (
	ErrProfileNotFound   = errors.New("sync profile not found")
	ErrAuthNotFound      = errors.New("backend authorization not found")
	ErrDuplicateAccount  = errors.New("provider account already linked for user")
	ErrProfileValidation = errors.New("sync profile failed validation")
)

// ProfileStore is the document-store capability for sync profiles. The
// store owns the documents; the core borrows snapshots.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (domain.SyncProfile, error)
	PutProfile(ctx context.Context, p domain.SyncProfile) error
	ListProfiles(ctx context.Context) ([]domain.SyncProfile, error)

	// UpdateStatus writes the orchestrator's status transition. Terminal
	// writes carry errorMessage and lastSyncAt; the inProgress write
	// carries syncStartedAt.
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
}

// StatusUpdate is one profile status transition. Nil time fields are
// left untouched.
type StatusUpdate struct {
	Status        domain.SyncProfileStatus
	ErrorMessage  string
	LastSyncAt    *time.Time
	SyncStartedAt *time.Time
}

// AuthStore persists backend authorizations, enforcing one provider
// account per user.
type AuthStore interface {
	GetAuthorization(ctx context.Context, userID string) (domain.BackendAuthorization, error)
	PutAuthorization(ctx context.Context, a domain.BackendAuthorization) error
}

// UsageStore provides the per-user daily sync counter used by admission
// control.
type UsageStore interface {
	// IncrSyncsToday bumps and returns today's counter for the user.
	IncrSyncsToday(ctx context.Context, userID string, day time.Time) (int, error)
	SyncsToday(ctx context.Context, userID string, day time.Time) (int, error)
}
