package store

import (
	"context"
	"sync"
	"time"

	"syncademic/internal/domain"
)

// Memory is an in-process implementation of all three store capabilities,
// used by tests and offline CLI runs.
type Memory struct {
	mu       sync.Mutex
	profiles map[string]domain.SyncProfile
	auths    map[string]domain.BackendAuthorization
	usage    map[string]int // userID + "|" + day
}

func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]domain.SyncProfile),
		auths:    make(map[string]domain.BackendAuthorization),
		usage:    make(map[string]int),
	}
}

func (m *Memory) GetProfile(ctx context.Context, id string) (domain.SyncProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.SyncProfile{}, ErrProfileNotFound
	}
	return p, nil
}

func (m *Memory) PutProfile(ctx context.Context, p domain.SyncProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *Memory) ListProfiles(ctx context.Context) ([]domain.SyncProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SyncProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	p.Status = upd.Status
	p.ErrorMessage = upd.ErrorMessage
	if upd.LastSyncAt != nil {
		p.LastSyncAt = upd.LastSyncAt
	}
	if upd.SyncStartedAt != nil {
		p.SyncStartedAt = upd.SyncStartedAt
	}
	m.profiles[id] = p
	return nil
}

func (m *Memory) GetAuthorization(ctx context.Context, userID string) (domain.BackendAuthorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auths[userID]
	if !ok {
		return domain.BackendAuthorization{}, ErrAuthNotFound
	}
	return a, nil
}

func (m *Memory) PutAuthorization(ctx context.Context, a domain.BackendAuthorization) error {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, existing := range m.auths {
		if uid != a.UserID && existing.ProviderAccountID == a.ProviderAccountID && existing.Provider == a.Provider {
			return ErrDuplicateAccount
		}
	}
	m.auths[a.UserID] = a
	return nil
}

func (m *Memory) IncrSyncsToday(ctx context.Context, userID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := usageKey(userID, day)
	m.usage[key]++
	return m.usage[key], nil
}

func (m *Memory) SyncsToday(ctx context.Context, userID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey(userID, day)], nil
}

func usageKey(userID string, day time.Time) string {
	return userID + "|" + day.UTC().Format("2006-01-02")
}
