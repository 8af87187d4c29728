package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"syncademic/internal/domain"
	"syncademic/internal/store"
)

func seedAuth(t *testing.T, m *store.Memory, expiry *time.Time, refreshToken string) {
	t.Helper()
	err := m.PutAuthorization(context.Background(), domain.BackendAuthorization{
		UserID:               "user-1",
		ProviderAccountID:    "acct-1",
		ProviderAccountEmail: "student@example.edu",
		AccessToken:          "stored-token",
		RefreshToken:         refreshToken,
		ExpirationDate:       expiry,
	})
	if err != nil {
		t.Fatalf("PutAuthorization: %v", err)
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func TestAccessTokenUsesStoredWhenFresh(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	expiry := fixedNow().Add(time.Hour)
	seedAuth(t, m, &expiry, "refresh")

	refreshed := false
	p := NewProvider(m, TokenSourceFunc(func(ctx context.Context, rt string) (string, time.Time, error) {
		refreshed = true
		return "", time.Time{}, errors.New("should not be called")
	}))
	p.now = fixedNow

	tok, err := p.AccessToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "stored-token" || refreshed {
		t.Errorf("tok=%q refreshed=%v", tok, refreshed)
	}
}

func TestAccessTokenRefreshesWithinSkew(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	// Still technically valid, but inside the eager-refresh window.
	expiry := fixedNow().Add(time.Minute)
	seedAuth(t, m, &expiry, "refresh")

	newExpiry := fixedNow().Add(time.Hour)
	p := NewProvider(m, TokenSourceFunc(func(ctx context.Context, rt string) (string, time.Time, error) {
		if rt != "refresh" {
			t.Errorf("refresh token = %q", rt)
		}
		return "fresh-token", newExpiry, nil
	}))
	p.now = fixedNow

	tok, err := p.AccessToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "fresh-token" {
		t.Errorf("tok = %q", tok)
	}

	// Refreshed token persisted for the next sync.
	a, err := m.GetAuthorization(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAuthorization: %v", err)
	}
	if a.AccessToken != "fresh-token" || a.ExpirationDate == nil || !a.ExpirationDate.Equal(newExpiry) {
		t.Errorf("persisted auth = %+v", a)
	}
}

func TestAccessTokenNoExpiryMeansNoRefresh(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	seedAuth(t, m, nil, "refresh")

	p := NewProvider(m, TokenSourceFunc(func(ctx context.Context, rt string) (string, time.Time, error) {
		return "", time.Time{}, errors.New("should not be called")
	}))
	p.now = fixedNow

	tok, err := p.AccessToken(context.Background(), "user-1")
	if err != nil || tok != "stored-token" {
		t.Errorf("tok=%q err=%v", tok, err)
	}
}

func TestAccessTokenFailuresAreAuthExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, m *store.Memory)
		src   TokenSourceFunc
	}{
		{
			name:  "no authorization stored",
			setup: func(t *testing.T, m *store.Memory) {},
			src: func(ctx context.Context, rt string) (string, time.Time, error) {
				return "", time.Time{}, nil
			},
		},
		{
			name: "expired without refresh token",
			setup: func(t *testing.T, m *store.Memory) {
				expiry := fixedNow().Add(-time.Hour)
				seedAuth(t, m, &expiry, "")
			},
			src: func(ctx context.Context, rt string) (string, time.Time, error) {
				return "", time.Time{}, nil
			},
		},
		{
			name: "refresh rejected by provider",
			setup: func(t *testing.T, m *store.Memory) {
				expiry := fixedNow().Add(-time.Hour)
				seedAuth(t, m, &expiry, "refresh")
			},
			src: func(ctx context.Context, rt string) (string, time.Time, error) {
				return "", time.Time{}, errors.New("invalid_grant")
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := store.NewMemory()
			tc.setup(t, m)
			p := NewProvider(m, tc.src)
			p.now = fixedNow

			_, err := p.AccessToken(context.Background(), "user-1")
			var serr *domain.SyncError
			if !errors.As(err, &serr) || serr.Kind != domain.ErrAuthExpired {
				t.Fatalf("err = %v, want AuthExpired", err)
			}
		})
	}
}
