package auth

import (
	"context"
	"errors"
	"time"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
	"syncademic/internal/store"
)

// expirySkew: a token expiring within this window is refreshed eagerly
// so it cannot die mid-pipeline.
const expirySkew = 2 * time.Minute

// TokenSource is the OAuth-provider capability: exchange a refresh token
// for a fresh access token. Provider specifics (endpoints, client ids)
// live behind this interface.
type TokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiry time.Time, err error)
}

// Provider hands the pipeline a live access token for a user, refreshing
// through the TokenSource when the stored one is expired or about to be.
type Provider struct {
	auths  store.AuthStore
	source TokenSource
	now    func() time.Time
}

func NewProvider(auths store.AuthStore, source TokenSource) *Provider {
	return &Provider{auths: auths, source: source, now: time.Now}
}

// AccessToken returns a usable token for the user's backend
// authorization. Any failure to produce one is AuthExpired: the user
// must reconnect their account.
func (p *Provider) AccessToken(ctx context.Context, userID string) (string, error) {
	a, err := p.auths.GetAuthorization(ctx, userID)
	if err != nil {
		return "", domain.NewSyncError(domain.ErrAuthExpired, "auth.get", err)
	}

	if a.ExpirationDate == nil || a.ExpirationDate.After(p.now().Add(expirySkew)) {
		return a.AccessToken, nil
	}

	if a.RefreshToken == "" {
		return "", domain.NewSyncError(domain.ErrAuthExpired, "auth.refresh",
			errors.New("access token expired and no refresh token stored"))
	}

	token, expiry, err := p.source.Refresh(ctx, a.RefreshToken)
	if err != nil {
		return "", domain.NewSyncError(domain.ErrAuthExpired, "auth.refresh", err)
	}

	a.AccessToken = token
	a.ExpirationDate = &expiry
	if err := p.auths.PutAuthorization(ctx, a); err != nil {
		// The refreshed token is still valid for this sync; losing the
		// persisted copy only costs a refresh next time.
		appLog.Error("failed to persist refreshed token", err, "user_id", userID)
	}

	appLog.Info("access token refreshed", "user_id", userID, "expires_at", expiry.UTC().Format(time.RFC3339))
	return token, nil
}
