package auth

import (
	"context"
	"time"
)

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context, refreshToken string) (string, time.Time, error)

func (f TokenSourceFunc) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	return f(ctx, refreshToken)
}
