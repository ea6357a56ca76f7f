package main

import (
	"context"
	"time"

	"booklend/internal/httpx"
	"booklend/internal/logging"
	"booklend/internal/profile"
)

const profileRefresh = time.Hour

type profileEnsurer interface {
	GetOwn(ctx context.Context, id, email string) (profile.Profile, error)
}

type onceStore interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// sessionVerifier makes sure every authenticated user has a profile row,
// which loan notifications read the email address from.
type sessionVerifier struct {
	next     httpx.TokenVerifier
	profiles profileEnsurer
	seen     onceStore
}

func newSessionVerifier(next httpx.TokenVerifier, profiles profileEnsurer, seen onceStore) *sessionVerifier {
	return &sessionVerifier{next: next, profiles: profiles, seen: seen}
}

func (v *sessionVerifier) VerifyToken(ctx context.Context, token string) (httpx.Identity, error) {
	id, err := v.next.VerifyToken(ctx, token)
	if err != nil {
		return id, err
	}

	key := "profile:" + id.UserID
	first, err := v.seen.Once(ctx, key, profileRefresh)
	if err == nil && !first {
		return id, nil
	}
	if _, err := v.profiles.GetOwn(ctx, id.UserID, id.Email); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", id.UserID).Msg("ensure profile")
		// Only a stored profile counts for the refresh window.
		if first {
			if err := v.seen.Forget(ctx, key); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("user_id", id.UserID).Msg("clear profile flag")
			}
		}
	}
	return id, nil
}
