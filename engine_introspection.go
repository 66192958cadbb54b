package flareauth

import (
	"context"

	"github.com/flareauth/flareauth/token"
)

// AccessClaims is the host-facing view of a validated access token.
type AccessClaims struct {
	UserID    string
	Email     string
	ExpiresAt int64
}

// ValidateAccessToken checks signature, expiry and purpose of an access
// token. It is the hot path for request authentication: stateless, no
// backend round-trip.
func (e *Engine) ValidateAccessToken(_ context.Context, tokenStr string) (*AccessClaims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Validate(tokenStr, token.PurposeAccess)
	if err != nil {
		return nil, mapTokenError(err)
	}

	out := &AccessClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return out, nil
}
