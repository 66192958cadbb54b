package flareauth

import (
	"context"
	"crypto/sha256"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine records it
// in the DeviceContext and audit events; it plays no part in the trust
// decision itself.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the presenting client's User-Agent string to ctx.
// Its hash is the device fingerprint used by the trust evaluator.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

// deviceFingerprintFromContext folds the presented user agent into the
// fingerprint compared against the stored DeviceContext. An absent user
// agent yields the zero fingerprint, which never matches a stored one.
func deviceFingerprintFromContext(ctx context.Context) ([32]byte, bool) {
	ua := userAgentFromContext(ctx)
	if ua == "" {
		return [32]byte{}, false
	}
	return hashBindingValue(ua), true
}

func hashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte("flareauth/binding:" + v))
}
