package flareauth

import "errors"

var (
	// ErrEngineNotReady is returned when a flow is invoked on an Engine that
	// was not fully constructed.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrValidation is returned for malformed input (empty identifier, bad
	// email, weak password).
	ErrValidation = errors.New("invalid input")
	// ErrInvalidCredentials is returned when the identifier is unknown or the
	// password does not match. The two cases are deliberately
	// indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a flow addresses a user ID that does
	// not exist. Reset flows never surface it to callers.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when signup hits an already registered
	// identifier.
	ErrAccountExists = errors.New("account already exists")
	// ErrStoreUnavailable wraps persistence failures from the caller-supplied
	// UserStore.
	ErrStoreUnavailable = errors.New("user store unavailable")

	// ErrChallengeNotFound is returned when no step-up challenge is pending
	// for the user.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeExpired is returned when the challenge TTL elapsed before a
	// successful verification. The challenge is gone; signin must restart.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeExhausted is returned once the attempt budget is spent.
	// Further codes are rejected even if correct; signin must restart.
	ErrChallengeExhausted = errors.New("challenge attempts exhausted")
	// ErrChallengeUnavailable wraps challenge backend failures.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrDeviceTrustUnavailable wraps device-context backend failures.
	ErrDeviceTrustUnavailable = errors.New("device trust backend unavailable")

	// ErrTokenInvalid is returned for tokens with a bad signature or shape.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongPurpose is returned when a structurally valid token is
	// presented to an operation that consumes a different purpose.
	ErrWrongPurpose = errors.New("token purpose mismatch")

	// ErrAlreadyVerified is the explicit idempotent outcome of confirming an
	// email address that was verified earlier.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrTwoFactorNotEnrolled is returned when an authenticator flow runs for
	// a user without a confirmed TOTP secret.
	ErrTwoFactorNotEnrolled = errors.New("two-factor not enrolled")
	// ErrTOTPInvalid is returned when an authenticator code fails
	// verification during enrollment confirmation.
	ErrTOTPInvalid = errors.New("totp code invalid")

	// ErrNotifyUnavailable wraps notification queue backend failures.
	ErrNotifyUnavailable = errors.New("notification queue unavailable")
)
