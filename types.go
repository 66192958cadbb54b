package flareauth

import (
	"context"
	"time"
)

// TwoFactorMethod selects how a step-up challenge reaches the user.
type TwoFactorMethod string

const (
	// MethodEmail delivers a numeric code over email.
	MethodEmail TwoFactorMethod = "email"
	// MethodSMS delivers a numeric code over SMS.
	MethodSMS TwoFactorMethod = "sms"
	// MethodAuthenticator verifies a TOTP code from an enrolled
	// authenticator app; nothing is delivered.
	MethodAuthenticator TwoFactorMethod = "authenticator"
)

func (m TwoFactorMethod) valid() bool {
	switch m {
	case MethodEmail, MethodSMS, MethodAuthenticator:
		return true
	}
	return false
}

// User is the identity record exchanged with the caller-supplied UserStore.
// The engine reads and writes it only through that interface; it never
// deletes users.
type User struct {
	ID              string
	Email           string
	Phone           string
	PasswordHash    string
	EmailVerified   bool
	TwoFactorEnabled bool
	TwoFactorMethod TwoFactorMethod
	// TOTPSecret is the base32 authenticator secret, set once enrollment is
	// confirmed. Empty unless TwoFactorMethod is MethodAuthenticator.
	TOTPSecret string
}

// UserStore is the persistence contract the host must implement. Lookups
// report absence through the boolean, never through an error; errors mean
// the backend itself failed.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (User, bool, error)
	GetUserByID(ctx context.Context, userID string) (User, bool, error)
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
}

// DeviceContext is the single trust record kept per user. It is a comparison
// anchor, not an audit log: every fully authenticated sign-in overwrites it.
type DeviceContext struct {
	UserID      string
	IP          string
	Fingerprint [32]byte
	LastSeenAt  time.Time
}

// SignUpResult reports the outcome of SignUp.
type SignUpResult struct {
	UserID string
	// VerificationEnqueued is true when an email-verification message was
	// queued for delivery.
	VerificationEnqueued bool
}

// SignInResult is returned by SignIn and ConfirmSignIn. Exactly one of the
// two shapes is populated: an issued access token, or a pending step-up
// challenge reference.
type SignInResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration

	// StepUpRequired is true when the device was not recognized and a
	// challenge is pending. The caller must follow up with ConfirmSignIn.
	StepUpRequired bool
	ChallengeID    string
	Method         TwoFactorMethod
	// RemainingAttempts is populated by ConfirmSignIn after a code mismatch.
	RemainingAttempts int
}

// EnrollmentResult is returned by BeginAuthenticatorEnrollment.
type EnrollmentResult struct {
	// Secret is the base32 TOTP secret to store in the authenticator app.
	Secret string
	// ProvisioningURI is the otpauth:// URI for QR provisioning.
	ProvisioningURI string
}
