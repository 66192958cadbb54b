package flareauth

import (
	"context"
	"fmt"
	"time"
)

// BeginAuthenticatorEnrollment generates a TOTP secret for the user and
// stores it unconfirmed. The returned provisioning URI is ready for QR
// display; enrollment only takes effect once a code from the app is
// confirmed. Calling again replaces the unconfirmed secret.
func (e *Engine) BeginAuthenticatorEnrollment(ctx context.Context, userID string) (*EnrollmentResult, error) {
	if e == nil || e.userStore == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	user, exists, err := e.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	secret, uri, err := e.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	user.TOTPSecret = secret
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventEnrollmentBegin, true, userID, "", nil, nil)

	return &EnrollmentResult{
		Secret:          secret,
		ProvisioningURI: uri,
	}, nil
}

// ConfirmAuthenticatorEnrollment checks one code from the user's app against
// the unconfirmed secret and, on success, switches the account to the
// authenticator method.
func (e *Engine) ConfirmAuthenticatorEnrollment(ctx context.Context, userID, code string) error {
	if e == nil || e.userStore == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	if userID == "" || code == "" {
		return fmt.Errorf("%w: user id and code required", ErrValidation)
	}

	user, exists, err := e.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return ErrUserNotFound
	}
	if user.TOTPSecret == "" {
		return ErrTwoFactorNotEnrolled
	}

	if !e.totp.VerifyCode(user.TOTPSecret, code, time.Now()) {
		e.emitAudit(ctx, auditEventEnrollmentConfirm, false, userID, "", ErrTOTPInvalid, nil)
		return ErrTOTPInvalid
	}

	user.TwoFactorEnabled = true
	user.TwoFactorMethod = MethodAuthenticator
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventEnrollmentConfirm, true, userID, "", nil, nil)
	return nil
}

// EnableTwoFactor switches the user to a code-delivery second factor.
// The authenticator method goes through enrollment instead.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID string, method TwoFactorMethod) error {
	if e == nil || e.userStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}
	if method != MethodEmail && method != MethodSMS {
		return fmt.Errorf("%w: method must be email or sms", ErrValidation)
	}

	user, exists, err := e.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return ErrUserNotFound
	}
	if method == MethodSMS && user.Phone == "" {
		return fmt.Errorf("%w: sms method requires a phone number", ErrValidation)
	}

	user.TwoFactorEnabled = true
	user.TwoFactorMethod = method
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
