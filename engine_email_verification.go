package flareauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/flareauth/flareauth/token"
)

// SendEmailVerification queues a fresh verification email for the user.
// Already-verified accounts get ErrAlreadyVerified instead of a send.
func (e *Engine) SendEmailVerification(ctx context.Context, userID string) error {
	if e == nil || e.userStore == nil || e.tokens == nil || e.queue == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}

	user, exists, err := e.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return ErrUserNotFound
	}
	if user.EmailVerified {
		e.metricInc(MetricEmailAlreadyVerified)
		return ErrAlreadyVerified
	}

	if err := e.enqueueVerificationEmail(ctx, user); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, userID, "", nil, nil)
	return nil
}

// ConfirmEmailVerification consumes an email-verification token and marks
// the account verified. Confirming twice is an explicit outcome, not a
// silent success: the second call returns ErrAlreadyVerified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, tokenStr string) error {
	if e == nil || e.userStore == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Validate(tokenStr, token.PurposeEmailVerify)
	if err != nil {
		return mapTokenError(err)
	}

	user, exists, err := e.userStore.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return ErrUserNotFound
	}
	if user.EmailVerified {
		e.metricInc(MetricEmailAlreadyVerified)
		return ErrAlreadyVerified
	}

	user.EmailVerified = true
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationConfirm)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, user.ID, "", nil, nil)
	return nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrWrongPurpose):
		return ErrWrongPurpose
	default:
		return ErrTokenInvalid
	}
}
