package flareauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
)

// ConfirmSignIn spends one verification attempt on the user's pending
// step-up challenge. A matching code completes the sign-in: the device
// context is updated and an access token issued. A mismatch returns a
// StepUpRequired result carrying the remaining attempt budget; expiry and
// exhaustion surface as errors and require a fresh SignIn.
func (e *Engine) ConfirmSignIn(ctx context.Context, userID, code string) (*SignInResult, error) {
	if e == nil || e.userStore == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" || code == "" {
		return nil, fmt.Errorf("%w: user id and code required", ErrValidation)
	}

	user, exists, err := e.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	presented := hashChallengeCode(code)
	matcher := func(record *challengeRecord) bool {
		if record.Method == MethodAuthenticator {
			return e.totp.VerifyCode(user.TOTPSecret, code, time.Now())
		}
		return subtle.ConstantTimeCompare(presented[:], record.CodeHash[:]) == 1
	}

	outcome, err := e.challenges.Verify(ctx, userID, matcher, e.config.Challenge.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, ErrChallengeExpired):
			e.metricInc(MetricStepUpExpired)
			e.emitAudit(ctx, auditEventStepUpExpired, false, userID, "", err, nil)
		case errors.Is(err, ErrChallengeExhausted):
			e.metricInc(MetricStepUpExhausted)
			e.emitAudit(ctx, auditEventStepUpExhausted, false, userID, "", err, nil)
		}
		return nil, err
	}

	if !outcome.Valid {
		e.metricInc(MetricStepUpFailure)
		e.emitAudit(ctx, auditEventStepUpFailure, false, userID, "", nil, func() map[string]string {
			return map[string]string{"remaining_attempts": fmt.Sprintf("%d", outcome.RemainingAttempts)}
		})
		return &SignInResult{
			StepUpRequired:    true,
			RemainingAttempts: outcome.RemainingAttempts,
		}, nil
	}

	fingerprint, present := deviceFingerprintFromContext(ctx)
	result, err := e.completeSignIn(ctx, user, fingerprint, present)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricStepUpSuccess)
	e.emitAudit(ctx, auditEventStepUpSuccess, true, userID, "", nil, nil)

	return result, nil
}

// DisableTwoFactor clears the user's second-factor enrollment and discards
// any pending challenge. Idempotent: disabling an account without 2FA
// succeeds without a write.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID string) error {
	if e == nil || e.userStore == nil || e.challenges == nil {
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

	if err := e.challenges.Delete(ctx, userID); err != nil {
		return err
	}

	if !user.TwoFactorEnabled && user.TOTPSecret == "" {
		return nil
	}

	user.TwoFactorEnabled = false
	user.TwoFactorMethod = ""
	user.TOTPSecret = ""
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, "", nil, nil)
	return nil
}
