package flareauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/flareauth/flareauth/notify"
	"github.com/flareauth/flareauth/token"
)

// SignIn authenticates a credential pair. A recognized device gets an access
// token directly; an unrecognized one gets a pending step-up challenge that
// must be confirmed through [Engine.ConfirmSignIn]. Unknown identifiers and
// wrong passwords are indistinguishable to the caller.
func (e *Engine) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if e == nil || e.userStore == nil || e.passwordHash == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	user, exists, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "unknown_identifier"}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(password, user.Email, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "password_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}

	fingerprint, present := deviceFingerprintFromContext(ctx)
	trusted, err := e.deviceTrust.IsTrusted(ctx, user.ID, fingerprint, present)
	if err != nil {
		return nil, err
	}

	if trusted {
		return e.completeSignIn(ctx, user, fingerprint, present)
	}
	return e.startStepUp(ctx, user)
}

// completeSignIn issues the access token and refreshes the device context so
// the current device stays the trust anchor.
func (e *Engine) completeSignIn(ctx context.Context, user User, fingerprint [32]byte, present bool) (*SignInResult, error) {
	if present {
		record := DeviceContext{
			UserID:      user.ID,
			IP:          clientIPFromContext(ctx),
			Fingerprint: fingerprint,
			LastSeenAt:  time.Now().UTC(),
		}
		if err := e.devices.UpsertDeviceContext(ctx, record); err != nil {
			return nil, err
		}
	}

	accessToken, err := e.tokens.Issue(token.PurposeAccess, user.ID, user.Email, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, user.ID, "", nil, nil)

	return &SignInResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   e.config.Token.AccessTTL,
	}, nil
}

// startStepUp creates a fresh challenge for the user, superseding any prior
// one, and queues delivery for the code-based methods. Authenticator
// challenges deliver nothing; the code comes from the user's app.
func (e *Engine) startStepUp(ctx context.Context, user User) (*SignInResult, error) {
	method := MethodEmail
	if user.TwoFactorEnabled && user.TwoFactorMethod.valid() {
		method = user.TwoFactorMethod
	}
	if method == MethodSMS && user.Phone == "" {
		method = MethodEmail
	}
	if method == MethodAuthenticator && user.TOTPSecret == "" {
		return nil, ErrTwoFactorNotEnrolled
	}

	now := time.Now()
	record := &challengeRecord{
		ChallengeID: uuid.NewString(),
		UserID:      user.ID,
		Method:      method,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(e.config.Challenge.CodeTTL).Unix(),
		Status:      challengePending,
	}

	var code string
	if method != MethodAuthenticator {
		generated, err := generateNumericCode(e.config.Challenge.CodeDigits)
		if err != nil {
			return nil, err
		}
		code = generated
		record.CodeHash = hashChallengeCode(code)
	}

	if err := e.challenges.Create(ctx, record, e.config.Challenge.CodeTTL); err != nil {
		return nil, err
	}

	if method != MethodAuthenticator {
		if err := e.enqueueChallengeCode(ctx, user, record, code); err != nil {
			return nil, err
		}
		if err := e.challenges.MarkSent(ctx, user.ID, record.ChallengeID); err != nil {
			return nil, err
		}
	}

	e.metricInc(MetricStepUpRequired)
	e.emitAudit(ctx, auditEventStepUpRequired, true, user.ID, record.ChallengeID, nil, func() map[string]string {
		return map[string]string{"method": string(method)}
	})

	return &SignInResult{
		StepUpRequired: true,
		ChallengeID:    record.ChallengeID,
		Method:         method,
	}, nil
}

func (e *Engine) enqueueChallengeCode(ctx context.Context, user User, record *challengeRecord, code string) error {
	channel := notify.ChannelEmail
	recipient := user.Email
	if record.Method == MethodSMS {
		channel = notify.ChannelSMS
		recipient = user.Phone
	}

	task := &notify.Task{
		TaskID:    uuid.NewString(),
		Channel:   channel,
		Recipient: recipient,
		Template:  notify.TemplateSignInCode,
		Vars: map[string]string{
			"Code": code,
			"TTL":  e.config.Challenge.CodeTTL.String(),
		},
		IdempotencyKey: notify.IdempotencyKey(user.ID, record.ChallengeID, channel),
	}
	handle, err := e.queue.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotifyUnavailable, err)
	}
	if handle.Deduplicated {
		e.metricInc(MetricNotifyDeduplicated)
	} else {
		e.metricInc(MetricNotifyEnqueued)
	}
	return nil
}
