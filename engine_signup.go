package flareauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/flareauth/flareauth/notify"
	"github.com/flareauth/flareauth/token"
)

// SignUp registers a new credential identity. The password is checked
// against the strength policy before hashing, and a verification email is
// queued when the account is created. A failed enqueue does not fail the
// signup; the result reports whether the message was queued.
func (e *Engine) SignUp(ctx context.Context, email, phone, password string) (*SignUpResult, error) {
	if e == nil || e.userStore == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	if err := validateEmail(email); err != nil {
		e.metricInc(MetricSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"reason": "invalid_email"}
		})
		return nil, err
	}
	if err := validatePassword(password, e.config.Password.MinLength); err != nil {
		e.metricInc(MetricSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"reason": "password_policy"}
		})
		return nil, err
	}

	_, exists, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists {
		e.metricInc(MetricSignUpDuplicate)
		e.emitAudit(ctx, auditEventSignUpDuplicate, false, "", "", ErrAccountExists, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrAccountExists
	}

	hash, err := e.passwordHash.Hash(password, email)
	if err != nil {
		e.metricInc(MetricSignUpFailure)
		return nil, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
	}
	if err := e.userStore.CreateUser(ctx, user); err != nil {
		e.metricInc(MetricSignUpFailure)
		e.emitAudit(ctx, auditEventSignUpFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"reason": "store_create_failed"}
		})
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := &SignUpResult{UserID: user.ID}

	if err := e.enqueueVerificationEmail(ctx, user); err == nil {
		result.VerificationEnqueued = true
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, auditEventSignUpSuccess, true, user.ID, "", nil, nil)

	return result, nil
}

// enqueueVerificationEmail mints an email-verification token and queues the
// verification message. The token rides inside the rendered action URL.
func (e *Engine) enqueueVerificationEmail(ctx context.Context, user User) error {
	verifyToken, err := e.tokens.Issue(token.PurposeEmailVerify, user.ID, user.Email, e.config.Token.VerificationTTL)
	if err != nil {
		return err
	}

	task := &notify.Task{
		TaskID:    uuid.NewString(),
		Channel:   notify.ChannelEmail,
		Recipient: user.Email,
		Template:  notify.TemplateEmailVerification,
		Vars: map[string]string{
			"ActionURL": buildActionURL(e.config.Notify.VerificationURL, verifyToken),
			"Token":     verifyToken,
		},
		IdempotencyKey: notify.IdempotencyKey(user.ID, verifyToken, notify.ChannelEmail),
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
