package flareauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/flareauth/flareauth/notify"
	"github.com/flareauth/flareauth/token"
)

// RequestPasswordReset queues a reset email when the identifier is known.
// The outcome is uniform: unknown identifiers return the same nil as known
// ones, so the flow cannot be used to probe which accounts exist. The
// distinction is visible only on the audit stream.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.userStore == nil || e.tokens == nil || e.queue == nil {
		return ErrEngineNotReady
	}
	if err := validateEmail(email); err != nil {
		return err
	}

	user, exists, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		e.emitAudit(ctx, auditEventPasswordResetUnknown, false, "", "", nil, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil
	}

	resetToken, err := e.tokens.Issue(token.PurposePasswordReset, user.ID, user.Email, e.config.Token.ResetTTL)
	if err != nil {
		return err
	}

	task := &notify.Task{
		TaskID:    uuid.NewString(),
		Channel:   notify.ChannelEmail,
		Recipient: user.Email,
		Template:  notify.TemplatePasswordReset,
		Vars: map[string]string{
			"ActionURL": buildActionURL(e.config.Notify.ResetURL, resetToken),
			"Token":     resetToken,
		},
		IdempotencyKey: notify.IdempotencyKey(user.ID, resetToken, notify.ChannelEmail),
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

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset consumes a reset token and installs the new password
// after it clears the strength policy. Any pending step-up challenge is
// discarded so codes sent before the reset cannot complete a sign-in.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if e == nil || e.userStore == nil || e.tokens == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Validate(tokenStr, token.PurposePasswordReset)
	if err != nil {
		return mapTokenError(err)
	}
	if err := validatePassword(newPassword, e.config.Password.MinLength); err != nil {
		return err
	}

	user, exists, err := e.userStore.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return ErrUserNotFound
	}

	hash, err := e.passwordHash.Hash(newPassword, user.Email)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.challenges.Delete(ctx, user.ID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, "", nil, nil)
	return nil
}
