package flareauth

import (
	"context"
	"fmt"
)

// ChangePassword replaces the password of an authenticated user. The current
// password must verify and the replacement must clear the strength policy.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if e == nil || e.userStore == nil || e.passwordHash == nil {
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

	ok, err := e.passwordHash.Verify(currentPassword, user.Email, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword, e.config.Password.MinLength); err != nil {
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword, user.Email)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := e.userStore.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordChange)
	e.emitAudit(ctx, auditEventPasswordChange, true, userID, "", nil, nil)
	return nil
}
