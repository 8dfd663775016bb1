package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"authcore/password"
	"authcore/recovery"
)

// GenerateRecoveryCodes replaces the user's recovery code set and returns
// the plaintext codes. This is the only moment the plaintext exists;
// previously issued codes stop working immediately.
func (e *Engine) GenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.users.GetUserByID(ctx, userID); err != nil {
		return nil, ErrUserNotFound
	}

	codes, set, err := e.recovery.Generate()
	if err != nil {
		return nil, err
	}
	if err := e.users.ReplaceRecoveryCodes(ctx, userID, set); err != nil {
		return nil, wrapProvider(err)
	}

	e.metrics.Inc(MetricRecoveryCodesGenerated)
	return codes, nil
}

// RecoveryCodeStatus reports the user's set without revealing anything
// about the codes themselves. A user with no set gets ShouldRegenerate.
func (e *Engine) RecoveryCodeStatus(ctx context.Context, userID string) (*recovery.Status, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.users.GetUserByID(ctx, userID); err != nil {
		return nil, ErrUserNotFound
	}
	set, err := e.users.GetRecoveryCodes(ctx, userID)
	if err != nil {
		return nil, wrapProvider(err)
	}

	status := e.recovery.StatusOf(set, time.Now())
	return &status, nil
}

// ConsumeRecoveryCode burns one code for an authenticated user, for flows
// like a lost-authenticator 2FA bypass. The zeroed slot is persisted before
// success is reported, so a crash cannot leave the code reusable.
func (e *Engine) ConsumeRecoveryCode(ctx context.Context, userID, code string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	set, err := e.users.GetRecoveryCodes(ctx, userID)
	if err != nil {
		return wrapProvider(err)
	}

	ok, slot := e.recovery.Consume(set, code)
	if !ok {
		return ErrRecoveryCodeInvalid
	}
	if err := e.users.ReplaceRecoveryCodes(ctx, userID, set); err != nil {
		return wrapProvider(err)
	}

	e.log.Info("recovery code consumed", zap.String("user_id", userID), zap.Int("slot", slot))
	e.metrics.Inc(MetricRecoveryCodeUsed)
	return nil
}

// ResetPasswordWithRecoveryCode sets a new password for a locked-out user.
// An unknown identifier reports invalid recovery code so the endpoint does
// not confirm which identifiers exist.
func (e *Engine) ResetPasswordWithRecoveryCode(ctx context.Context, identifier, code, newPassword string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return ErrRecoveryCodeInvalid
	}
	if !user.Active {
		return ErrAccountInactive
	}
	if err := password.ValidatePolicy(newPassword); err != nil {
		return errors.Join(ErrBadRequest, err)
	}

	set, err := e.users.GetRecoveryCodes(ctx, user.UserID)
	if err != nil {
		return wrapProvider(err)
	}
	ok, slot := e.recovery.Consume(set, code)
	if !ok {
		return ErrRecoveryCodeInvalid
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
		return wrapProvider(err)
	}
	if err := e.users.ReplaceRecoveryCodes(ctx, user.UserID, set); err != nil {
		return wrapProvider(err)
	}

	e.log.Info("password reset via recovery code",
		zap.String("user_id", user.UserID),
		zap.Int("slot", slot),
	)
	e.metrics.Inc(MetricRecoveryCodeUsed)
	e.metrics.Inc(MetricPasswordResetSuccess)
	return nil
}
