package authcore

import (
	"context"
	"crypto/subtle"
	"time"

	"go.uber.org/zap"

	"authcore/token"
	"authcore/totp"
)

// StartTOTPEnrollment generates a fresh secret, stores it encrypted as an
// unconfirmed candidate, and returns the material the user needs: the
// base32 secret, the otpauth URI, and a packed QR bitmap of that URI.
// Starting again replaces any previous candidate.
func (e *Engine) StartTOTPEnrollment(ctx context.Context, userID string) (*TOTPEnrollment, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	encrypted, err := e.cipher.Encrypt([]byte(secret))
	if err != nil {
		return nil, err
	}
	if err := e.users.SetTOTPCandidate(ctx, userID, encrypted); err != nil {
		return nil, wrapProvider(err)
	}

	uri := e.totp.ProvisionURI(secret, user.Identifier)
	qr, err := totp.QRBitmap(uri)
	if err != nil {
		return nil, err
	}

	return &TOTPEnrollment{Secret: secret, URI: uri, QR: qr}, nil
}

// ConfirmTOTPEnrollment finishes enrollment. The caller must echo back the
// secret from [Engine.StartTOTPEnrollment] and a current code; the echoed
// secret must match the stored candidate byte for byte, which proves the
// confirmation belongs to this enrollment and not a stale one.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, userID, secret, code string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	record, err := e.users.GetTOTPRecord(ctx, userID)
	if err != nil {
		return wrapProvider(err)
	}
	if record == nil || len(record.EncryptedSecret) == 0 {
		return ErrEnrollmentNotStarted
	}
	if record.Enabled {
		return ErrTOTPAlreadyEnabled
	}

	stored, err := e.decryptSecret(record.EncryptedSecret)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(stored, []byte(secret)) != 1 {
		return ErrIncorrectSecret
	}

	ok, counter, err := e.totp.Verify(string(stored), code, time.Now())
	if err != nil || !ok {
		e.metrics.Inc(MetricTOTPFailure)
		return ErrTOTPCodeInvalid
	}

	if err := e.users.MarkTOTPEnabled(ctx, userID); err != nil {
		return wrapProvider(err)
	}
	if e.config.TOTP.EnforceReplayProtection {
		if err := e.users.UpdateTOTPLastUsedCounter(ctx, userID, counter); err != nil {
			return wrapProvider(err)
		}
	}

	e.metrics.Inc(MetricTOTPEnrolled)
	return nil
}

// DisableTOTP removes the second factor after a fresh password check.
func (e *Engine) DisableTOTP(ctx context.Context, userID, pass string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.TOTPEnabled {
		return ErrTOTPNotEnabled
	}
	if !e.verifyPassword(pass, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := e.users.ClearTOTP(ctx, userID); err != nil {
		return wrapProvider(err)
	}
	e.metrics.Inc(MetricTOTPDisabled)
	return nil
}

// VerifyLogin2FA completes a login that returned TwoFactorRequired. A valid
// code upgrades the partial token to a full pair. With replay protection
// on, a code is accepted at most once even inside the skew window.
func (e *Engine) VerifyLogin2FA(ctx context.Context, partialToken, code string) (*TokenPair, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	data, err := e.tokens.Decode(partialToken, token.TypePartial, true)
	if err != nil {
		return nil, mapTokenErr(err)
	}

	user, err := e.users.GetUserByID(ctx, data.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	record, err := e.users.GetTOTPRecord(ctx, data.UserID)
	if err != nil {
		return nil, wrapProvider(err)
	}
	if record == nil || !record.Enabled {
		return nil, ErrTOTPNotEnabled
	}

	secret, err := e.decryptSecret(record.EncryptedSecret)
	if err != nil {
		return nil, err
	}

	ok, counter, err := e.totp.Verify(string(secret), code, time.Now())
	if err != nil || !ok {
		e.metrics.Inc(MetricTOTPFailure)
		return nil, Err2FACodeInvalid
	}
	if e.config.TOTP.EnforceReplayProtection {
		if counter <= record.LastUsedCounter {
			e.metrics.Inc(MetricTOTPFailure)
			return nil, Err2FACodeInvalid
		}
		if err := e.users.UpdateTOTPLastUsedCounter(ctx, data.UserID, counter); err != nil {
			return nil, wrapProvider(err)
		}
	}

	pair, err := e.issuePair(user)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricTOTPSuccess)
	e.metrics.Inc(MetricLoginSuccess)
	return pair, nil
}

// decryptSecret opens a stored TOTP secret. A blob that no longer decrypts
// means the stored data or the master secret changed underneath us; that is
// an operational failure, not a caller error.
func (e *Engine) decryptSecret(encrypted []byte) ([]byte, error) {
	secret, err := e.cipher.Decrypt(encrypted)
	if err != nil {
		e.log.Warn("stored totp secret failed to decrypt", zap.Error(err))
		return nil, ErrServiceUnavailable
	}
	return secret, nil
}
