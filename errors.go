package authcore

import (
	"errors"
	"fmt"
	"net/http"
)

// Root error classes. Every error returned by the Engine wraps exactly one
// of these, so callers can classify with errors.Is and map to a transport
// status with [StatusCode] without matching message text.
var (
	// ErrUnauthorized covers failed authentication: bad credentials,
	// invalid or expired tokens, failed second factors.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden covers authenticated but disallowed requests.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest covers malformed or semantically invalid input.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict covers requests that contradict current state.
	ErrConflict = errors.New("conflict")
	// ErrRateLimited covers per-caller capacity rejections.
	ErrRateLimited = errors.New("rate limited")
	// ErrGone covers resources that existed but have lapsed.
	ErrGone = errors.New("gone")
	// ErrServiceUnavailable covers backend and dependency failures.
	ErrServiceUnavailable = errors.New("service unavailable")
)

var (
	// ErrInvalidCredentials is returned for any identifier/password
	// mismatch, including unknown identifiers.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	// ErrTokenExpired is an expired but otherwise well-formed token.
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)
	// ErrTokenInvalid covers bad signatures, wrong token types, and
	// revoked refresh tokens.
	ErrTokenInvalid = fmt.Errorf("%w: could not validate token", ErrUnauthorized)
	// Err2FARequired is returned when a partial token is presented where a
	// full access token is required.
	Err2FARequired = fmt.Errorf("%w: 2fa verification required", ErrUnauthorized)
	// Err2FACodeInvalid is a failed second-factor check during login.
	Err2FACodeInvalid = fmt.Errorf("%w: invalid 2fa code", ErrUnauthorized)
	// ErrUserNotFound means a token named a user the provider no longer has.
	ErrUserNotFound = fmt.Errorf("%w: user not found", ErrUnauthorized)
	// ErrUserInactive rejects refresh for deactivated accounts.
	ErrUserInactive = fmt.Errorf("%w: inactive user", ErrUnauthorized)

	// ErrAccountInactive rejects authenticated requests from deactivated
	// accounts.
	ErrAccountInactive = fmt.Errorf("%w: inactive account", ErrForbidden)
	// ErrRoleRequired is returned by authorization guards.
	ErrRoleRequired = fmt.Errorf("%w: insufficient role", ErrForbidden)

	// ErrFullTokenNotAllowed rejects full access tokens on routes reserved
	// for the pending-2FA state.
	ErrFullTokenNotAllowed = fmt.Errorf("%w: full token not accepted here", ErrBadRequest)
	// ErrTOTPCodeInvalid is a failed code check during TOTP enrollment.
	ErrTOTPCodeInvalid = fmt.Errorf("%w: invalid totp code", ErrBadRequest)
	// ErrIncorrectSecret means the secret echoed back during enrollment
	// confirmation does not match the stored candidate.
	ErrIncorrectSecret = fmt.Errorf("%w: incorrect totp secret", ErrBadRequest)
	// ErrEnrollmentNotStarted means confirmation arrived without a stored
	// candidate secret.
	ErrEnrollmentNotStarted = fmt.Errorf("%w: totp enrollment not started", ErrBadRequest)
	// ErrRecoveryCodeInvalid covers unknown codes, already-used codes, and
	// unknown identifiers on the recovery reset path.
	ErrRecoveryCodeInvalid = fmt.Errorf("%w: invalid recovery code", ErrBadRequest)

	// ErrTOTPAlreadyEnabled rejects re-enrollment of an enabled account.
	ErrTOTPAlreadyEnabled = fmt.Errorf("%w: totp already enabled", ErrConflict)
	// ErrTOTPNotEnabled rejects TOTP operations on accounts without it.
	ErrTOTPNotEnabled = fmt.Errorf("%w: totp not enabled", ErrConflict)

	// ErrEngineNotReady is returned by Engine methods on a nil or
	// incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// StatusCode maps an Engine error onto an HTTP status. Unclassified errors
// map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
