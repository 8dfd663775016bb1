package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"authcore/aead"
	"authcore/internal/stores"
	"authcore/password"
	"authcore/recovery"
	"authcore/token"
	"authcore/totp"
)

// Engine is the authentication core. Build it through [Builder]; all
// methods are safe for concurrent use after Build.
type Engine struct {
	config   Config
	log      *zap.Logger
	metrics  *Metrics
	users    UserProvider
	hasher   *password.Argon2
	cipher   *aead.Cipher
	tokens   *token.Manager
	totp     *totp.Manager
	recovery *recovery.Store

	// revocation is nil when no Redis client was configured.
	revocation *stores.RevocationStore
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

// Login verifies the identifier/password pair. For accounts without 2FA it
// returns a full token pair; for accounts with TOTP enabled it returns a
// short-lived partial token and TwoFactorRequired, and the caller completes
// the login with [Engine.VerifyLogin2FA].
//
// Unknown identifiers and wrong passwords are indistinguishable to the
// caller.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	if !e.verifyPassword(pass, user.PasswordHash) {
		e.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	if e.config.UpgradeHashOnLogin {
		e.upgradeHash(ctx, user, pass)
	}

	if user.TOTPEnabled {
		partial, err := e.tokens.IssuePartial(user.Identifier, user.UserID)
		if err != nil {
			return nil, err
		}
		e.metrics.Inc(MetricLogin2FARequired)
		return &LoginResult{TwoFactorRequired: true, PartialToken: partial}, nil
	}

	pair, err := e.issuePair(user)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	return &LoginResult{TokenPair: *pair}, nil
}

// Refresh exchanges a refresh token for a rotated pair. With a revocation
// store configured, the consumed token's jti is revoked for the remainder
// of its lifetime, so each refresh token works once.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	data, err := e.tokens.Decode(refreshToken, token.TypeRefresh, false)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, mapTokenErr(err)
	}

	if e.revocation != nil {
		revoked, err := e.revocation.IsRevoked(ctx, data.JTI)
		if err != nil {
			return nil, errors.Join(ErrServiceUnavailable, err)
		}
		if revoked {
			e.metrics.Inc(MetricRefreshFailure)
			return nil, ErrTokenInvalid
		}
	}

	user, err := e.users.GetUserByID(ctx, data.UserID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}
	if !user.Active {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrUserInactive
	}

	pair, err := e.issuePair(user)
	if err != nil {
		return nil, err
	}

	if e.revocation != nil {
		// Revocation of the consumed token is best-effort: the new pair
		// is already issued and must not be lost to a backend hiccup.
		if err := e.revocation.Revoke(ctx, data.JTI, time.Until(data.ExpiresAt)); err != nil {
			e.log.Warn("refresh token revocation failed", zap.Error(err))
		}
	}

	e.metrics.Inc(MetricRefreshSuccess)
	return pair, nil
}

// Logout revokes the presented refresh token. Without a revocation store
// it only validates the token; the access token always rides out its TTL.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	data, err := e.tokens.Decode(refreshToken, token.TypeRefresh, false)
	if err != nil {
		return mapTokenErr(err)
	}
	if e.revocation != nil {
		if err := e.revocation.Revoke(ctx, data.JTI, time.Until(data.ExpiresAt)); err != nil {
			return errors.Join(ErrServiceUnavailable, err)
		}
	}
	e.metrics.Inc(MetricLogout)
	return nil
}

// Authenticate resolves a full access token into an [Identity]. Partial
// tokens are rejected with Err2FARequired; inactive accounts with
// ErrAccountInactive.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	data, err := e.tokens.Decode(accessToken, token.TypeAccess, false)
	if err != nil {
		return nil, mapTokenErr(err)
	}

	user, err := e.users.GetUserByID(ctx, data.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}

	return &Identity{
		Subject: data.Subject,
		UserID:  user.UserID,
		Roles:   user.Roles,
	}, nil
}

// AuthenticatePartial resolves a partial token for pending-2FA routes.
// Full access tokens are rejected: a caller who already holds full access
// has no business on those routes.
func (e *Engine) AuthenticatePartial(ctx context.Context, partialToken string) (*Identity, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	data, err := e.tokens.Decode(partialToken, token.TypeAccess, true)
	if err != nil {
		return nil, mapTokenErr(err)
	}
	if !data.Partial {
		return nil, ErrFullTokenNotAllowed
	}

	user, err := e.users.GetUserByID(ctx, data.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return &Identity{
		Subject: data.Subject,
		UserID:  user.UserID,
		Roles:   user.Roles,
		Partial: true,
	}, nil
}

// Authorize authenticates and then applies guards in order, returning the
// first guard failure.
func (e *Engine) Authorize(ctx context.Context, accessToken string, guards ...Guard) (*Identity, error) {
	identity, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	for _, guard := range guards {
		if err := guard(identity); err != nil {
			return nil, err
		}
	}
	return identity, nil
}

func (e *Engine) issuePair(user UserRecord) (*TokenPair, error) {
	access, err := e.tokens.IssueAccess(user.Identifier, user.UserID, 0)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(user.Identifier, user.UserID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// verifyPassword treats a corrupt stored hash as a failed match. The warn
// line is the operator's only signal that stored data is bad, since the
// caller just sees invalid credentials.
func (e *Engine) verifyPassword(pass, storedHash string) bool {
	ok, err := e.hasher.Verify(pass, storedHash)
	if err != nil {
		e.log.Warn("stored credential hash is invalid", zap.Error(err))
		return false
	}
	return ok
}

func (e *Engine) upgradeHash(ctx context.Context, user UserRecord, pass string) {
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	// Best-effort: an upgrade failure must not block a successful login.
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
		e.log.Warn("credential hash upgrade failed", zap.String("user_id", user.UserID), zap.Error(err))
	}
}

// wrapProvider classifies a provider mutation failure as a backend outage.
func wrapProvider(err error) error {
	return errors.Join(ErrServiceUnavailable, err)
}

func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrPartialNotAllowed):
		return Err2FARequired
	default:
		return ErrTokenInvalid
	}
}
