package authcore

import (
	"context"

	"authcore/recovery"
	"authcore/totp"
)

// UserProvider is the interface callers implement to connect the engine to
// their user database. The engine never persists user state itself; every
// mutation goes through this interface.
//
// Lookup methods return an error for unknown users; the engine converts
// those into its own error taxonomy, so providers are free to return their
// storage layer's errors.
type UserProvider interface {
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// GetTOTPRecord returns nil when the user has no stored secret.
	GetTOTPRecord(ctx context.Context, userID string) (*TOTPRecord, error)
	// SetTOTPCandidate stores an encrypted secret with enabled=false,
	// replacing any previous candidate.
	SetTOTPCandidate(ctx context.Context, userID string, encryptedSecret []byte) error
	MarkTOTPEnabled(ctx context.Context, userID string) error
	UpdateTOTPLastUsedCounter(ctx context.Context, userID string, counter int64) error
	ClearTOTP(ctx context.Context, userID string) error

	// GetRecoveryCodes returns nil when no set has been generated.
	GetRecoveryCodes(ctx context.Context, userID string) (*recovery.Set, error)
	ReplaceRecoveryCodes(ctx context.Context, userID string, set *recovery.Set) error
}

// UserRecord is the account view the engine needs: identity, credential
// hash, roles, and the two flags that gate its flows.
type UserRecord struct {
	UserID       string
	Identifier   string
	PasswordHash string
	Roles        []string
	Active       bool
	TOTPEnabled  bool
}

// TOTPRecord carries the encrypted TOTP secret and its state. The secret is
// only ever stored encrypted; the engine decrypts transiently to verify.
type TOTPRecord struct {
	EncryptedSecret []byte
	Enabled         bool
	LastUsedCounter int64
}

// Identity is the authenticated principal produced by [Engine.Authenticate]
// and consumed by authorization guards.
type Identity struct {
	Subject string
	UserID  string
	Roles   []string
	// Partial marks identities from partial tokens (password verified,
	// 2FA pending). Guards never run on partial identities.
	Partial bool
}

// TokenPair is a full access+refresh grant.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is returned by [Engine.Login]. Exactly one of the pair or the
// partial token is populated.
type LoginResult struct {
	TokenPair

	// TwoFactorRequired is set when the account has TOTP enabled; the
	// caller must complete [Engine.VerifyLogin2FA] with PartialToken.
	TwoFactorRequired bool   `json:"two_factor_required"`
	PartialToken      string `json:"partial_token,omitempty"`
}

// TOTPEnrollment is returned by [Engine.StartTOTPEnrollment]. The plaintext
// secret appears here exactly once; confirmation must echo it back.
type TOTPEnrollment struct {
	Secret string       `json:"secret"`
	URI    string       `json:"uri"`
	QR     *totp.Bitmap `json:"qr"`
}
