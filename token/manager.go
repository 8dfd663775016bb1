// Package token builds and parses the signed, expiring session tokens:
// access, refresh, and partial (password verified, 2FA pending). Tokens are
// stateless — validity is fully determined by signature, expiry, and type.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminates the three token kinds. A partial token is never
// interchangeable with an access token in either direction.
type Type string

const (
	// TypeAccess grants full access until expiry.
	TypeAccess Type = "access"
	// TypeRefresh can only be exchanged for a new token pair. Refresh
	// tokens carry a jti so a revocation set can target them.
	TypeRefresh Type = "refresh"
	// TypePartial asserts "password verified, 2FA pending".
	TypePartial Type = "partial"
)

var (
	// ErrExpired is kept distinct from ErrMalformed for diagnostics; both
	// surface to callers as unauthorized.
	ErrExpired = errors.New("token: expired")
	// ErrMalformed covers bad signatures, garbage input, and missing
	// required claims.
	ErrMalformed = errors.New("token: could not validate")
	// ErrTypeMismatch is returned when the token type does not match the
	// expected type for the operation.
	ErrTypeMismatch = errors.New("token: type mismatch")
	// ErrPartialNotAllowed is returned when a partial token is presented
	// where a full token is required.
	ErrPartialNotAllowed = errors.New("token: 2fa verification required")
)

// Config holds signing material and per-type lifetimes. SigningKey comes
// from the key deriver under the "jwt" context.
type Config struct {
	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PartialTTL time.Duration
}

// Claims is the wire shape: sub, user_id, iat, exp, type, partial, and —
// for refresh tokens only — jti.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"type"`
	Partial   bool   `json:"partial"`
	jwt.RegisteredClaims
}

// Data is the decoded, validated view handed to callers.
type Data struct {
	Subject   string
	UserID    string
	Type      Type
	Partial   bool
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager signs and parses tokens with HS256 over the derived key. It is
// stateless and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the configuration. A short signing key or a
// non-positive TTL is a startup error.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, errors.New("token: signing key must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.PartialTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	return &Manager{config: cfg}, nil
}

// IssueAccess signs an access token. ttl overrides the configured access
// lifetime when non-zero; a negative ttl produces an already-expired token,
// which is occasionally useful in tests.
func (m *Manager) IssueAccess(subject, userID string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = m.config.AccessTTL
	}
	return m.issue(subject, userID, TypeAccess, false, ttl, "")
}

// IssueRefresh signs a refresh token carrying a fresh random jti.
func (m *Manager) IssueRefresh(subject, userID string) (string, error) {
	return m.issue(subject, userID, TypeRefresh, false, m.config.RefreshTTL, uuid.NewString())
}

// IssuePartial signs a short-lived partial token for the pending-2FA state.
func (m *Manager) IssuePartial(subject, userID string) (string, error) {
	return m.issue(subject, userID, TypePartial, true, m.config.PartialTTL, "")
}

func (m *Manager) issue(subject, userID string, typ Type, partial bool, ttl time.Duration, jti string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		TokenType: string(typ),
		Partial:   partial,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.SigningKey)
}

// Decode verifies signature and expiry, then enforces the type rules:
//
//   - a partial token is accepted only when allowPartial is set;
//   - any other token must match expected exactly, so a full access token
//     is rejected where a refresh token is required and vice versa.
//
// Required claims (sub, user_id, and jti on refresh tokens) must be
// present or the token is treated as malformed.
func (m *Manager) Decode(tokenStr string, expected Type, allowPartial bool) (*Data, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.config.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}

	if claims.TokenType == string(TypePartial) {
		if !allowPartial {
			return nil, ErrPartialNotAllowed
		}
	} else if claims.TokenType != string(expected) {
		return nil, ErrTypeMismatch
	}

	if claims.Subject == "" || claims.UserID == "" {
		return nil, ErrMalformed
	}
	if claims.TokenType == string(TypeRefresh) && claims.ID == "" {
		return nil, ErrMalformed
	}

	data := &Data{
		Subject: claims.Subject,
		UserID:  claims.UserID,
		Type:    Type(claims.TokenType),
		Partial: claims.Partial,
		JTI:     claims.ID,
	}
	if claims.IssuedAt != nil {
		data.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Time
	}
	return data, nil
}
