package authcore

import (
	"errors"
	"time"

	"authcore/kdf"
	"authcore/password"
	"authcore/recovery"
)

// TokenConfig holds the per-type token lifetimes. The signing key is not
// configured directly; it is derived from the master secret at build time.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PartialTTL time.Duration
}

// TOTPConfig tunes second-factor verification.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string
	// EnforceReplayProtection rejects a code whose time-step counter is
	// not strictly greater than the last accepted one.
	EnforceReplayProtection bool
}

// Config is the engine configuration. Start from [DefaultConfig] and
// override; zero values in nested blocks are rejected by Validate rather
// than silently defaulted.
type Config struct {
	// MasterSecret seeds the key deriver. Every signing and encryption
	// key is derived from it under a distinct context string.
	MasterSecret []byte

	KDF      kdf.Config
	Password password.Config
	Token    TokenConfig
	TOTP     TOTPConfig
	Recovery recovery.Config

	// UpgradeHashOnLogin re-hashes credentials after a successful login
	// when the stored hash uses weaker parameters than Password.
	UpgradeHashOnLogin bool
}

// DefaultConfig returns the production defaults: one consistent argon2id
// cost set for KDF, passwords, and recovery codes, and conventional token
// lifetimes.
func DefaultConfig() Config {
	return Config{
		KDF: kdf.Config{
			Time:        3,
			MemoryKB:    64 * 1024,
			Parallelism: 2,
		},
		Password: password.Config{
			MemoryKB:    64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			PartialTTL: 5 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:                  "authcore",
			Digits:                  6,
			Period:                  30,
			Skew:                    1,
			Algorithm:               "SHA1",
			EnforceReplayProtection: true,
		},
		Recovery: recovery.Config{
			Count:        10,
			Segments:     4,
			SegmentBytes: 2,
			MinRemaining: 3,
			MaxAge:       365 * 24 * time.Hour,
		},
		UpgradeHashOnLogin: true,
	}
}

// Validate checks the invariants the leaf constructors do not cover.
// Leaf parameter validation (argon2 costs, TOTP digits, recovery shape)
// happens in the respective constructors during Build.
func (c Config) Validate() error {
	if len(c.MasterSecret) < 32 {
		return errors.New("authcore: master secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.PartialTTL <= 0 {
		return errors.New("authcore: token TTLs must be positive")
	}
	if c.Token.PartialTTL > c.Token.AccessTTL {
		return errors.New("authcore: partial TTL must not exceed access TTL")
	}
	if c.TOTP.Issuer == "" {
		return errors.New("authcore: totp issuer is required")
	}
	return nil
}
