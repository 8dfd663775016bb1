// Package totp implements RFC 6238 time-based one-time passwords: secret
// generation, otpauth provisioning URIs, code verification with a clock
// skew window, and a packed-bitmap QR rendering of the provisioning URI.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config tunes code generation. Digits, Period, and Skew are tunable;
// SHA1 is the default algorithm authenticator apps expect.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int // accepted time steps on each side of now
	Algorithm string
}

// Manager generates secrets and verifies codes. Stateless; safe for
// concurrent use.
type Manager struct {
	config Config
}

// NewManager fills defaults and validates the configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if _, err := hmacFunc(cfg.Algorithm); err != nil {
		return nil, err
	}
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return nil, errors.New("totp: digits must be between 6 and 10")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("totp: period must be positive")
	}
	if cfg.Skew < 0 {
		return nil, errors.New("totp: skew must be >= 0")
	}
	return &Manager{config: cfg}, nil
}

// GenerateSecret returns a fresh cryptographically random secret as
// unpadded base32, the form shared with the authenticator app.
func (m *Manager) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI for the account label, embedding
// the configured issuer.
func (m *Manager) ProvisionURI(secret, account string) string {
	label := url.PathEscape(m.config.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", m.config.Issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Verify checks code against the base32 secret, tolerating the configured
// skew on each side of now. It returns the matched counter so callers can
// enforce replay protection. Wrong-length or non-numeric codes fail fast
// without touching the HMAC.
func (m *Manager) Verify(secret, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !numeric(trimmed) {
		return false, 0, nil
	}

	key, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil || len(key) == 0 {
		return false, 0, errors.New("totp: invalid secret")
	}

	base := now.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		want, err := hotpCode(key, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

// hotpCode is the RFC 4226 dynamic truncation over an HMAC of the counter.
func hotpCode(key []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("totp: unsupported algorithm")
	}
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
