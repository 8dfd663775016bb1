// Package password provides one-way credential hashing with argon2id and
// the password acceptance policy. Hashes are self-describing PHC strings
// ($argon2id$v=19$m=...,t=...,p=...$salt$digest), so stored credentials
// survive cost-parameter changes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config defines the argon2id cost parameters. Read from configuration at
// process start; length bounds on the password itself are enforced by the
// caller-facing schema, not here.
type Config struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes and verifies credentials. It is also used to hash recovery
// codes, which share the same cost parameters.
type Argon2 struct {
	config Config
}

// NewArgon2 validates the cost parameters and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.MemoryKB < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password: time cost must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password: parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a PHC-formatted hash with a fresh random salt. The input is
// used exactly as provided (no Unicode normalization).
func (a *Argon2) Hash(secret string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey([]byte(secret), salt, a.config.Time, a.config.MemoryKB, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.MemoryKB,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify recomputes the digest with the parameters embedded in encodedHash
// and compares in constant time. A malformed stored hash returns
// (false, err); callers treat that as a failed match and log it rather
// than surfacing a crash.
func (a *Argon2) Verify(secret, encodedHash string) (bool, error) {
	memoryKB, timeCost, parallelism, salt, digest, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), salt, timeCost, memoryKB, parallelism, uint32(len(digest)))
	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current configuration, so callers can re-hash after
// a successful verification.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	memoryKB, timeCost, parallelism, _, digest, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if a.config.MemoryKB > memoryKB || a.config.Time > timeCost || a.config.Parallelism > parallelism {
		return true, nil
	}
	return a.config.KeyLength != uint32(len(digest)), nil
}

func parsePHC(encodedHash string) (memoryKB, timeCost uint32, parallelism uint8, salt, digest []byte, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		err = errors.New("password: invalid PHC format")
		return
	}
	if parts[1] != algorithmID {
		err = errors.New("password: unsupported algorithm")
		return
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		err = errors.New("password: unsupported argon2 version")
		return
	}

	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKB, &timeCost, &p); err != nil {
		err = errors.New("password: invalid parameter block")
		return
	}
	if memoryKB < minMemoryKB || timeCost < minTimeCost || p < uint32(minParallelism) || p > 255 {
		err = errors.New("password: parameters out of range")
		return
	}
	parallelism = uint8(p)

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || uint32(len(salt)) < minSaltLength {
		err = errors.New("password: invalid salt")
		return
	}
	if digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(digest) == 0 {
		err = errors.New("password: invalid digest")
		return
	}
	return
}
