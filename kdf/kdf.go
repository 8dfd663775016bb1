// Package kdf derives context-scoped symmetric keys from a single master
// secret. Every use of the master secret goes through [Deriver.Derive] with
// a distinct context string, so key usage stays auditable at the call sites.
package kdf

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minKeyLength   uint32 = 16
)

// Config holds the argon2id cost parameters used for derivation. The
// defaults are deliberately heavy: derivation happens once per context at
// startup, and the cost raises the price of brute-forcing a partially
// leaked master secret.
type Config struct {
	Time        uint32
	MemoryKB    uint32
	Parallelism uint8
}

// Deriver produces fixed-length subkeys from the master secret.
type Deriver struct {
	master []byte
	config Config
}

// New validates the cost parameters and returns a Deriver. Invalid
// parameters are a startup-time error, not a runtime condition.
func New(master []byte, cfg Config) (*Deriver, error) {
	if len(master) == 0 {
		return nil, errors.New("kdf: master secret is empty")
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("kdf: time cost must be >= 1")
	}
	if cfg.MemoryKB < minMemoryKB {
		return nil, errors.New("kdf: memory must be >= 8192 KB")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("kdf: parallelism must be >= 1")
	}
	return &Deriver{master: master, config: cfg}, nil
}

// Derive returns keyLen bytes bound to the given context string. The salt
// is the SHA-256 digest of the context, so the same (master, context) pair
// always yields the same key while distinct contexts stay unlinkable.
func (d *Deriver) Derive(context string, keyLen uint32) ([]byte, error) {
	if keyLen < minKeyLength {
		return nil, errors.New("kdf: key length must be >= 16")
	}
	salt := sha256.Sum256([]byte(context))
	key := argon2.IDKey(d.master, salt[:], d.config.Time, d.config.MemoryKB, d.config.Parallelism, keyLen)
	return key, nil
}
