// Package recovery manages single-use backup codes. Plaintext codes are
// returned exactly once at generation time; only argon2id hashes are kept.
// A consumed slot is zeroed in place rather than removed, so slot positions
// stay stable for audit and status reporting.
package recovery

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"authcore/password"
)

// Config controls code shape and the regeneration advice thresholds.
type Config struct {
	Count        int           // codes per set
	Segments     int           // hyphen-separated groups per code
	SegmentBytes int           // random bytes per group (2 hex chars each)
	MinRemaining int           // low-water mark for ShouldRegenerate
	MaxAge       time.Duration // set age ceiling for ShouldRegenerate
}

// Set is one user's recovery code set. A slot holds a hash while unused
// and the empty string once consumed. A zeroed slot is never refilled;
// only full regeneration replaces the set.
type Set struct {
	Hashes      []string
	GeneratedAt time.Time
}

// Status summarizes a set for the owning user.
type Status struct {
	Total            int       `json:"total"`
	Remaining        int       `json:"remaining"`
	UsedPositions    []bool    `json:"used_positions"`
	GeneratedAt      time.Time `json:"generated_at"`
	ShouldRegenerate bool      `json:"should_regenerate"`
}

// Store generates, consumes, and reports on code sets. Persistence of the
// resulting Set is the caller's responsibility.
type Store struct {
	config Config
	hasher *password.Argon2
	log    *zap.Logger
}

// NewStore validates the configuration. The hasher is shared with password
// hashing so codes get the same cost parameters.
func NewStore(cfg Config, hasher *password.Argon2, log *zap.Logger) (*Store, error) {
	if cfg.Count <= 0 || cfg.Segments <= 0 || cfg.SegmentBytes <= 0 {
		return nil, errors.New("recovery: count, segments, and segment bytes must be positive")
	}
	if cfg.MinRemaining < 0 || cfg.MaxAge <= 0 {
		return nil, errors.New("recovery: invalid regeneration thresholds")
	}
	if hasher == nil {
		return nil, errors.New("recovery: hasher is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{config: cfg, hasher: hasher, log: log}, nil
}

// Normalize strips hyphens, trims, and lowercases, so display formatting
// never affects matching.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "-", "")))
}

// Generate produces a fresh set. The returned plaintext codes are in the
// canonical display form (lowercase hex groups joined by hyphens, e.g.
// xxxx-xxxx-xxxx-xxxx) and are never stored.
func (s *Store) Generate() ([]string, *Set, error) {
	codes := make([]string, 0, s.config.Count)
	hashes := make([]string, 0, s.config.Count)

	for i := 0; i < s.config.Count; i++ {
		code, err := s.newCode()
		if err != nil {
			return nil, nil, err
		}
		hash, err := s.hasher.Hash(Normalize(code))
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, hash)
	}

	return codes, &Set{Hashes: hashes, GeneratedAt: time.Now().UTC()}, nil
}

func (s *Store) newCode() (string, error) {
	segments := make([]string, s.config.Segments)
	buf := make([]byte, s.config.SegmentBytes)
	for i := range segments {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		segments[i] = hex.EncodeToString(buf)
	}
	return strings.Join(segments, "-"), nil
}

// Consume scans the non-empty slots in order and zeroes the first slot
// whose hash matches the submitted code. It returns the matched position,
// or (false, -1) when nothing matches. Corrupt stored hashes are logged
// and treated as non-matching.
func (s *Store) Consume(set *Set, submitted string) (bool, int) {
	if set == nil {
		return false, -1
	}
	normalized := Normalize(submitted)
	for i, stored := range set.Hashes {
		if stored == "" {
			continue
		}
		ok, err := s.hasher.Verify(normalized, stored)
		if err != nil {
			s.log.Warn("invalid recovery code hash in slot", zap.Int("slot", i))
			continue
		}
		if ok {
			set.Hashes[i] = ""
			return true, i
		}
	}
	return false, -1
}

// StatusOf reports the set's state at the given instant. ShouldRegenerate
// is set when remaining codes are at or below the low-water mark or the
// set is older than MaxAge. A missing set always advises regeneration.
func (s *Store) StatusOf(set *Set, now time.Time) Status {
	if set == nil || len(set.Hashes) == 0 {
		return Status{ShouldRegenerate: true, UsedPositions: []bool{}}
	}

	used := make([]bool, len(set.Hashes))
	remaining := 0
	for i, h := range set.Hashes {
		if h == "" {
			used[i] = true
		} else {
			remaining++
		}
	}

	shouldRegenerate := remaining <= s.config.MinRemaining ||
		now.Sub(set.GeneratedAt) > s.config.MaxAge

	return Status{
		Total:            len(set.Hashes),
		Remaining:        remaining,
		UsedPositions:    used,
		GeneratedAt:      set.GeneratedAt,
		ShouldRegenerate: shouldRegenerate,
	}
}
